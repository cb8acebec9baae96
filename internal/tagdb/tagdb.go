// Package tagdb stores image files and their tags in a SQLite table, one
// column per tag, and groups them into tag trees for page building.
package tagdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

const (
	table    = "img_info"
	fileCol  = "fname"
	busyWait = 5000 // ms
)

var ErrNoTags = errors.New("record has no tags")

// ColumnName converts a tag name into its column name.
func ColumnName(tag string) string { return strings.ReplaceAll(tag, " ", "__") }

// TagName converts a column name back into the tag name.
func TagName(col string) string { return strings.ReplaceAll(col, "__", " ") }

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// Record is one image file and its tags.
type Record struct {
	File string
	Tags map[string]string
}

// DB is an open tag database. It is safe for concurrent use.
type DB struct {
	db   *sql.DB
	path string

	mu   sync.Mutex
	cols map[string]bool
}

// Open opens or creates the database at path.
func Open(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// one connection keeps the pragmas below in force and serialises writers
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyWait),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s TEXT PRIMARY KEY)", table, fileCol),
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init %s: %w", path, err)
		}
	}

	d := &DB{db: db, path: path}
	if err := d.loadColumns(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) Close() error { return d.db.Close() }

func (d *DB) Path() string { return d.path }

func (d *DB) loadColumns(ctx context.Context) error {
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("read columns: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("scan column: %w", err)
		}
		if name != fileCol {
			cols[name] = true
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate columns: %w", err)
	}
	d.mu.Lock()
	d.cols = cols
	d.mu.Unlock()
	return nil
}

// Tags lists the tag names present in the database, sorted.
func (d *DB) Tags() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.cols))
	for c := range d.cols {
		out = append(out, TagName(c))
	}
	sort.Strings(out)
	return out
}

func (d *DB) hasColumn(col string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cols[col]
}

// Put inserts or replaces the records, adding any tag columns they need.
// Tags a record does not carry are stored as NULL.
func (d *DB) Put(ctx context.Context, records ...Record) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // no-op after commit

	added := map[string]bool{}
	for _, rec := range records {
		if rec.File == "" {
			return errors.New("record has no file name")
		}
		if len(rec.Tags) == 0 {
			return fmt.Errorf("%s: %w", rec.File, ErrNoTags)
		}
		values := make(map[string]string, len(rec.Tags))
		for tag, v := range rec.Tags {
			values[ColumnName(tag)] = v
		}
		cols := make([]string, 0, len(values))
		for c := range values {
			cols = append(cols, c)
		}
		sort.Strings(cols)

		for _, c := range cols {
			if d.hasColumn(c) || added[c] {
				continue
			}
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT", table, quote(c))
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("add column %s: %w", c, err)
			}
			added[c] = true
		}

		quoted := make([]string, len(cols))
		args := make([]any, 0, len(cols)+1)
		args = append(args, rec.File)
		for i, c := range cols {
			quoted[i] = quote(c)
			args = append(args, values[c])
		}
		stmt := fmt.Sprintf("INSERT OR REPLACE INTO %s (%s, %s) VALUES (?%s)",
			table, fileCol, strings.Join(quoted, ", "), strings.Repeat(", ?", len(cols)))
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("insert %s: %w", rec.File, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	d.mu.Lock()
	for c := range added {
		d.cols[c] = true
	}
	d.mu.Unlock()
	return nil
}

// Delete removes the named files and reports how many rows went.
func (d *DB) Delete(ctx context.Context, files ...string) (int64, error) {
	if len(files) == 0 {
		return 0, nil
	}
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s IN (?%s)",
		table, fileCol, strings.Repeat(", ?", len(files)-1))
	args := make([]any, len(files))
	for i, f := range files {
		args[i] = f
	}
	res, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}
	return res.RowsAffected()
}

// Stream calls fn for every record in file name order, one row at a time.
func (d *DB) Stream(ctx context.Context, fn func(Record) error) error {
	return d.query(ctx, nil, fn)
}

// Select returns the records whose tags equal every value in filter. A tag
// the database has never seen matches nothing.
func (d *DB) Select(ctx context.Context, filter map[string]string) ([]Record, error) {
	for tag := range filter {
		if !d.hasColumn(ColumnName(tag)) {
			return nil, nil
		}
	}
	var out []Record
	err := d.query(ctx, filter, func(r Record) error {
		out = append(out, r)
		return nil
	})
	return out, err
}

func (d *DB) query(ctx context.Context, filter map[string]string, fn func(Record) error) error {
	q := fmt.Sprintf("SELECT * FROM %s", table)
	var args []any
	if len(filter) > 0 {
		tags := make([]string, 0, len(filter))
		for tag := range filter {
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		conds := make([]string, len(tags))
		for i, tag := range tags {
			conds[i] = quote(ColumnName(tag)) + " = ?"
			args = append(args, filter[tag])
		}
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY " + fileCol

	rows, err := d.db.QueryContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("query %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("columns: %w", err)
	}
	fileIdx := slices.Index(cols, fileCol)
	vals := make([]sql.NullString, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		rec := Record{Tags: make(map[string]string)}
		for i, v := range vals {
			switch {
			case i == fileIdx:
				rec.File = v.String
			case v.Valid:
				rec.Tags[TagName(cols[i])] = v.String
			}
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Merge copies every record of other into d, replacing same-named files.
func (d *DB) Merge(ctx context.Context, other *DB) (int, error) {
	var batch []Record
	if err := other.Stream(ctx, func(r Record) error {
		if len(r.Tags) > 0 {
			batch = append(batch, r)
		}
		return nil
	}); err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}
	return len(batch), d.Put(ctx, batch...)
}
