package tagdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T, name string) *DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seed(t *testing.T, db *DB) {
	t.Helper()
	require.NoError(t, db.Put(context.Background(),
		Record{File: "a0.png", Tags: map[string]string{"model": "A", "lead time": "T+0"}},
		Record{File: "a6.png", Tags: map[string]string{"model": "A", "lead time": "T+6"}},
		Record{File: "b0.png", Tags: map[string]string{"model": "B", "lead time": "T+0"}},
		Record{File: "b0_zoom.png", Tags: map[string]string{"model": "B", "lead time": "T+0"}},
		Record{File: "orphan.png", Tags: map[string]string{"model": "C"}},
	))
}

func TestColumnNames(t *testing.T) {
	assert.Equal(t, "lead__time", ColumnName("lead time"))
	assert.Equal(t, "lead time", TagName("lead__time"))
	assert.Equal(t, `"we""ird"`, quote(`we"ird`))
}

func TestPutAndStream(t *testing.T) {
	db := openTestDB(t, "tags.db")
	seed(t, db)

	assert.Equal(t, []string{"lead time", "model"}, db.Tags())

	var files []string
	require.NoError(t, db.Stream(context.Background(), func(r Record) error {
		files = append(files, r.File)
		return nil
	}))
	assert.Equal(t, []string{"a0.png", "a6.png", "b0.png", "b0_zoom.png", "orphan.png"}, files)

	recs, err := db.Select(context.Background(), map[string]string{"model": "C"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, map[string]string{"model": "C"}, recs[0].Tags, "NULL tags are left out")
}

func TestPutReplaces(t *testing.T) {
	db := openTestDB(t, "tags.db")
	seed(t, db)

	require.NoError(t, db.Put(context.Background(),
		Record{File: "a0.png", Tags: map[string]string{"model": "Z", "lead time": "T+0"}}))
	recs, err := db.Select(context.Background(), map[string]string{"model": "Z"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "a0.png", recs[0].File)

	assert.ErrorIs(t, db.Put(context.Background(), Record{File: "x.png"}), ErrNoTags)
}

func TestSelect(t *testing.T) {
	db := openTestDB(t, "tags.db")
	seed(t, db)
	ctx := context.Background()

	recs, err := db.Select(ctx, map[string]string{"model": "B", "lead time": "T+0"})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "b0.png", recs[0].File)
	assert.Equal(t, "b0_zoom.png", recs[1].File)

	recs, err = db.Select(ctx, map[string]string{"never seen": "x"})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestDelete(t *testing.T) {
	db := openTestDB(t, "tags.db")
	seed(t, db)
	ctx := context.Background()

	n, err := db.Delete(ctx, "a0.png", "b0.png", "missing.png")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	recs, err := db.Select(ctx, map[string]string{"lead time": "T+0"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "b0_zoom.png", recs[0].File)
}

func TestReopenKeepsColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags.db")
	db, err := Open(context.Background(), path)
	require.NoError(t, err)
	seed(t, db)
	require.NoError(t, db.Close())

	db, err = Open(context.Background(), path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	assert.Equal(t, []string{"lead time", "model"}, db.Tags())
}

func TestMerge(t *testing.T) {
	dst := openTestDB(t, "main.db")
	add := openTestDB(t, "add.db")
	seed(t, add)
	require.NoError(t, dst.Put(context.Background(),
		Record{File: "x.png", Tags: map[string]string{"source": "radar"}}))

	n, err := dst.Merge(context.Background(), add)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []string{"lead time", "model", "source"}, dst.Tags())
}

func TestBuildTree(t *testing.T) {
	db := openTestDB(t, "tags.db")
	seed(t, db)

	tree, stats, err := db.BuildTree(context.Background(), []string{"model", "lead time"})
	require.NoError(t, err)
	assert.Equal(t, BuildStats{Records: 5, Skipped: 1}, stats)
	assert.Equal(t, 2, tree.Depth)

	n, ok := tree.Walk([]string{"B", "T+0"})
	require.True(t, ok)
	assert.Equal(t, []string{"b0.png", "b0_zoom.png"}, n.Payload().Refs)
	assert.True(t, n.Payload().List)

	_, ok = tree.Walk([]string{"C"})
	assert.False(t, ok)

	_, _, err = db.BuildTree(context.Background(), nil)
	assert.Error(t, err)
}
