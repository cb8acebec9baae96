// Package loader reconstructs a tag tree from one or more JSON documents.
// Sources may be compressed and may reference each other through
// "**FILE<n>" marker strings; the last source is the primary document.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"golang.org/x/sync/errgroup"

	"github.com/agentic-research/tagnav/internal/tagtree"
	"github.com/agentic-research/tagnav/internal/transport"
)

const refPrefix = "**FILE"

// ParseRef decodes a split-reference marker. It is the only place that knows
// the marker syntax. An index too large for an int comes back as
// math.MaxInt, which no source list can satisfy.
func ParseRef(s string) (int, bool) {
	digits, ok := strings.CutPrefix(s, refPrefix)
	if !ok || digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return math.MaxInt, true
	}
	return n, true
}

// Ref renders the marker for source index n.
func Ref(n int) string { return refPrefix + strconv.Itoa(n) }

// Source is one document to load.
type Source struct {
	Location    string
	Compression Compression
}

// Sources builds sources for locations. With None, each location's
// compression is guessed from its extension.
func Sources(locations []string, c Compression) []Source {
	out := make([]Source, len(locations))
	for i, loc := range locations {
		sc := c
		if sc == None {
			sc = CompressionForPath(loc)
		}
		out[i] = Source{Location: loc, Compression: sc}
	}
	return out
}

type Loader struct {
	Fetcher transport.Fetcher
	Logger  *slog.Logger
	// Root is an optional JSONPath selecting the tag tree inside the
	// consolidated primary document.
	Root string
}

// Result is a loaded tree plus the document it came from.
type Result struct {
	Tree     *tagtree.Tree
	Document any
}

// Load fetches every source concurrently, then parses, consolidates and
// converts the primary document into a tree of the given depth. depth <= 0
// infers it from the document.
func (l *Loader) Load(ctx context.Context, sources []Source, depth int) (*Result, error) {
	if len(sources) == 0 {
		return nil, &LoadError{Code: CodeFetchFailed, Index: -1, Err: errors.New("no sources")}
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	docs := make([]any, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			doc, err := l.fetchOne(gctx, i, src)
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	doc, err := Consolidate(docs)
	if err != nil {
		return nil, err
	}

	if l.Root != "" {
		doc, err = selectRoot(doc, l.Root)
		if err != nil {
			return nil, err
		}
	}

	if path, found := findRef(doc); found {
		return nil, &LoadError{Code: CodeDanglingReference, Index: -1,
			Err: fmt.Errorf("unresolved marker at %s", path)}
	}

	if depth <= 0 {
		d, ok := tagtree.InferDepth(doc)
		if !ok {
			return nil, &LoadError{Code: CodeBadShape, Index: -1,
				Err: errors.New("branches have different depths")}
		}
		depth = d
	}
	tree, err := tagtree.FromValue(doc, depth)
	if err != nil {
		return nil, &LoadError{Code: CodeBadShape, Index: len(sources) - 1,
			Source: sources[len(sources)-1].Location, Err: err}
	}

	logger.Info("loaded tag tree",
		"sources", len(sources),
		"depth", depth,
		"top_level", tree.Root.Len(),
		"elapsed", time.Since(start))
	return &Result{Tree: tree, Document: doc}, nil
}

func (l *Loader) fetchOne(ctx context.Context, i int, src Source) (any, error) {
	raw, err := l.Fetcher.Fetch(ctx, src.Location)
	if err != nil {
		return nil, loadErr(CodeFetchFailed, i, src, err)
	}
	text, err := decompress(src.Compression, raw)
	if err != nil {
		return nil, loadErr(CodeDecompressFailed, i, src, fmt.Errorf("%s: %w", src.Compression, err))
	}
	doc, err := oj.Parse(text)
	if err != nil {
		return nil, loadErr(CodeMalformedJSON, i, src, err)
	}
	return doc, nil
}

// Consolidate replaces every marker reachable from the last document with
// the document it names, recursively. Documents are modified in place.
func Consolidate(docs []any) (any, error) {
	primary := len(docs) - 1
	if primary < 0 {
		return nil, &LoadError{Code: CodeBadShape, Index: -1, Err: errors.New("no documents")}
	}
	if _, ok := docs[primary].(map[string]any); !ok {
		return nil, &LoadError{Code: CodeBadShape, Index: primary,
			Err: fmt.Errorf("primary document is %T, not a mapping", docs[primary])}
	}
	c := &consolidator{docs: docs, done: make(map[int]any)}
	return c.fragment(primary, nil)
}

type consolidator struct {
	docs []any
	done map[int]any
}

func (c *consolidator) fragment(n int, stack []int) (any, error) {
	if v, ok := c.done[n]; ok {
		return v, nil
	}
	if slices.Contains(stack, n) {
		return nil, &LoadError{Code: CodeReferenceCycle, Index: n,
			Err: fmt.Errorf("source %d is referenced from itself via %v", n, stack)}
	}
	v, err := c.walk(c.docs[n], append(stack, n))
	if err != nil {
		return nil, err
	}
	c.done[n] = v
	return v, nil
}

func (c *consolidator) walk(v any, stack []int) (any, error) {
	switch t := v.(type) {
	case string:
		n, ok := ParseRef(t)
		if !ok {
			return t, nil
		}
		if n >= len(c.docs) {
			return nil, &LoadError{Code: CodeDanglingReference, Index: stack[len(stack)-1],
				Err: fmt.Errorf("%s names source %d of %d", t, n, len(c.docs))}
		}
		return c.fragment(n, stack)
	case map[string]any:
		for k, child := range t {
			r, err := c.walk(child, stack)
			if err != nil {
				return nil, err
			}
			t[k] = r
		}
		return t, nil
	case []any:
		for i, child := range t {
			r, err := c.walk(child, stack)
			if err != nil {
				return nil, err
			}
			t[i] = r
		}
		return t, nil
	default:
		return v, nil
	}
}

func selectRoot(doc any, expr string) (any, error) {
	x, err := jp.ParseString(expr)
	if err != nil {
		return nil, &LoadError{Code: CodeBadShape, Index: -1,
			Err: fmt.Errorf("invalid root jsonpath '%s': %w", expr, err)}
	}
	results := x.Get(doc)
	if len(results) == 0 {
		return nil, &LoadError{Code: CodeBadShape, Index: -1,
			Err: fmt.Errorf("root jsonpath '%s' matched nothing", expr)}
	}
	return results[0], nil
}

// findRef reports the JSONPath of the first leaf that is still a marker.
func findRef(doc any) (string, bool) {
	var found string
	jp.Walk(doc, func(path jp.Expr, value any) {
		if found != "" {
			return
		}
		if s, ok := value.(string); ok {
			if _, isRef := ParseRef(s); isRef {
				found = path.String()
			}
		}
	}, true)
	return found, found != ""
}
