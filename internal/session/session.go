// Package session owns one viewer's navigation state: the selection vector
// over a loaded tag tree, its URL form and the optional animation. A Session
// is not safe for concurrent use; owners serialise access.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/agentic-research/tagnav/api"
	"github.com/agentic-research/tagnav/internal/animate"
	"github.com/agentic-research/tagnav/internal/resolve"
	"github.com/agentic-research/tagnav/internal/selection"
	"github.com/agentic-research/tagnav/internal/tagtree"
	"github.com/agentic-research/tagnav/internal/urlcodec"
)

var (
	ErrInvalidDepth  = errors.New("depth out of range")
	ErrInvalidOption = errors.New("value is not a valid option at this depth")
	ErrNoAnimation   = errors.New("page has no animation")
)

// Warmer starts background fetches. transport.Prefetcher implements it.
type Warmer interface {
	Warm(refs ...string)
}

type Option func(*Session)

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithPrefetcher warms neighbouring animation frames after every change.
func WithPrefetcher(w Warmer) Option {
	return func(s *Session) { s.warmer = w }
}

type Session struct {
	page     *api.Page
	keys     selection.KeyLists
	resolver *resolve.Resolver
	codec    urlcodec.Codec
	anim     *animate.Animator

	sel    selection.Vector
	result resolve.Result

	logger *slog.Logger
	warmer Warmer
}

// New binds a page to a loaded tree. Dimensions without a key list take the
// sorted keys the tree holds at that depth. The session starts at the page's
// initial selection, resolved.
func New(page *api.Page, tree *tagtree.Tree, opts ...Option) (*Session, error) {
	if err := page.Validate(); err != nil {
		return nil, fmt.Errorf("invalid page: %w", err)
	}
	s := &Session{page: page}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.keys = Keys(page, tree)
	r, err := resolve.New(tree, s.keys, s.logger)
	if err != nil {
		return nil, err
	}
	s.resolver = r
	s.codec = Codec(page)
	if a := page.Animation; a != nil {
		s.anim = animate.New(a.Dimension, a.Direction)
	}
	s.Init("")
	return s, nil
}

// Keys returns the page's key lists, filling empty ones from the tree.
func Keys(page *api.Page, tree *tagtree.Tree) selection.KeyLists {
	keys := make(selection.KeyLists, page.Depth())
	var derived [][]string
	for d, dim := range page.Dimensions {
		if len(dim.Keys) > 0 {
			keys[d] = dim.Keys
			continue
		}
		if derived == nil {
			derived = tagtree.KeysByDepth(tree)
		}
		if d < len(derived) {
			keys[d] = derived[d]
		}
	}
	return keys
}

// Codec builds the URL codec a page describes.
func Codec(page *api.Page) urlcodec.Codec {
	mode := urlcodec.ModeSlug
	if page.URL.Mode == api.URLModeInt {
		mode = urlcodec.ModeInt
	}
	return urlcodec.Codec{
		Mode:      mode,
		Separator: page.URL.Separator,
		PageToken: page.PageToken,
		PageName:  page.PageName,
		Relative:  page.URL.Relative,
	}
}

func (s *Session) initial() selection.Vector {
	sel := selection.Unset(s.keys.Depth())
	for d, v := range s.page.Initial {
		if d >= len(sel) {
			break
		}
		if i := s.keys.Index(d, v); i >= 0 {
			sel[d] = i
		} else if i, err := strconv.Atoi(v); err == nil {
			sel[d] = i
		}
	}
	return sel
}

// Init resets the selection to the page default, applies query if it has
// the right shape and resolves.
func (s *Session) Init(query string) {
	s.sel = s.initial()
	if query != "" && !s.codec.Decode(query, s.keys, s.sel) {
		s.logger.Debug("ignoring query with wrong shape", "query", query)
	}
	s.resolver.Validate(s.sel, 0)
	s.refresh()
}

// Select sets depth to the key-list index of one of its current options.
// Deeper dimensions are repaired if the change invalidated them.
func (s *Session) Select(depth, index int) error {
	if depth < 0 || depth >= s.keys.Depth() {
		return fmt.Errorf("%w: %d", ErrInvalidDepth, depth)
	}
	value, ok := s.keys.Value(depth, index)
	if !ok || !slices.Contains(s.result.Options[depth], value) {
		return fmt.Errorf("%w: depth %d index %d", ErrInvalidOption, depth, index)
	}
	s.sel[depth] = index
	s.resolver.Validate(s.sel, depth+1)
	s.refresh()
	return nil
}

// SelectValue is Select by value instead of index.
func (s *Session) SelectValue(depth int, value string) error {
	if depth < 0 || depth >= s.keys.Depth() {
		return fmt.Errorf("%w: %d", ErrInvalidDepth, depth)
	}
	return s.Select(depth, s.keys.Index(depth, value))
}

// Step moves the animated dimension by dir frames. It reports false when the
// animated dimension has no frames at the current selection.
func (s *Session) Step(dir int) (bool, error) {
	if s.anim == nil {
		return false, ErrNoAnimation
	}
	res, ok := s.anim.Advance(s.sel, dir, s.resolver)
	if !ok {
		return false, nil
	}
	s.result = res
	s.warm()
	return true, nil
}

func (s *Session) refresh() {
	s.result = s.resolver.Resolve(s.sel, 0)
	if s.anim != nil {
		s.anim.Update(s.keys, s.result)
	}
	s.warm()
}

// warm asks the prefetcher for the frames either side of the current one.
// It never waits.
func (s *Session) warm() {
	if s.warmer == nil || s.anim == nil {
		return
	}
	s.anim.Probe(s.sel, s.resolver, func(p *tagtree.Payload) {
		s.warmer.Warm(p.Refs...)
	})
}

// Query is the "?..." form of the current selection.
func (s *Session) Query() string { return s.codec.Query(s.sel, s.keys) }

// URL is the shareable link for the current selection, relative to base.
func (s *Session) URL(base string) string { return s.codec.Encode(s.sel, s.keys, base) }

// Selection returns a copy of the selection vector.
func (s *Session) Selection() selection.Vector { return s.sel.Clone() }

func (s *Session) Result() resolve.Result { return s.result }

func (s *Session) Keys() selection.KeyLists { return s.keys }

func (s *Session) Page() *api.Page { return s.page }
