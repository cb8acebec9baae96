// Package urlcodec maps a selection vector to and from the delimited query
// string used in shareable page URLs. Decoding never fails: a query that does
// not fit is ignored and the resolver repairs whatever it leaves behind.
package urlcodec

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/agentic-research/tagnav/internal/selection"
)

// Mode selects how each dimension is written into the query.
type Mode string

const (
	ModeInt  Mode = "int"
	ModeSlug Mode = "slug"
)

const DefaultSeparator = "|"

// NoPageToken is the configured value meaning "no page slot in the URL".
const NoPageToken = "None"

type Codec struct {
	Mode      Mode
	Separator string
	PageToken string
	PageName  string
	Relative  bool
}

func (c Codec) sep() string {
	if c.Separator == "" {
		return DefaultSeparator
	}
	return c.Separator
}

func (c Codec) hasPageToken() bool {
	return c.PageToken != "" && c.PageToken != NoPageToken
}

// Slug lower-cases s, keeps ASCII word characters, spaces and hyphens, and
// turns each run of spaces and hyphens into a single hyphen.
func Slug(s string) string {
	lower := cases.Lower(language.Und).String(s)

	var b strings.Builder
	b.Grow(len(lower))
	space := false
	for _, r := range lower {
		switch {
		case r == ' ' || r == '-':
			space = true
			continue
		case r == '_' || r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
		default:
			continue
		}
		if space {
			b.WriteByte('-')
			space = false
		}
		b.WriteRune(r)
	}
	if space {
		b.WriteByte('-')
	}
	return b.String()
}

// tokens extracts the separator-delimited tokens from a query string or a
// full URL. The text before '?' and after '#' is ignored.
func (c Codec) tokens(query string) []string {
	if i := strings.IndexByte(query, '?'); i >= 0 {
		query = query[i+1:]
	}
	if i := strings.IndexByte(query, '#'); i >= 0 {
		query = query[:i]
	}
	query = strings.TrimSuffix(query, c.sep())
	if query == "" {
		return nil
	}
	return strings.Split(query, c.sep())
}

// Decode writes the indices encoded in query into sel and reports whether the
// query had the expected shape. With a page token one extra leading slot is
// expected and skipped. A token that does not parse or match leaves its depth
// as it was.
func (c Codec) Decode(query string, keys selection.KeyLists, sel selection.Vector) bool {
	toks := c.tokens(query)
	want := keys.Depth()
	if c.hasPageToken() {
		want++
	}
	if len(toks) != want || len(sel) != keys.Depth() {
		return false
	}
	if c.hasPageToken() {
		toks = toks[1:]
	}

	for d, tok := range toks {
		switch c.Mode {
		case ModeInt:
			if i, err := strconv.Atoi(tok); err == nil {
				sel[d] = i
			}
		default:
			slug := Slug(tok)
			for i, k := range keys[d] {
				if Slug(k) == slug {
					sel[d] = i
					break
				}
			}
		}
	}
	return true
}

// Query renders the "?..." part for sel. Every token, including the last, is
// followed by the separator.
func (c Codec) Query(sel selection.Vector, keys selection.KeyLists) string {
	sep := c.sep()
	var b strings.Builder
	b.WriteByte('?')
	if c.hasPageToken() {
		b.WriteString(c.PageToken)
		b.WriteString(sep)
	}
	for d, i := range sel {
		if c.Mode == ModeInt {
			b.WriteString(strconv.Itoa(i))
		} else if v, ok := keys.Value(d, i); ok {
			b.WriteString(Slug(v))
		}
		b.WriteString(sep)
	}
	return b.String()
}

// Encode returns the shareable URL for sel. base is the location of the
// current document; its directory is kept and its file name replaced by
// PageName. Relative codecs, or an empty base, give PageName plus the query.
func (c Codec) Encode(sel selection.Vector, keys selection.KeyLists, base string) string {
	out := c.PageName + c.Query(sel, keys)
	if c.Relative || base == "" {
		return out
	}
	if i := strings.IndexByte(base, '?'); i >= 0 {
		base = base[:i]
	}
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		return base[:i+1] + out
	}
	return out
}
