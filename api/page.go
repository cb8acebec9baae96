package api

import (
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// Page describes one navigable image page: its tag dimensions, the documents
// holding the tag tree, and how selections appear in the page URL.
type Page struct {
	// Version of the page description format.
	Version string `json:"version" yaml:"version" koanf:"version"`
	Title   string `json:"title,omitempty" yaml:"title,omitempty" koanf:"title"`
	// PageToken is the leading URL slot. Empty or "None" means no slot.
	PageToken string `json:"page_token,omitempty" yaml:"page_token,omitempty" koanf:"page_token"`
	// PageName is the document name used when building absolute URLs.
	PageName   string      `json:"page_name,omitempty" yaml:"page_name,omitempty" koanf:"page_name"`
	Dimensions []Dimension `json:"dimensions" yaml:"dimensions" koanf:"dimensions"`
	// Documents are tree document locations; the last one is primary.
	Documents []string `json:"documents" yaml:"documents" koanf:"documents"`
	// Compression is one of none, zlib, gzip, zstd. Empty guesses from the
	// document extension.
	Compression string `json:"compression,omitempty" yaml:"compression,omitempty" koanf:"compression"`
	// Compressed is shorthand for zlib compression.
	Compressed bool       `json:"compressed,omitempty" yaml:"compressed,omitempty" koanf:"compressed"`
	URL        URLConfig  `json:"url" yaml:"url" koanf:"url"`
	Animation  *Animation `json:"animation,omitempty" yaml:"animation,omitempty" koanf:"animation"`
	// Initial is the starting selection, as values or decimal indices.
	Initial []string `json:"initial,omitempty" yaml:"initial,omitempty" koanf:"initial"`
	// Root is a JSONPath selecting the tag tree inside the primary document.
	Root string `json:"root,omitempty" yaml:"root,omitempty" koanf:"root"`
}

// Dimension is one tag axis and its canonical key list.
type Dimension struct {
	Name string   `json:"name" yaml:"name" koanf:"name"`
	Keys []string `json:"keys,omitempty" yaml:"keys,omitempty" koanf:"keys"`
}

type URLConfig struct {
	// Mode is "int" or "slug".
	Mode      string `json:"mode,omitempty" yaml:"mode,omitempty" koanf:"mode"`
	Separator string `json:"separator,omitempty" yaml:"separator,omitempty" koanf:"separator"`
	Relative  bool   `json:"relative,omitempty" yaml:"relative,omitempty" koanf:"relative"`
}

type Animation struct {
	Dimension int `json:"dimension" yaml:"dimension" koanf:"dimension"`
	// Direction is +1 or -1. Zero means +1.
	Direction int `json:"direction,omitempty" yaml:"direction,omitempty" koanf:"direction"`
}

const (
	URLModeInt  = "int"
	URLModeSlug = "slug"
)

// Depth is the number of tag dimensions.
func (p *Page) Depth() int { return len(p.Dimensions) }

// KeyLists returns the key list of every dimension, in order.
func (p *Page) KeyLists() [][]string {
	out := make([][]string, len(p.Dimensions))
	for i, d := range p.Dimensions {
		out[i] = d.Keys
	}
	return out
}

// Names returns the display name of every dimension, in order.
func (p *Page) Names() []string {
	out := make([]string, len(p.Dimensions))
	for i, d := range p.Dimensions {
		out[i] = d.Name
	}
	return out
}

// CompressionName resolves Compression and the Compressed shorthand.
func (p *Page) CompressionName() string {
	if p.Compression == "" && p.Compressed {
		return "zlib"
	}
	return p.Compression
}

// Validate checks the page for mistakes that would otherwise surface as
// confusing navigation.
func (p *Page) Validate() error {
	if len(p.Dimensions) == 0 {
		return errors.New("page has no dimensions")
	}
	for i, d := range p.Dimensions {
		seen := make(map[string]bool, len(d.Keys))
		for _, k := range d.Keys {
			if seen[k] {
				return fmt.Errorf("dimension %d (%s): duplicate key %q", i, d.Name, k)
			}
			seen[k] = true
		}
	}

	switch p.URL.Mode {
	case "", URLModeInt, URLModeSlug:
	default:
		return fmt.Errorf("unknown url mode %q: must be int or slug", p.URL.Mode)
	}
	if p.URL.Separator != "" {
		if utf8.RuneCountInString(p.URL.Separator) != 1 {
			return fmt.Errorf("url separator %q must be a single character", p.URL.Separator)
		}
		if r, _ := utf8.DecodeRuneInString(p.URL.Separator); reservedSeparator(r) {
			return fmt.Errorf("url separator %q can appear in slugs or URL syntax", p.URL.Separator)
		}
	}

	if a := p.Animation; a != nil {
		if a.Dimension < 0 || a.Dimension >= len(p.Dimensions) {
			return fmt.Errorf("animation dimension %d out of range [0,%d)", a.Dimension, len(p.Dimensions))
		}
		if a.Direction != 0 && a.Direction != 1 && a.Direction != -1 {
			return fmt.Errorf("animation direction must be 1 or -1, got %d", a.Direction)
		}
	}

	if p.Initial != nil {
		if len(p.Initial) != len(p.Dimensions) {
			return fmt.Errorf("initial selection has %d entries, want %d", len(p.Initial), len(p.Dimensions))
		}
		for i, v := range p.Initial {
			if _, ok := p.InitialIndex(i, v); !ok && len(p.Dimensions[i].Keys) > 0 {
				return fmt.Errorf("initial value %q is not in dimension %d (%s)", v, i, p.Dimensions[i].Name)
			}
		}
	}
	return nil
}

// reservedSeparator reports runes that a slug may contain or that end the
// query part of a URL.
func reservedSeparator(r rune) bool {
	switch {
	case r == '-' || r == '_' || r == '#' || r == '?' || r == ' ':
		return true
	case r < utf8.RuneSelf && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9'):
		return true
	}
	return false
}

// InitialIndex maps an Initial entry for dimension d to a key-list index.
// Values are matched first; otherwise a decimal index in range is accepted.
func (p *Page) InitialIndex(d int, v string) (int, bool) {
	keys := p.Dimensions[d].Keys
	for i, k := range keys {
		if k == v {
			return i, true
		}
	}
	if i, err := strconv.Atoi(v); err == nil && i >= 0 && i < len(keys) {
		return i, true
	}
	return -1, false
}
