// Package transport fetches documents and images by location. Loading goes
// through a Fetcher; image warming goes through a Prefetcher that never
// blocks navigation.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

var (
	ErrNotFound = errors.New("resource not found")
	// ErrOutsideBase rejects locations that would leave the fetcher's base.
	ErrOutsideBase = errors.New("location is outside the base")
)

// Fetcher reads one resource in full.
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, location string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, location string) ([]byte, error) {
	return f(ctx, location)
}

// FSFetcher reads locations as paths inside a billy filesystem.
type FSFetcher struct {
	FS billy.Filesystem
}

func NewFSFetcher(fs billy.Filesystem) *FSFetcher {
	return &FSFetcher{FS: fs}
}

func (f *FSFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := util.ReadFile(f.FS, location)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", location, ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", location, err)
	}
	return data, nil
}

// HTTPFetcher resolves relative locations against Base and GETs them.
// Locations with a scheme or host, or that climb above Base, are refused.
type HTTPFetcher struct {
	Base   *url.URL
	Client *http.Client
}

func NewHTTPFetcher(base string) (*HTTPFetcher, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return &HTTPFetcher{
		Base:   u,
		Client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (f *HTTPFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	ref, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("parse location %q: %w", location, err)
	}
	if ref.IsAbs() || ref.Host != "" || ref.Opaque != "" {
		return nil, fmt.Errorf("%q: %w", location, ErrOutsideBase)
	}
	target := f.Base.ResolveReference(ref)
	if !strings.HasPrefix(target.Path, f.Base.Path) {
		return nil, fmt.Errorf("%q: %w", location, ErrOutsideBase)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", target, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", target, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("get %s: unexpected status %s", target, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", target, err)
	}
	return data, nil
}

// IsURL reports whether location carries an http(s) scheme.
func IsURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}
