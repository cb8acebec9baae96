package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultCacheSize   = 256
	defaultWarmTimeout = time.Minute
)

// Prefetcher is a bounded cache in front of a Fetcher. Warm fills it in the
// background; Get serves from it and falls back to a real fetch.
// Concurrent requests for one location share a single fetch.
type Prefetcher struct {
	fetcher Fetcher
	cache   *lru.Cache[string, []byte]
	group   singleflight.Group
	wg      sync.WaitGroup
	logger  *slog.Logger
	timeout time.Duration
}

func NewPrefetcher(f Fetcher, size int, logger *slog.Logger) (*Prefetcher, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("create prefetch cache: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prefetcher{
		fetcher: f,
		cache:   cache,
		logger:  logger,
		timeout: defaultWarmTimeout,
	}, nil
}

// Warm starts a background fetch for every ref not already cached and
// returns at once. Nothing waits on these fetches and none is cancelled;
// failures are only logged.
func (p *Prefetcher) Warm(refs ...string) {
	for _, ref := range refs {
		if p.cache.Contains(ref) {
			continue
		}
		p.wg.Add(1)
		go func(ref string) {
			defer p.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
			defer cancel()
			if _, err := p.load(ctx, ref); err != nil {
				p.logger.Warn("prefetch failed", "ref", ref, "error", err)
			}
		}(ref)
	}
}

// Get returns the resource, from cache when warm.
func (p *Prefetcher) Get(ctx context.Context, ref string) ([]byte, error) {
	if data, ok := p.cache.Get(ref); ok {
		return data, nil
	}
	return p.load(ctx, ref)
}

// Cached reports whether ref is in the cache without touching its recency.
func (p *Prefetcher) Cached(ref string) bool {
	return p.cache.Contains(ref)
}

// Wait blocks until every warm started so far has finished.
func (p *Prefetcher) Wait() {
	p.wg.Wait()
}

func (p *Prefetcher) load(ctx context.Context, ref string) ([]byte, error) {
	v, err, _ := p.group.Do(ref, func() (any, error) {
		if data, ok := p.cache.Get(ref); ok {
			return data, nil
		}
		data, err := p.fetcher.Fetch(ctx, ref)
		if err != nil {
			return nil, err
		}
		p.cache.Add(ref, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	data, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected type from prefetch group: %T", v)
	}
	return data, nil
}
