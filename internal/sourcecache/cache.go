// Package sourcecache maps canonicalized file paths to decoded
// project.Source values, guaranteeing at most one decode per path
// regardless of concurrent callers. The registry shape follows
// internal/myaudio's AudioSourceRegistry (map + refcount map, guarded by
// one mutex, a logger field), generalized from RTSP connection strings to
// decoded-PCM file sources.
package sourcecache

import (
	"context"
	"log/slog"
	"sync"

	"github.com/resonantfield/tapedeck/internal/errors"
	"github.com/resonantfield/tapedeck/internal/logging"
	"github.com/resonantfield/tapedeck/internal/project"
	"github.com/resonantfield/tapedeck/internal/securefs"
)

// Cache maps canonicalized paths to decoded Sources. The zero value is not
// usable; construct with New.
type Cache struct {
	mu      sync.Mutex
	sources map[string]*project.Source
	loading map[string]*sync.WaitGroup // in-flight decodes, so racing callers wait instead of double-decoding

	binsPerSecond int
	logger        *slog.Logger
}

// New creates an empty Cache. binsPerSecond controls the resolution of the
// waveform summary computed for each decoded Source.
func New(binsPerSecond int) *Cache {
	logger := logging.ForService("sourcecache")
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		sources:       make(map[string]*project.Source),
		loading:       make(map[string]*sync.WaitGroup),
		binsPerSecond: binsPerSecond,
		logger:        logger,
	}
}

// GetOrLoad returns the cached Source for path, decoding it if this is the
// first reference. Concurrent callers racing on the same path all observe
// the single decode's result; the cache guarantees at most one Source per
// canonicalized path.
func (c *Cache) GetOrLoad(ctx context.Context, path string) (*project.Source, error) {
	canonical, err := securefs.CanonicalizePath(path)
	if err != nil {
		return nil, errors.Wrap(err).
			Component("sourcecache").
			Category(errors.CategorySecurePath).
			Context("path", path).
			Build()
	}

	c.mu.Lock()
	if src, ok := c.sources[canonical]; ok {
		c.mu.Unlock()
		src.Retain()
		return src, nil
	}
	if wg, ok := c.loading[canonical]; ok {
		c.mu.Unlock()
		wg.Wait()
		c.mu.Lock()
		src, ok := c.sources[canonical]
		c.mu.Unlock()
		if !ok {
			return nil, errors.New(errors.NewStd("concurrent decode of this path failed")).
				Component("sourcecache").
				Category(errors.CategoryDecode).
				Context("path", canonical).
				Build()
		}
		src.Retain()
		return src, nil
	}

	wg := &sync.WaitGroup{}
	wg.Add(1)
	c.loading[canonical] = wg
	c.mu.Unlock()

	src, decodeErr := c.decode(ctx, canonical)

	c.mu.Lock()
	delete(c.loading, canonical)
	if decodeErr == nil {
		c.sources[canonical] = src
		src.Retain()
	}
	c.mu.Unlock()
	wg.Done()

	if decodeErr != nil {
		c.logger.Error("failed to decode source", "path", canonical, "error", decodeErr)
		return nil, decodeErr
	}
	c.logger.Info("decoded source", "path", canonical,
		"sample_rate", src.SampleRate, "channels", src.Channels, "frames", src.TotalFrames)
	return src, nil
}

// EvictUnreferenced drops every cached Source whose reference count has
// reached zero (no live clips or undo records hold it). Called after any
// command commits, per the data model's lifecycle rule.
func (c *Cache) EvictUnreferenced() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for key, src := range c.sources {
		if src.RefCount() <= 0 {
			delete(c.sources, key)
			evicted++
		}
	}
	if evicted > 0 {
		c.logger.Debug("evicted unreferenced sources", "count", evicted)
	}
	return evicted
}

// Len returns the number of Sources currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sources)
}
