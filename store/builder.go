package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	codelists "github.com/opensafely-core/opencodelists-sub001"
	"github.com/opensafely-core/opencodelists-sub001/hierarchy"
	"github.com/opensafely-core/opencodelists-sub001/pkg/logger"
	"github.com/opensafely-core/opencodelists-sub001/service"
)

// DefaultCacheSize is the default number of hierarchies kept in memory.
const DefaultCacheSize = 1024

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithCacheSize sets the size of the in-memory tier.
func WithCacheSize(size int) BuilderOption {
	return func(b *Builder) {
		if size > 0 {
			b.cacheSize = size
		}
	}
}

// WithMetrics records builds and store lookups in m.
func WithMetrics(m *codelists.Metrics) BuilderOption {
	return func(b *Builder) {
		b.metrics = m
	}
}

// WithLogger sets the logger. Defaults to logger.Default().
func WithLogger(l *logger.Logger) BuilderOption {
	return func(b *Builder) {
		b.log = l
	}
}

// Builder returns cached hierarchies, building missing ones from the coding
// systems of a registry.
type Builder struct {
	registry service.CodingSystemRegistry
	store    Store

	cacheSize int
	hot       *lru.Cache[string, *hierarchy.Hierarchy]
	group     singleflight.Group

	metrics *codelists.Metrics
	log     *logger.Logger
}

// NewBuilder creates a Builder over registry and st. A nil st keeps
// hierarchies in memory only.
func NewBuilder(registry service.CodingSystemRegistry, st Store, opts ...BuilderOption) (*Builder, error) {
	if registry == nil {
		return nil, errors.New("store: registry is required")
	}
	b := &Builder{
		registry:  registry,
		store:     st,
		cacheSize: DefaultCacheSize,
		metrics:   codelists.NewMetrics(),
		log:       logger.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}

	hot, err := lru.New[string, *hierarchy.Hierarchy](b.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create hierarchy cache: %w", err)
	}
	b.hot = hot
	return b, nil
}

// Metrics returns the metrics the builder records into.
func (b *Builder) Metrics() *codelists.Metrics {
	return b.metrics
}

// Hierarchy returns the hierarchy for codes in the coding system systemID.
//
// The in-memory tier is consulted first, then the store; only when both
// miss is the coding system queried. Concurrent calls for the same key share
// one lookup. The shared lookup runs detached from any one caller's
// cancellation: a caller whose ctx ends gets ctx.Err() while the lookup
// completes for the others and fills the in-memory tier.
func (b *Builder) Hierarchy(ctx context.Context, systemID string, codes []string) (*hierarchy.Hierarchy, error) {
	key := Key(systemID, codes)
	if h, ok := b.hot.Get(key); ok {
		b.metrics.RecordStoreHit()
		return h, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := b.group.DoChan(key, func() (any, error) {
		// Double-check cache inside singleflight
		if h, ok := b.hot.Get(key); ok {
			b.metrics.RecordStoreHit()
			return h, nil
		}

		h, err := b.load(shared, key)
		if err != nil {
			return nil, err
		}
		if h == nil {
			if h, err = b.build(shared, key, systemID, codes); err != nil {
				return nil, err
			}
		}
		b.hot.Add(key, h)
		return h, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*hierarchy.Hierarchy), nil
	}
}

// load returns nil, nil on a store miss. Unreadable records count as misses.
func (b *Builder) load(ctx context.Context, key string) (*hierarchy.Hierarchy, error) {
	if b.store == nil {
		b.metrics.RecordStoreMiss()
		return nil, nil
	}

	rec, err := b.store.Get(ctx, key)
	switch {
	case errors.Is(err, ErrNotFound):
		b.metrics.RecordStoreMiss()
		return nil, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	case err != nil:
		b.metrics.RecordStoreError()
		b.metrics.RecordStoreMiss()
		b.log.Warn("reading hierarchy %s: %v", key, err)
		return nil, nil
	}

	h, err := hierarchy.FromCacheRecord(rec)
	if err != nil {
		b.metrics.RecordStoreError()
		b.metrics.RecordStoreMiss()
		b.log.Warn("discarding cached hierarchy %s: %v", key, err)
		return nil, nil
	}
	b.metrics.RecordStoreHit()
	b.log.Debug("loaded hierarchy %s (%d nodes)", key, h.Len())
	return h, nil
}

func (b *Builder) build(ctx context.Context, key, systemID string, codes []string) (*hierarchy.Hierarchy, error) {
	cs, ok := b.registry.CodingSystem(systemID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCodingSystem, systemID)
	}

	start := time.Now()
	h, err := hierarchy.FromCodes(ctx, cs, codes)
	if err != nil {
		return nil, fmt.Errorf("build hierarchy for %s: %w", systemID, err)
	}
	elapsed := time.Since(start)
	b.metrics.RecordBuild(elapsed)
	b.log.Info("built hierarchy for %d codes in %s: %d nodes in %s", len(codes), systemID, h.Len(), elapsed)

	if err := b.put(ctx, key, h); err != nil {
		b.log.Warn("caching hierarchy %s: %v", key, err)
	}
	return h, nil
}

// Save writes h, including memo tables filled since it was loaded, back to
// the store and refreshes the in-memory tier.
func (b *Builder) Save(ctx context.Context, systemID string, codes []string, h *hierarchy.Hierarchy) error {
	key := Key(systemID, codes)
	b.hot.Add(key, h)
	return b.put(ctx, key, h)
}

func (b *Builder) put(ctx context.Context, key string, h *hierarchy.Hierarchy) error {
	stats := h.MemoStats()
	b.metrics.RecordMemo(stats.Ancestors, stats.Descendants)
	if b.store == nil {
		return nil
	}
	if err := b.store.Put(ctx, key, h.ToCacheRecord()); err != nil {
		b.metrics.RecordStoreError()
		return err
	}
	return nil
}

// Purge empties the in-memory tier.
func (b *Builder) Purge() {
	b.hot.Purge()
}

// Close closes the underlying store.
func (b *Builder) Close() error {
	b.hot.Purge()
	if b.store == nil {
		return nil
	}
	return b.store.Close()
}
