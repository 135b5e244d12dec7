package codelists

import (
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/opensafely-core/opencodelists-sub001/definition"
	"github.com/opensafely-core/opencodelists-sub001/pkg/logger"
)

// ErrInvalidOptions is returned by Options.Validate.
var ErrInvalidOptions = errors.New("codelists: invalid options")

// Option configures the engine.
type Option func(*Options)

// Options holds all configuration shared by the store and the CLI.
type Options struct {
	// Compaction
	NoiseTolerance float64

	// Hierarchy cache
	CacheSize     int
	StorePath     string
	InMemoryStore bool

	// Runtime
	LogLevel logger.Level
	Workers  int
}

// DefaultOptions returns the default configuration.
func DefaultOptions() *Options {
	return &Options{
		NoiseTolerance: definition.DefaultNoiseTolerance,
		CacheSize:      1024,
		InMemoryStore:  true,
		LogLevel:       logger.LevelInfo,
		Workers:        runtime.NumCPU(),
	}
}

// NewOptions applies opts on top of DefaultOptions.
func NewOptions(opts ...Option) *Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Validate reports the first inconsistent setting.
func (o *Options) Validate() error {
	if o.NoiseTolerance < 0 || math.IsNaN(o.NoiseTolerance) || math.IsInf(o.NoiseTolerance, 0) {
		return fmt.Errorf("%w: noise tolerance %v must be a finite number >= 0", ErrInvalidOptions, o.NoiseTolerance)
	}
	if o.CacheSize <= 0 {
		return fmt.Errorf("%w: cache size %d must be positive", ErrInvalidOptions, o.CacheSize)
	}
	if !o.InMemoryStore && o.StorePath == "" {
		return fmt.Errorf("%w: a store path is required unless the store is in memory", ErrInvalidOptions)
	}
	if o.Workers <= 0 {
		return fmt.Errorf("%w: workers %d must be positive", ErrInvalidOptions, o.Workers)
	}
	return nil
}

// --- Compaction Options ---

// WithNoiseTolerance sets the off-target ratio below which a concept is
// described by one include-with-descendants rule plus exclusions.
func WithNoiseTolerance(r float64) Option {
	return func(o *Options) {
		o.NoiseTolerance = r
	}
}

// --- Cache Options ---

// WithCacheSize sets the number of hierarchies kept in the memory tier.
func WithCacheSize(size int) Option {
	return func(o *Options) {
		if size > 0 {
			o.CacheSize = size
		}
	}
}

// WithStorePath persists hierarchy records under dir.
func WithStorePath(dir string) Option {
	return func(o *Options) {
		o.StorePath = dir
		o.InMemoryStore = dir == ""
	}
}

// WithInMemoryStore keeps hierarchy records in memory only.
func WithInMemoryStore() Option {
	return func(o *Options) {
		o.StorePath = ""
		o.InMemoryStore = true
	}
}

// --- Runtime Options ---

// WithLogLevel sets the logging level.
func WithLogLevel(level logger.Level) Option {
	return func(o *Options) {
		o.LogLevel = level
	}
}

// WithWorkers sets how many inputs the CLI processes concurrently.
// Defaults to runtime.NumCPU().
func WithWorkers(count int) Option {
	return func(o *Options) {
		if count > 0 {
			o.Workers = count
		}
	}
}
