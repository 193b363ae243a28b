package rangeloader

import (
	"time"

	"github.com/pkg/errors"

	"github.com/Fantom-foundation/rangeview/chunkcache"
	"github.com/Fantom-foundation/rangeview/utils/cachescale"
)

// Options are the per-session loading parameters.
type Options struct {
	ChunkSize       int // Fetch granularity, in items
	InitialLoadSize int // Number of items loaded synchronously by Load
	LoadAheadFactor int // Prefetch range length, in chunks

	EnableVirtualization bool
	EnableStreaming      bool

	StreamFlushInterval time.Duration // Idle time before a partial stream buffer is flushed, 0 disables
}

// Option overrides a single Options field.
type Option func(*Options)

func WithChunkSize(n int) Option {
	return func(o *Options) {
		o.ChunkSize = n
	}
}

func WithInitialLoadSize(n int) Option {
	return func(o *Options) {
		o.InitialLoadSize = n
	}
}

func WithLoadAheadFactor(n int) Option {
	return func(o *Options) {
		o.LoadAheadFactor = n
	}
}

func WithVirtualization(enabled bool) Option {
	return func(o *Options) {
		o.EnableVirtualization = enabled
	}
}

func WithStreaming(enabled bool) Option {
	return func(o *Options) {
		o.EnableStreaming = enabled
	}
}

func WithStreamFlushInterval(interval time.Duration) Option {
	return func(o *Options) {
		o.StreamFlushInterval = interval
	}
}

// Validate checks the options are usable.
func (o Options) Validate() error {
	if o.ChunkSize <= 0 {
		return errors.Errorf("chunk size must be positive, got %d", o.ChunkSize)
	}
	if o.InitialLoadSize < 0 {
		return errors.Errorf("initial load size must be non-negative, got %d", o.InitialLoadSize)
	}
	if o.LoadAheadFactor < 0 {
		return errors.Errorf("load ahead factor must be non-negative, got %d", o.LoadAheadFactor)
	}
	return nil
}

// Config is the loader configuration. The memory budget is shared by all the sessions.
type Config struct {
	Load Options // Defaults for every Load call

	MaxMemoryUsage uint64  // Memory budget of the chunk cache, in estimated bytes
	LowWatermark   float64 // Share of the budget an eviction pass shrinks the cache to

	MetadataCacheSize int // Number of sources whose metadata is cached

	MaxParallelFetches int    // Maximum number of parallel chunk fetches
	MaxFetchingItems   uint64 // Maximum number of items being fetched at once

	PrefetchWorkers     int // Number of goroutines running prefetches
	MaxQueuedPrefetches int // Prefetches are dropped if the queue is full

	PerfLogSize int // Number of load samples kept by the performance monitor

	SizeOf chunkcache.SizeFunc // Payload size estimator
}

// DefaultConfig returns the default loader config.
func DefaultConfig(scale cachescale.Func) Config {
	return Config{
		Load: Options{
			ChunkSize:            1000,
			InitialLoadSize:      100,
			LoadAheadFactor:      2,
			EnableVirtualization: true,
			EnableStreaming:      true,
		},
		MaxMemoryUsage:      scale.U64(100 * 1024 * 1024),
		LowWatermark:        chunkcache.DefaultLowWatermark,
		MetadataCacheSize:   scale.I(256),
		MaxParallelFetches:  16,
		MaxFetchingItems:    scale.U64(64 * 1000),
		PrefetchWorkers:     2,
		MaxQueuedPrefetches: 8,
		PerfLogSize:         100,
		SizeOf:              chunkcache.EstimateSize,
	}
}

// LiteConfig returns the loader config for tests.
func LiteConfig() Config {
	cfg := DefaultConfig(cachescale.Ratio{Base: 100, Target: 1})
	cfg.Load.ChunkSize = 100
	cfg.Load.InitialLoadSize = 50
	cfg.MaxParallelFetches = 4
	cfg.PrefetchWorkers = 1
	return cfg
}

// Validate checks the config is usable.
func (c Config) Validate() error {
	if err := c.Load.Validate(); err != nil {
		return err
	}
	if c.MaxMemoryUsage == 0 {
		return errors.New("memory budget must be positive")
	}
	if c.MetadataCacheSize <= 0 || c.MaxParallelFetches <= 0 || c.PrefetchWorkers <= 0 || c.MaxQueuedPrefetches <= 0 {
		return errors.New("cache, fetch and prefetch limits must be positive")
	}
	if c.SizeOf == nil {
		return errors.New("size estimator is missing")
	}
	return nil
}
