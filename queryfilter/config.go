package queryfilter

import (
	"log/slog"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

// Config controls a CommonQueryFilter's construction behavior. Build it
// with NewConfig and With* option functions the way spinner.New takes its tuning
// parameters, rather than a struct literal with unexported defaults
// scattered across the package.
type Config struct {
	BlockCapacity      uint32
	SegmentCapacity    uint32
	WorkerConcurrency  int
	Logger             *slog.Logger
	PanicOnInvariant   bool
	Metrics            prometheus.Registerer // nil disables ConstructionMetrics
	BlockCacheCapacity int                   // distinct (segment, block, column-set) entries; <= 0 disables the cache
}

// Option mutates a Config under construction.
type Option func(*Config)

// WithBlockCapacity overrides the default block row count. Must be a
// power of two; not validated here, since doing so would require
// threading an error back through NewConfig that every caller would
// have to check for a value they almost never change.
func WithBlockCapacity(n uint32) Option { return func(c *Config) { c.BlockCapacity = n } }

// WithSegmentCapacity overrides the default segment row count.
func WithSegmentCapacity(n uint32) Option { return func(c *Config) { c.SegmentCapacity = n } }

// WithWorkerConcurrency bounds the number of segment-construction tasks
// run concurrently. n <= 0 is treated as "use GOMAXPROCS".
func WithWorkerConcurrency(n int) Option { return func(c *Config) { c.WorkerConcurrency = n } }

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option { return func(c *Config) { c.Logger = l } }

// WithPanicOnInvariant makes construction panic with *InvariantError
// instead of recovering it into a returned error. Tests want the panic;
// a production worker pool usually wants the error so one broken
// segment doesn't take down the whole pool.
func WithPanicOnInvariant(v bool) Option { return func(c *Config) { c.PanicOnInvariant = v } }

// WithMetrics registers ConstructionMetrics against reg. Passing nil
// (the default) leaves metrics disabled.
func WithMetrics(reg prometheus.Registerer) Option { return func(c *Config) { c.Metrics = reg } }

// WithBlockCacheCapacity bounds the number of distinct (segment, block,
// column-set) DataBlocks the leftover pass's block cache admits. n <= 0
// disables the cache outright, which is still correct: every block the
// leftover pass needs is then read through the block reader.
func WithBlockCacheCapacity(n int) Option { return func(c *Config) { c.BlockCacheCapacity = n } }

// NewConfig builds a Config with package defaults, then applies opts in
// order.
func NewConfig(opts ...Option) Config {
	c := Config{
		BlockCapacity:      BlockCapacity,
		SegmentCapacity:    SegmentCapacity,
		WorkerConcurrency:  runtime.GOMAXPROCS(-1),
		Logger:             slog.Default(),
		BlockCacheCapacity: 256,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.WorkerConcurrency <= 0 {
		c.WorkerConcurrency = runtime.GOMAXPROCS(-1)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
