package opcda

import (
	"time"

	"github.com/wends155/opc-cli-sub000/internal/logging"
	"github.com/wends155/opc-cli-sub000/internal/metrics"
	"github.com/wends155/opc-cli-sub000/types"
)

// Default operation bounds. Browse and read can legitimately take minutes on
// large namespaces over DCOM; writes are single-item and should be quick.
const (
	DefaultListTimeout   = 300 * time.Second
	DefaultBrowseTimeout = 300 * time.Second
	DefaultReadTimeout   = 300 * time.Second
	DefaultWriteTimeout  = 10 * time.Second

	DefaultMaxBrowseDepth = 50
	DefaultMaxBrowseTags  = 10000
)

// ClientConfig holds configuration for the OPC DA client.
type ClientConfig struct {
	ListTimeout   time.Duration
	BrowseTimeout time.Duration
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration

	MaxBrowseDepth int
	MaxBrowseTags  int

	Metrics types.MetricsCollector
	Logger  types.Logger
}

// DefaultConfig returns a ClientConfig with sensible defaults.
//
// Returns:
//   - *ClientConfig: Configuration with default settings
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		ListTimeout:    DefaultListTimeout,
		BrowseTimeout:  DefaultBrowseTimeout,
		ReadTimeout:    DefaultReadTimeout,
		WriteTimeout:   DefaultWriteTimeout,
		MaxBrowseDepth: DefaultMaxBrowseDepth,
		MaxBrowseTags:  DefaultMaxBrowseTags,
		Metrics:        metrics.NewNopMetrics(),
		Logger:         logging.NewNopLogger(),
	}
}

// Option configures a ClientConfig.
type Option func(*ClientConfig)

// WithListTimeout sets the timeout for server enumeration.
func WithListTimeout(d time.Duration) Option {
	return func(c *ClientConfig) {
		c.ListTimeout = d
	}
}

// WithBrowseTimeout sets the timeout for namespace browsing. A browse that
// exceeds it returns the partial result harvested so far.
func WithBrowseTimeout(d time.Duration) Option {
	return func(c *ClientConfig) {
		c.BrowseTimeout = d
	}
}

// WithReadTimeout sets the timeout for batch reads.
func WithReadTimeout(d time.Duration) Option {
	return func(c *ClientConfig) {
		c.ReadTimeout = d
	}
}

// WithWriteTimeout sets the timeout for single-tag writes.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *ClientConfig) {
		c.WriteTimeout = d
	}
}

// WithMaxBrowseDepth caps hierarchical namespace recursion.
//
// Parameters:
//   - depth: Maximum branch nesting to descend into
//
// Returns:
//   - Option: Configuration option
func WithMaxBrowseDepth(depth int) Option {
	return func(c *ClientConfig) {
		c.MaxBrowseDepth = depth
	}
}

// WithMaxBrowseTags caps the number of tags a single browse discovers.
func WithMaxBrowseTags(n int) Option {
	return func(c *ClientConfig) {
		c.MaxBrowseTags = n
	}
}

// WithLogger sets a custom logger.
//
// Parameters:
//   - logger: The logger implementation
//
// Returns:
//   - Option: Configuration option
func WithLogger(logger types.Logger) Option {
	return func(c *ClientConfig) {
		c.Logger = logger
	}
}

// WithMetrics sets a custom metrics collector.
//
// Parameters:
//   - collector: The metrics collector implementation
//
// Returns:
//   - Option: Configuration option
func WithMetrics(collector types.MetricsCollector) Option {
	return func(c *ClientConfig) {
		c.Metrics = collector
	}
}
