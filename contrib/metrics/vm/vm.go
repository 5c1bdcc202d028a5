package vm

import (
	"fmt"
	"io"
	"net/http"

	"github.com/VictoriaMetrics/metrics"

	"github.com/wends155/opc-cli-sub000/types"
)

// opNames are the label values used for per-operation metrics.
var opNames = map[types.OpKind]string{
	types.OpListServers: "list_servers",
	types.OpBrowseTags:  "browse_tags",
	types.OpRead:        "read",
	types.OpWrite:       "write",
}

// Option configures a Collector.
type Option func(*Collector)

// WithPrefix sets the metric name prefix.
//
// Default: "opcda"
//
// Parameters:
//   - prefix: The prefix to use for all metric names
//
// Returns:
//   - Option: A configuration option
func WithPrefix(prefix string) Option {
	return func(c *Collector) {
		c.prefix = prefix
	}
}

// WithMetricsSet sets the metrics set to use.
//
// If provided, the collector will register metrics with this set instead of
// creating a new one. The caller is responsible for exposing this set
// (e.g., via metrics.WritePrometheus or a custom handler).
//
// Parameters:
//   - set: The metrics set to use
//
// Returns:
//   - Option: A configuration option
func WithMetricsSet(set *metrics.Set) Option {
	return func(c *Collector) {
		c.set = set
	}
}

// opMetrics is the per-operation metric family.
type opMetrics struct {
	total    *metrics.Counter
	errors   *metrics.Counter
	timeouts *metrics.Counter
	duration *metrics.Histogram
}

// Collector implements types.MetricsCollector using VictoriaMetrics.
//
// All metrics are pre-created at initialization time for optimal performance.
// Thread-safe for concurrent use.
type Collector struct {
	set    *metrics.Set
	prefix string

	ops map[types.OpKind]*opMetrics

	partialBrowses *metrics.Counter
	reconnects     *metrics.Counter
	tagsDiscovered *metrics.Counter
}

// Compile-time assertion that Collector implements types.MetricsCollector.
var _ types.MetricsCollector = (*Collector)(nil)

// New creates a new VictoriaMetrics-based metrics collector.
//
// The collector creates its own metrics.Set and registers it globally.
// All metrics are pre-created at initialization for optimal performance.
//
// Parameters:
//   - opts: Configuration options (e.g., WithPrefix)
//
// Returns:
//   - *Collector: A new metrics collector ready for use
//
// Example:
//
//	collector := vm.New(vm.WithPrefix("myapp"))
//	client, _ := opcda.NewClient(connector,
//	    opcda.WithMetrics(collector),
//	)
func New(opts ...Option) *Collector {
	c := &Collector{prefix: "opcda"}

	for _, opt := range opts {
		opt(c)
	}

	// If no set is provided, create a new one and register it globally.
	// If a set is provided, we assume the caller manages it.
	if c.set == nil {
		c.set = metrics.NewSet()
		metrics.RegisterSet(c.set)
	}

	c.initMetrics()

	return c
}

// initMetrics pre-creates all metrics with the configured prefix.
func (c *Collector) initMetrics() {
	p := c.prefix

	c.ops = make(map[types.OpKind]*opMetrics, len(opNames))
	for op, name := range opNames {
		c.ops[op] = &opMetrics{
			total:    c.set.NewCounter(fmt.Sprintf(`%s_op_total{op="%s"}`, p, name)),
			errors:   c.set.NewCounter(fmt.Sprintf(`%s_op_errors_total{op="%s"}`, p, name)),
			timeouts: c.set.NewCounter(fmt.Sprintf(`%s_op_timeouts_total{op="%s"}`, p, name)),
			duration: c.set.NewHistogram(fmt.Sprintf(`%s_op_duration_seconds{op="%s"}`, p, name)),
		}
	}

	c.partialBrowses = c.set.NewCounter(p + "_partial_browses_total")
	c.reconnects = c.set.NewCounter(p + "_reconnects_total")
	c.tagsDiscovered = c.set.NewCounter(p + "_tags_discovered_total")
}

func (c *Collector) Set() *metrics.Set {
	return c.set
}

// Handler returns an HTTP handler that exposes metrics in Prometheus format.
//
// Example:
//
//	http.HandleFunc("/metrics", collector.Handler)
func (c *Collector) Handler(w http.ResponseWriter, _ *http.Request) {
	c.set.WritePrometheus(w)
}

// WritePrometheus writes all metrics in Prometheus format to the given writer.
//
// Parameters:
//   - w: The writer to write metrics to
func (c *Collector) WritePrometheus(w io.Writer) {
	c.set.WritePrometheus(w)
}

// op returns the metric family for an operation, falling back to read for
// unknown kinds so a miswired caller never panics the hot path.
func (c *Collector) op(kind types.OpKind) *opMetrics {
	if m, ok := c.ops[kind]; ok {
		return m
	}

	return c.ops[types.OpRead]
}

// IncOpTotal increments the total operations counter.
func (c *Collector) IncOpTotal(kind types.OpKind) {
	c.op(kind).total.Inc()
}

// IncOpError increments the failed operations counter.
func (c *Collector) IncOpError(kind types.OpKind) {
	c.op(kind).errors.Inc()
}

// ObserveOpDuration records an operation latency in seconds.
func (c *Collector) ObserveOpDuration(kind types.OpKind, seconds float64) {
	c.op(kind).duration.Update(seconds)
}

// IncTimeout increments the timed-out operations counter.
func (c *Collector) IncTimeout(kind types.OpKind) {
	c.op(kind).timeouts.Inc()
}

// IncPartialBrowse increments the partial browse results counter.
func (c *Collector) IncPartialBrowse() {
	c.partialBrowses.Inc()
}

// IncReconnect increments the session reconnects counter.
func (c *Collector) IncReconnect() {
	c.reconnects.Inc()
}

// AddTagsDiscovered adds to the discovered tags counter.
func (c *Collector) AddTagsDiscovered(n int) {
	if n > 0 {
		c.tagsDiscovered.Add(n)
	}
}
