package types

// Logger is the minimal structured logging interface used throughout the
// library. The signature is compatible with zap.SugaredLogger's key-value
// methods (Debugw/Infow/...), so a sugared zap logger can be adapted with
// contrib/logging/zap.
//
// Implementations must be safe for concurrent use.
type Logger interface {
	// Debug logs a message at debug level with alternating key-value pairs.
	Debug(msg string, keysAndValues ...any)

	// Info logs a message at info level with alternating key-value pairs.
	Info(msg string, keysAndValues ...any)

	// Warn logs a message at warn level with alternating key-value pairs.
	Warn(msg string, keysAndValues ...any)

	// Error logs a message at error level with alternating key-value pairs.
	Error(msg string, keysAndValues ...any)
}

// OpKind labels an operation for metrics.
type OpKind string

// Operation kinds as they appear in metric labels.
const (
	OpListServers OpKind = "list_servers"
	OpBrowseTags  OpKind = "browse_tags"
	OpRead        OpKind = "read_tag_values"
	OpWrite       OpKind = "write_tag_value"
)

// MetricsCollector defines methods for collecting operational metrics.
//
// Implementations must be thread-safe as methods may be called concurrently
// from the dispatcher worker and from caller-side timeout handling.
//
// Example usage with VictoriaMetrics (via contrib/metrics/vm):
//
//	collector := vm.New(vm.WithPrefix("myapp"))
//	client, _ := opcda.NewClient(connector,
//	    opcda.WithMetrics(collector),
//	)
type MetricsCollector interface {
	// IncOpTotal increments the total operations counter for the given kind.
	IncOpTotal(op OpKind)

	// IncOpError increments the error counter for the given kind.
	IncOpError(op OpKind)

	// ObserveOpDuration records an operation duration in seconds.
	ObserveOpDuration(op OpKind, seconds float64)

	// IncTimeout increments the caller-side timeout counter for the given kind.
	IncTimeout(op OpKind)

	// IncPartialBrowse increments the counter of browse calls that timed out
	// but returned a non-empty partial result.
	IncPartialBrowse()

	// IncReconnect increments the counter of cache evict-and-reconnect cycles
	// triggered by connection-class faults.
	IncReconnect()

	// AddTagsDiscovered adds to the running total of tags discovered by
	// browse operations.
	AddTagsDiscovered(n int)
}
