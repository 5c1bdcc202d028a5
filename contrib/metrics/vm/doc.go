// Package vm provides a VictoriaMetrics-based implementation of the MetricsCollector interface.
//
// This package uses github.com/VictoriaMetrics/metrics for lightweight,
// high-performance Prometheus-compatible metrics collection.
//
// # Basic Usage
//
// Create a collector with default prefix "opcda":
//
//	collector := vm.New()
//	client, _ := opcda.NewClient(connector,
//	    opcda.WithMetrics(collector),
//	)
//
// # Custom Prefix
//
// Use WithPrefix to customize the metric name prefix:
//
//	collector := vm.New(vm.WithPrefix("myapp"))
//
// This produces metrics like:
//   - myapp_op_total{op="read"}
//   - myapp_op_duration_seconds{op="browse_tags"}
//
// # Exposing Metrics
//
// Use the Handler method to expose metrics via HTTP:
//
//	http.HandleFunc("/metrics", collector.Handler)
//	http.ListenAndServe(":8080", nil)
//
// Or use WritePrometheus to write metrics to a custom writer:
//
//	collector.WritePrometheus(w)
//
// # Metrics Provided
//
// Per operation (op is one of list_servers, browse_tags, read, write):
//   - {prefix}_op_total{op} - Counter of operations
//   - {prefix}_op_errors_total{op} - Counter of failed operations
//   - {prefix}_op_timeouts_total{op} - Counter of timed-out operations
//   - {prefix}_op_duration_seconds{op} - Histogram of operation latencies
//
// Engine health:
//   - {prefix}_partial_browses_total - Counter of browses returning a partial harvest
//   - {prefix}_reconnects_total - Counter of session evictions and reconnects
//   - {prefix}_tags_discovered_total - Counter of tags discovered by browses
//
// # Performance Notes
//
// This implementation pre-creates all metrics at initialization time
// using the NewXXX pattern (instead of GetOrCreateXXX) for optimal
// performance in hot paths, as recommended by the VictoriaMetrics documentation.
//
// The metrics are registered with a dedicated Set that is registered
// globally, allowing standard Prometheus scraping.
package vm
