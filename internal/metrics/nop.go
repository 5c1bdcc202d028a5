// Package metrics provides internal metrics utilities for the OPC DA engine.
package metrics

import "github.com/wends155/opc-cli-sub000/types"

// NopMetrics is a no-op metrics collector that discards all metrics.
//
// This is used as the default metrics collector when no collector is configured,
// avoiding nil checks throughout the codebase.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements types.MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNopMetrics creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A collector that discards all metrics
func NewNopMetrics() *NopMetrics {
	return &NopMetrics{}
}

// IncOpTotal discards the metric.
func (m *NopMetrics) IncOpTotal(_ types.OpKind) {}

// IncOpError discards the metric.
func (m *NopMetrics) IncOpError(_ types.OpKind) {}

// ObserveOpDuration discards the metric.
func (m *NopMetrics) ObserveOpDuration(_ types.OpKind, _ float64) {}

// IncTimeout discards the metric.
func (m *NopMetrics) IncTimeout(_ types.OpKind) {}

// IncPartialBrowse discards the metric.
func (m *NopMetrics) IncPartialBrowse() {}

// IncReconnect discards the metric.
func (m *NopMetrics) IncReconnect() {}

// AddTagsDiscovered discards the metric.
func (m *NopMetrics) AddTagsDiscovered(_ int) {}
