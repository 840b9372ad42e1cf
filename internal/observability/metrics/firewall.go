package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FirewallMetrics counts tool calls through the context firewall. It
// satisfies the gateway's observer hook.
type FirewallMetrics struct {
	service string

	toolCallsTotal   *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec
	toolResultBytes  *prometheus.HistogramVec
}

// NewFirewallMetrics registers the firewall collectors on an existing
// registry so API and MCP processes expose them next to their other
// series.
func NewFirewallMetrics(service string, registry *prometheus.Registry) *FirewallMetrics {
	toolCallsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "copilot",
			Subsystem: "firewall",
			Name:      "tool_calls_total",
			Help:      "Total tool calls through the firewall by outcome.",
		},
		[]string{"service", "tool", "outcome"},
	)
	toolCallDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "copilot",
			Subsystem: "firewall",
			Name:      "tool_call_duration_seconds",
			Help:      "Tool call duration in seconds, audit append included.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "tool"},
	)
	toolResultBytes := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "copilot",
			Subsystem: "firewall",
			Name:      "tool_result_bytes",
			Help:      "Shaped result payload size in bytes.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		},
		[]string{"service", "tool"},
	)

	registry.MustRegister(toolCallsTotal, toolCallDuration, toolResultBytes)

	return &FirewallMetrics{
		service:          service,
		toolCallsTotal:   toolCallsTotal,
		toolCallDuration: toolCallDuration,
		toolResultBytes:  toolResultBytes,
	}
}

func (m *FirewallMetrics) ObserveToolCall(tool, outcome string, resultSize int, elapsed time.Duration) {
	m.toolCallsTotal.WithLabelValues(m.service, tool, outcome).Inc()
	m.toolCallDuration.WithLabelValues(m.service, tool).Observe(elapsed.Seconds())
	if resultSize > 0 {
		m.toolResultBytes.WithLabelValues(m.service, tool).Observe(float64(resultSize))
	}
}
