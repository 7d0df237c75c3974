package mcp

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// mcpToolExecutions tracks total MCP tool executions.
	mcpToolExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recall_mcp_tool_executions_total",
			Help: "Total number of MCP tool executions",
		},
		[]string{"tool_name", "status"},
	)

	// mcpToolLatency tracks MCP tool execution latency.
	mcpToolLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recall_mcp_tool_latency_seconds",
			Help:    "MCP tool execution latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool_name"},
	)
)

// RecordToolExecution records a tool execution metric.
func RecordToolExecution(toolName, status string, latency time.Duration) {
	mcpToolExecutions.WithLabelValues(toolName, status).Inc()
	mcpToolLatency.WithLabelValues(toolName).Observe(latency.Seconds())
}
