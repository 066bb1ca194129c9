// Package telemetry instruments the bridge with OpenTelemetry counters.
// Metrics use the global MeterProvider; configure it before serving traffic
// (for example via clue.ConfigureOpenTelemetry or OTEL environment
// variables).
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records bridge-level counters. The zero value is a no-op, so call
// sites never need nil checks.
type Metrics struct {
	turns    metric.Int64Counter
	widgets  metric.Int64Counter
	upstream metric.Int64Counter
}

// NewMetrics builds the bridge counters against the global meter.
func NewMetrics() *Metrics {
	meter := otel.Meter("github.com/estia-labs/chatbridge")
	m := &Metrics{}
	m.turns, _ = meter.Int64Counter("chatbridge.turns",
		metric.WithDescription("Completed turn count by outcome"))
	m.widgets, _ = meter.Int64Counter("chatbridge.widgets",
		metric.WithDescription("Rendered widget count by rule"))
	m.upstream, _ = meter.Int64Counter("chatbridge.upstream_errors",
		metric.WithDescription("Upstream agent API error count"))
	return m
}

// Turn records a completed turn with its outcome ("message", "results",
// "error").
func (m *Metrics) Turn(ctx context.Context, outcome string) {
	if m == nil || m.turns == nil {
		return
	}
	m.turns.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// Widget records one rendered widget attributed to its rule.
func (m *Metrics) Widget(ctx context.Context, rule string) {
	if m == nil || m.widgets == nil {
		return
	}
	m.widgets.Add(ctx, 1, metric.WithAttributes(attribute.String("rule", rule)))
}

// UpstreamError records one failed upstream call.
func (m *Metrics) UpstreamError(ctx context.Context) {
	if m == nil || m.upstream == nil {
		return
	}
	m.upstream.Add(ctx, 1)
}
