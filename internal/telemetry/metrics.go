// Package telemetry records engine counters through OpenTelemetry. The
// global meter provider is used, so everything is a no-op unless the host
// application wires an SDK.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/thebtf/contextd"

// Metrics holds the engine's counters. Soft failures are surfaced here and
// in logs; they never abort a conversation turn.
type Metrics struct {
	resolutions  metric.Int64Counter
	budgetSkips  metric.Int64Counter
	summarize    metric.Int64Counter
	extractions  metric.Int64Counter
	archivedMsgs metric.Int64Counter
}

// New creates the engine metrics on the global meter provider. Instrument
// creation errors are ignored; the otel API returns usable no-op
// instruments alongside them.
func New() *Metrics {
	meter := otel.Meter(meterName)

	m := &Metrics{}
	m.resolutions, _ = meter.Int64Counter("contextd.skills.resolutions",
		metric.WithDescription("Skill resolution passes"))
	m.budgetSkips, _ = meter.Int64Counter("contextd.skills.budget_skips",
		metric.WithDescription("Skills skipped because the token budget was full"))
	m.summarize, _ = meter.Int64Counter("contextd.summarize.passes",
		metric.WithDescription("Summarization passes by outcome"))
	m.extractions, _ = meter.Int64Counter("contextd.memory.extractions",
		metric.WithDescription("Memory extraction passes by outcome"))
	m.archivedMsgs, _ = meter.Int64Counter("contextd.summarize.archived_messages",
		metric.WithDescription("Messages archived by summarization"))
	return m
}

// RecordResolution records one skill resolution with its budget skip count.
func (m *Metrics) RecordResolution(ctx context.Context, skipped int) {
	if m == nil {
		return
	}
	m.resolutions.Add(ctx, 1)
	if skipped > 0 {
		m.budgetSkips.Add(ctx, int64(skipped))
	}
}

// RecordSummarizePass records one summarization pass outcome.
func (m *Metrics) RecordSummarizePass(ctx context.Context, outcome string, archived int) {
	if m == nil {
		return
	}
	m.summarize.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	if archived > 0 {
		m.archivedMsgs.Add(ctx, int64(archived))
	}
}

// RecordExtraction records one memory extraction outcome.
func (m *Metrics) RecordExtraction(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.extractions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
