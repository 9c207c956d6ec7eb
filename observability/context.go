package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Connect outcomes.
const (
	OutcomeOpen    = "open"
	OutcomeFailed  = "failed"
	OutcomeAborted = "aborted"
)

// ConnectAttempt tracks one connection attempt as a span and a duration sample.
type ConnectAttempt struct {
	Client    string
	URL       string
	Dialect   string
	Attempt   int
	StartTime time.Time
	Metrics   *StreamMetrics

	span trace.Span
	done bool
}

// StartConnect starts a SpanConnect span for one attempt.
// If metrics is nil, metric recording is silently skipped.
func StartConnect(ctx context.Context, a *ConnectAttempt) context.Context {
	if a.StartTime.IsZero() {
		a.StartTime = time.Now()
	}
	ctx, a.span = StartSpan(ctx, SpanConnect, trace.WithSpanKind(trace.SpanKindClient))
	a.span.SetAttributes(
		attribute.String(AttrClient, a.Client),
		attribute.String(AttrURL, a.URL),
		attribute.String(AttrDialect, a.Dialect),
		attribute.Int(AttrAttempt, a.Attempt),
	)
	return ctx
}

// End closes the span with outcome and records its duration. Later calls are no-ops.
func (a *ConnectAttempt) End(ctx context.Context, outcome string, err error) {
	if a == nil || a.done {
		return
	}
	a.done = true
	duration := a.Duration()

	if a.span != nil {
		recordError(a.span, err)
		a.span.SetAttributes(
			attribute.String(AttrOutcome, outcome),
			attribute.Int64(AttrDurationMs, duration.Milliseconds()),
		)
		a.span.End()
	}

	a.Metrics.RecordConnect(ctx, a.Client, outcome, duration)
}

// Duration returns the elapsed time since the attempt started.
func (a *ConnectAttempt) Duration() time.Duration {
	return time.Since(a.StartTime)
}
