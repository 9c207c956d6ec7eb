// Package observability provides OpenTelemetry tracing and metrics for
// stream clients.
//
// Binaries install OTLP HTTP exporters once:
//
//	cfg := observability.DefaultConfig("streamkit")
//	shutdown, err := observability.Init(ctx, &cfg)
//	defer shutdown(ctx)
//
// Without Init the global no-op providers are used, so instrumented code
// costs little when export is off:
//
//	metrics, err := observability.NewStreamMetrics(observability.Meter("streamkit"))
//	metrics.RecordEvent(ctx, "feed", "message")
//
// Each connection attempt is traced with a ConnectAttempt:
//
//	a := &observability.ConnectAttempt{Client: "feed", URL: url, Metrics: metrics}
//	ctx = observability.StartConnect(ctx, a)
//	defer a.End(ctx, observability.OutcomeOpen, nil)
package observability
