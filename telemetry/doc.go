// Package telemetry carries structured events out of the guardrail core.
//
// The core never formats or ships its own observability data. Every state
// transition, checkout rejection, and retry attempt is handed to an Emitter
// as an Event (kind, name, attributes); what happens next is the embedding
// application's business.
//
// # Emitters
//
// Three emitters ship with the package and can be fanned out with Multi:
//
//   - LogEmitter writes events as structured zap log lines.
//   - MeterEmitter counts events on an OpenTelemetry meter.
//   - Nop discards everything (the default when none is configured).
//
// # Observer
//
// Observer bundles a tracer, meter, and logger behind one handle with an
// exporter factory (otlp, prometheus, stdout, none), for applications that
// want the guardrail core to share their telemetry pipeline:
//
//	obs, err := telemetry.NewObserver(ctx, telemetry.Config{
//	    ServiceName: "payments",
//	    Metrics:     telemetry.MetricsConfig{Enabled: true, Exporter: "prometheus"},
//	})
//	emitter := telemetry.NewMeterEmitter(obs.Meter())
package telemetry
