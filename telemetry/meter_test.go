package telemetry

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	return rm
}

func sumFor(rm metricdata.ResourceMetrics, name string) (int64, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				return 0, false
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total, true
		}
	}
	return 0, false
}

func TestMeterEmitter_Counts(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	em, err := NewMeterEmitter(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMeterEmitter() error = %v", err)
	}

	ctx := context.Background()
	em.Emit(ctx, Event{Kind: EventRetryAttempt, Name: "db"})
	em.Emit(ctx, Event{Kind: EventCheckoutRejected, Name: "db"})
	em.Emit(ctx, Event{Kind: EventCheckoutTimeout, Name: "db"})
	em.Emit(ctx, Event{
		Kind:  EventStateChange,
		Name:  "db",
		Attrs: map[string]any{"from": "closed", "to": "open"},
	})

	rm := collect(t, reader)

	if total, ok := sumFor(rm, "guardrail.events"); !ok || total != 4 {
		t.Errorf("guardrail.events = %d (found=%v), want 4", total, ok)
	}
	if total, ok := sumFor(rm, "guardrail.rejections"); !ok || total != 2 {
		t.Errorf("guardrail.rejections = %d (found=%v), want 2", total, ok)
	}
	if total, ok := sumFor(rm, "guardrail.breaker.transitions"); !ok || total != 1 {
		t.Errorf("guardrail.breaker.transitions = %d (found=%v), want 1", total, ok)
	}
}
