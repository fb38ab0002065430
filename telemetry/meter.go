package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterEmitter counts core events on an OpenTelemetry meter.
type MeterEmitter struct {
	events      metric.Int64Counter
	rejections  metric.Int64Counter
	transitions metric.Int64Counter
}

// NewMeterEmitter creates an emitter that records counters on meter.
func NewMeterEmitter(meter metric.Meter) (*MeterEmitter, error) {
	events, err := meter.Int64Counter(
		"guardrail.events",
		metric.WithDescription("Total guardrail events by kind"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	rejections, err := meter.Int64Counter(
		"guardrail.rejections",
		metric.WithDescription("Calls rejected before reaching the operation"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	transitions, err := meter.Int64Counter(
		"guardrail.breaker.transitions",
		metric.WithDescription("Circuit breaker state transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	return &MeterEmitter{
		events:      events,
		rejections:  rejections,
		transitions: transitions,
	}, nil
}

// Emit records the event.
func (m *MeterEmitter) Emit(ctx context.Context, ev Event) {
	attrs := []attribute.KeyValue{
		attribute.String("kind", string(ev.Kind)),
		attribute.String("name", ev.Name),
	}
	opt := metric.WithAttributes(attrs...)

	m.events.Add(ctx, 1, opt)

	switch ev.Kind {
	case EventCheckoutRejected, EventCheckoutTimeout:
		m.rejections.Add(ctx, 1, opt)
	case EventStateChange:
		to, _ := ev.Attrs["to"].(string)
		m.transitions.Add(ctx, 1, metric.WithAttributes(
			append(attrs, attribute.String("to", to))...,
		))
	}
}
