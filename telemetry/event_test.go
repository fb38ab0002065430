package telemetry

import (
	"context"
	"testing"
	"time"
)

func TestMulti_FanOut(t *testing.T) {
	var got []string
	first := EmitterFunc(func(ctx context.Context, ev Event) {
		got = append(got, "first:"+string(ev.Kind))
	})
	second := EmitterFunc(func(ctx context.Context, ev Event) {
		got = append(got, "second:"+string(ev.Kind))
	})

	Multi(first, nil, second).Emit(context.Background(), Event{Kind: EventRetryAttempt})

	if len(got) != 2 {
		t.Fatalf("emitted to %d sinks, want 2", len(got))
	}
	if got[0] != "first:retry.attempt" || got[1] != "second:retry.attempt" {
		t.Errorf("fan-out order = %v", got)
	}
}

func TestNop_Discards(t *testing.T) {
	// Must not panic.
	Nop().Emit(context.Background(), Event{Kind: EventStateChange, Name: "db"})
}

func TestStamp(t *testing.T) {
	ev := Stamp(Event{Kind: EventStateChange})
	if ev.Time.IsZero() {
		t.Error("Stamp() left Time zero")
	}

	fixed := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	ev = Stamp(Event{Kind: EventStateChange, Time: fixed})
	if !ev.Time.Equal(fixed) {
		t.Errorf("Stamp() overwrote Time = %v, want %v", ev.Time, fixed)
	}
}
