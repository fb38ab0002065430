package telemetry

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a production zap logger at the given level.
// Unknown levels fall back to info.
func NewLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

// LogEmitter writes events as structured log lines.
type LogEmitter struct {
	log *zap.Logger
}

// NewLogEmitter creates an emitter backed by the given logger.
func NewLogEmitter(log *zap.Logger) *LogEmitter {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogEmitter{log: log}
}

// Emit writes the event at a level matching its severity.
func (l *LogEmitter) Emit(ctx context.Context, ev Event) {
	ev = Stamp(ev)

	fields := make([]zap.Field, 0, len(ev.Attrs)+3)
	fields = append(fields,
		zap.String("event", string(ev.Kind)),
		zap.String("name", ev.Name),
		zap.Time("at", ev.Time),
	)
	for k, v := range ev.Attrs {
		fields = append(fields, zap.Any(k, v))
	}

	// Retry attempts are routine; everything else signals trouble.
	if ev.Kind == EventRetryAttempt {
		l.log.Debug("guardrail event", fields...)
		return
	}
	l.log.Warn("guardrail event", fields...)
}
