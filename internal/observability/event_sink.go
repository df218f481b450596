package observability

import (
	"context"

	"go.uber.org/zap"
)

// EventLog writes operational events to the structured log.
type EventLog struct {
	logger *zap.Logger
}

// NewEventLog builds the sink.
func NewEventLog(logger *zap.Logger) *EventLog {
	return &EventLog{logger: logger}
}

// LogEvent emits one event with its rendered fields.
func (l *EventLog) LogEvent(ctx context.Context, event string, fields map[string]string) error {
	zapFields := make([]zap.Field, 0, len(fields)+1)
	zapFields = append(zapFields, zap.String("event", event))
	for key, value := range fields {
		zapFields = append(zapFields, zap.String(key, value))
	}
	l.logger.Info("workflow event", zapFields...)
	return nil
}
