package events

import "log/slog"

// LogEmitter writes every event to a structured logger. It serves as the
// default sink when no message bus is attached.
type LogEmitter struct {
	Logger *slog.Logger
}

// Emit implements Emitter.
func (l LogEmitter) Emit(event *Event) {
	if event == nil {
		return
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := make([]any, 0, 2+2*len(event.Attributes))
	attrs = append(attrs, "event", event.Type)
	for key, value := range event.Attributes {
		attrs = append(attrs, key, value)
	}
	logger.Info("escrow event", attrs...)
}
