package logger

import (
	"go.uber.org/zap/zapcore"

	"github.com/lasersell/lasersell/internal/events"
)

// ForwardCore turns log entries into LogLine notifications for the dashboard.
type ForwardCore struct {
	zapcore.LevelEnabler
	sink  events.Sink
	event string
}

func NewForwardCore(sink events.Sink, level zapcore.LevelEnabler) *ForwardCore {
	return &ForwardCore{LevelEnabler: level, sink: sink}
}

func (c *ForwardCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	if event, ok := eventField(fields); ok {
		clone.event = event
	}
	return &clone
}

func (c *ForwardCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *ForwardCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	event := c.event
	if e, ok := eventField(fields); ok {
		event = e
	}
	// Price ticks are too chatty for the log pane.
	if event == "price_tick" && entry.Level <= zapcore.InfoLevel {
		return nil
	}
	c.sink.Emit(events.LogLine{
		Level:   entry.Level.CapitalString(),
		Message: entry.Message,
		Event:   event,
	})
	return nil
}

func (c *ForwardCore) Sync() error { return nil }

func eventField(fields []zapcore.Field) (string, bool) {
	for _, f := range fields {
		if f.Key == "event" && f.Type == zapcore.StringType {
			return f.String, true
		}
	}
	return "", false
}
