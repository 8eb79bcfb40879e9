// internal/events/sink.go
package events

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Sink is the notification handle threaded through every component that
// reports to the dashboard. Emit must never block the caller.
type Sink interface {
	Emit(event Event)
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Emit(Event) {}

// ChannelSink delivers events into a buffered channel without blocking,
// counting what it had to drop.
type ChannelSink struct {
	ch            chan Event
	sent          uint64
	dropped       uint64
	logger        *zap.Logger
	statsInterval time.Duration
	stopStats     chan struct{}
}

var _ Sink = (*ChannelSink)(nil)

// NewChannelSink creates a sink with the given buffer and starts periodic
// drop statistics logging.
func NewChannelSink(buffer int, logger *zap.Logger) *ChannelSink {
	s := &ChannelSink{
		ch:            make(chan Event, buffer),
		logger:        logger.Named("sink"),
		statsInterval: 30 * time.Second,
		stopStats:     make(chan struct{}),
	}
	go s.logStats()
	return s
}

// Emit sends without blocking.
func (s *ChannelSink) Emit(event Event) {
	select {
	case s.ch <- event:
		atomic.AddUint64(&s.sent, 1)
	default:
		atomic.AddUint64(&s.dropped, 1)
	}
}

// Events returns the receive side.
func (s *ChannelSink) Events() <-chan Event { return s.ch }

// Stats returns delivery counters.
func (s *ChannelSink) Stats() (sent, dropped uint64) {
	return atomic.LoadUint64(&s.sent), atomic.LoadUint64(&s.dropped)
}

func (s *ChannelSink) logStats() {
	ticker := time.NewTicker(s.statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sent, dropped := s.Stats()
			if dropped > 0 {
				s.logger.Warn("Notification delivery statistics",
					zap.Uint64("sent", sent),
					zap.Uint64("dropped", dropped),
					zap.Float64("drop_rate", float64(dropped)/float64(sent+dropped)*100))
			}
		case <-s.stopStats:
			return
		}
	}
}

// Close stops statistics logging. The channel stays open for late emitters.
func (s *ChannelSink) Close() {
	close(s.stopStats)
}
