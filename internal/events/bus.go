// internal/events/bus.go
package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type registration struct {
	handler Handler
	types   map[EventType]struct{}
}

func (r registration) wants(t EventType) bool {
	if len(r.types) == 0 {
		return true
	}
	_, ok := r.types[t]
	return ok
}

// Bus fans notifications out to subscribers. Events are delivered one at a
// time in emission order.
type Bus struct {
	mu         sync.RWMutex
	handlers   map[string]registration
	logger     *zap.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	eventChan  chan Event
	bufferSize int
	dropped    atomic.Uint64
}

var _ Sink = (*Bus)(nil)

// NewBus creates a new event bus.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	bus := &Bus{
		handlers:   make(map[string]registration),
		logger:     logger.Named("event_bus"),
		ctx:        ctx,
		cancel:     cancel,
		eventChan:  make(chan Event, bufferSize),
		bufferSize: bufferSize,
	}

	bus.wg.Add(1)
	go bus.processEvents()

	return bus
}

// Subscribe registers a handler for the given event types, or all types when
// none are listed.
func (b *Bus) Subscribe(handler Handler, types ...EventType) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	reg := registration{handler: handler}
	if len(types) > 0 {
		reg.types = make(map[EventType]struct{}, len(types))
		for _, t := range types {
			reg.types[t] = struct{}{}
		}
	}
	b.handlers[id] = reg

	b.logger.Debug("Handler subscribed",
		zap.Int("event_types", len(types)),
		zap.String("subscription_id", id))

	return &subscription{id: id, eventBus: b}
}

// SubscribeFunc is a convenience method for subscribing with a function.
func (b *Bus) SubscribeFunc(fn func(context.Context, Event) error, types ...EventType) Subscription {
	return b.Subscribe(HandlerFunc(fn), types...)
}

// Emit implements Sink. A full buffer drops the event.
func (b *Bus) Emit(event Event) {
	if err := b.Publish(event); err != nil {
		b.dropped.Add(1)
	}
}

// Publish queues an event for asynchronous delivery.
func (b *Bus) Publish(event Event) error {
	if b.ctx.Err() != nil {
		return fmt.Errorf("event bus is shutting down")
	}
	select {
	case b.eventChan <- event:
		return nil
	default:
		return fmt.Errorf("event channel full")
	}
}

// PublishSync delivers an event to all matching handlers on the caller's goroutine.
func (b *Bus) PublishSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	matched := make(map[string]Handler, len(b.handlers))
	for id, reg := range b.handlers {
		if reg.wants(event.Type()) {
			matched[id] = reg.handler
		}
	}
	b.mu.RUnlock()

	var errs []error
	for id, handler := range matched {
		if err := handler.Handle(ctx, event); err != nil {
			b.logger.Warn("Event handler failed",
				zap.String("event_type", string(event.Type())),
				zap.String("handler_id", id),
				zap.Error(err))
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("handlers failed: %v", errs)
	}
	return nil
}

func (b *Bus) processEvents() {
	defer b.wg.Done()

	for {
		select {
		case <-b.ctx.Done():
			for {
				select {
				case event := <-b.eventChan:
					_ = b.PublishSync(context.Background(), event)
				default:
					return
				}
			}
		case event := <-b.eventChan:
			_ = b.PublishSync(b.ctx, event)
		}
	}
}

func (b *Bus) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, id)

	b.logger.Debug("Handler unsubscribed", zap.String("subscription_id", id))
}

// Shutdown stops accepting events, drains the queue and waits for delivery.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Debug("Event bus shutdown complete", zap.Uint64("dropped", b.dropped.Load()))
		return nil
	case <-ctx.Done():
		b.logger.Warn("Event bus shutdown timeout")
		return ctx.Err()
	}
}

// Stats returns statistics about the event bus.
func (b *Bus) Stats() map[string]interface{} {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return map[string]interface{}{
		"buffer_size":    b.bufferSize,
		"pending_events": len(b.eventChan),
		"subscribers":    len(b.handlers),
		"dropped":        b.dropped.Load(),
	}
}
