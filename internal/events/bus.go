package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Bus is an in-memory event bus. Publication is asynchronous through a
// buffered channel; a full buffer drops the event rather than blocking the
// publisher.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType]map[string]Handler
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	eventCh  chan Event
}

// NewBus creates a bus and starts its dispatch goroutine.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		handlers: make(map[EventType]map[string]Handler),
		logger:   logger.Named("event_bus"),
		ctx:      ctx,
		cancel:   cancel,
		eventCh:  make(chan Event, bufferSize),
	}
	b.wg.Add(1)
	go b.dispatch()
	return b
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[string]Handler)
	}
	b.handlers[eventType][id] = handler

	b.logger.Debug("handler subscribed",
		zap.String("event_type", string(eventType)),
		zap.String("subscription_id", id))

	return &subscription{id: id, bus: b, typ: eventType}
}

// SubscribeFunc registers a plain function as a handler.
func (b *Bus) SubscribeFunc(eventType EventType, fn func(context.Context, Event) error) Subscription {
	return b.Subscribe(eventType, HandlerFunc(fn))
}

// Publish enqueues an event for asynchronous delivery.
func (b *Bus) Publish(event Event) error {
	if b.ctx.Err() != nil {
		return fmt.Errorf("event bus is shutting down")
	}
	select {
	case b.eventCh <- event:
		return nil
	default:
		b.logger.Warn("event channel full, dropping event",
			zap.String("event_type", string(event.Type())))
		return fmt.Errorf("event channel full")
	}
}

// PublishSync delivers an event to all handlers before returning.
func (b *Bus) PublishSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	registered := b.handlers[event.Type()]
	handlers := make(map[string]Handler, len(registered))
	for id, h := range registered {
		handlers[id] = h
	}
	b.mu.RUnlock()

	var errs []error
	for id, handler := range handlers {
		if err := handler.Handle(ctx, event); err != nil {
			b.logger.Error("handler error",
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

func (b *Bus) dispatch() {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			// Drain what is already queued, then exit.
			for {
				select {
				case event := <-b.eventCh:
					_ = b.PublishSync(context.Background(), event)
				default:
					return
				}
			}
		case event := <-b.eventCh:
			b.wg.Add(1)
			go func(e Event) {
				defer b.wg.Done()
				_ = b.PublishSync(b.ctx, e)
			}(event)
		}
	}
}

func (b *Bus) unsubscribe(id string, eventType EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if handlers, ok := b.handlers[eventType]; ok {
		delete(handlers, id)
		if len(handlers) == 0 {
			delete(b.handlers, eventType)
		}
	}
}

// Shutdown stops dispatch and waits for in-flight handlers.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		b.logger.Warn("event bus shutdown timeout")
		return ctx.Err()
	}
}
