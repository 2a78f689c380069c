package events

import (
	"context"
)

// Handler processes events of a specific type. Handle should not block.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts an ordinary function into a Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Subscription is a handle on a registered handler.
type Subscription interface {
	Unsubscribe()
}

type subscription struct {
	id  string
	bus *Bus
	typ EventType
}

func (s *subscription) Unsubscribe() {
	s.bus.unsubscribe(s.id, s.typ)
}
