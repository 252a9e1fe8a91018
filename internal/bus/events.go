package bus

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

type Event interface {
	EventName() string
}

// Publisher is the side of the event bus command handlers depend on.
type Publisher interface {
	Publish(ctx context.Context, events ...Event)
}

type Subscriber func(ctx context.Context, evt Event) error

type subscription struct {
	name string
	fn   Subscriber
}

type EventBus struct {
	mu     sync.RWMutex
	subs   map[string][]subscription
	logger *zap.Logger
}

func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{subs: make(map[string][]subscription), logger: logger}
}

var _ Publisher = (*EventBus)(nil)

// Subscribe registers fn for eventName. name identifies the subscriber in
// logs.
func (b *EventBus) Subscribe(eventName, name string, fn Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventName] = append(b.subs[eventName], subscription{name: name, fn: fn})
}

// On subscribes a handler typed to a concrete event.
func On[E Event](b *EventBus, name string, fn func(ctx context.Context, evt E) error) {
	var zero E
	b.Subscribe(zero.EventName(), name, func(ctx context.Context, evt Event) error {
		e, ok := evt.(E)
		if !ok {
			return fmt.Errorf("unexpected event type %T for %s", evt, evt.EventName())
		}
		return fn(ctx, e)
	})
}

// Publish delivers events synchronously. It never fails: subscriber errors
// and panics are logged and do not stop delivery to the others.
func (b *EventBus) Publish(ctx context.Context, events ...Event) {
	for _, evt := range events {
		b.mu.RLock()
		subs := b.subs[evt.EventName()]
		b.mu.RUnlock()

		for _, s := range subs {
			if err := b.deliver(ctx, s, evt); err != nil {
				b.logger.Error("event subscriber failed",
					zap.String("event", evt.EventName()),
					zap.String("subscriber", s.name),
					zap.Error(err))
			}
		}
	}
}

func (b *EventBus) deliver(ctx context.Context, s subscription, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.fn(ctx, evt)
}
