package bus

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
)

var (
	ErrNoHandler        = errors.New("no handler registered")
	ErrDuplicateHandler = errors.New("handler already registered")
)

// HandlerFunc is the type-erased form stored by the bus.
type HandlerFunc func(ctx context.Context, msg any) (any, error)

// Bus dispatches commands or queries to a single handler per message type.
type Bus struct {
	kind     string
	mu       sync.RWMutex
	handlers map[reflect.Type]HandlerFunc
}

// New creates a bus. kind is used in error messages ("command", "query").
func New(kind string) *Bus {
	return &Bus{kind: kind, handlers: make(map[reflect.Type]HandlerFunc)}
}

// Register binds the handler for message type M.
func Register[M any, R any](b *Bus, h func(ctx context.Context, msg M) (R, error)) error {
	t := reflect.TypeFor[M]()

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.handlers[t]; ok {
		return fmt.Errorf("%s bus: %w for %s", b.kind, ErrDuplicateHandler, t)
	}
	b.handlers[t] = func(ctx context.Context, msg any) (any, error) {
		return h(ctx, msg.(M))
	}
	return nil
}

// Require checks that every given message value has a handler. It is
// called once at startup so a missing registration fails fast.
func (b *Bus) Require(msgs ...any) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var missing []error
	for _, m := range msgs {
		t := reflect.TypeOf(m)
		if _, ok := b.handlers[t]; !ok {
			missing = append(missing, fmt.Errorf("%s bus: %w for %s", b.kind, ErrNoHandler, t))
		}
	}
	return errors.Join(missing...)
}

// Dispatch runs the handler for msg and returns its untyped result.
func (b *Bus) Dispatch(ctx context.Context, msg any) (any, error) {
	b.mu.RLock()
	h, ok := b.handlers[reflect.TypeOf(msg)]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s bus: %w for %T", b.kind, ErrNoHandler, msg)
	}
	return h(ctx, msg)
}

// Execute dispatches msg and asserts the result type. Handler errors are
// returned unchanged.
func Execute[R any](ctx context.Context, b *Bus, msg any) (R, error) {
	var zero R
	res, err := b.Dispatch(ctx, msg)
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	out, ok := res.(R)
	if !ok {
		return zero, fmt.Errorf("%s bus: handler for %T returned %T, want %s", b.kind, msg, res, reflect.TypeFor[R]())
	}
	return out, nil
}
