package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/garyjia/validation-workflow/internal/domain/event"
)

// Dispatcher routes domain events to registered handlers
type Dispatcher interface {
	// SubscribeNamed registers a named handler for an event type
	SubscribeNamed(eventType event.Type, name string, handler Handler)

	// SubscribeAll registers a named handler for every event type
	SubscribeAll(name string, handler Handler)

	// Dispatch sends event to all registered handlers synchronously.
	// Returns first error encountered (handlers run in order)
	Dispatch(ctx context.Context, evt *event.Event) error

	// DispatchAsync sends event to handlers without waiting for them
	DispatchAsync(ctx context.Context, evt *event.Event)

	// Close shuts down the dispatcher and waits for async handlers
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type eventDispatcher struct {
	mu       sync.RWMutex
	handlers map[event.Type][]subscription
	wildcard []subscription
	logger   Logger

	// closeMu orders wg.Add in DispatchAsync before the wg.Wait in Close
	closeMu sync.RWMutex
	wg      sync.WaitGroup
	closed  atomic.Bool
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		handlers: make(map[event.Type][]subscription),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *eventDispatcher) SubscribeNamed(eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[eventType] = append(d.handlers[eventType], subscription{
		name:      name,
		eventType: eventType,
		handle:    handler,
	})

	if d.logger != nil {
		d.logger.Info("Handler registered",
			"event_type", eventType,
			"handler_name", name,
		)
	}
}

func (d *eventDispatcher) SubscribeAll(name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.wildcard = append(d.wildcard, subscription{name: name, handle: handler})

	if d.logger != nil {
		d.logger.Info("Handler registered for all events", "handler_name", name)
	}
}

// handlersFor returns type-specific handlers followed by wildcard handlers
func (d *eventDispatcher) handlersFor(eventType event.Type) []subscription {
	d.mu.RLock()
	defer d.mu.RUnlock()

	specific := d.handlers[eventType]
	out := make([]subscription, 0, len(specific)+len(d.wildcard))
	out = append(out, specific...)
	return append(out, d.wildcard...)
}

func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	if d.closed.Load() {
		return fmt.Errorf("dispatcher is closed")
	}

	for _, info := range d.handlersFor(evt.Type) {
		if err := d.safeExecute(ctx, evt, info); err != nil {
			if d.logger != nil {
				d.logger.Error("Handler error",
					"event_type", evt.Type,
					"event_id", evt.ID,
					"handler_name", info.name,
					"error", err,
				)
			}
			return fmt.Errorf("handler %s failed: %w", info.name, err)
		}
	}

	return nil
}

// DispatchAsync runs each handler in its own goroutine. Handlers receive a
// context detached from the caller's cancellation so a finished HTTP request
// does not abort them.
func (d *eventDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	d.closeMu.RLock()
	if d.closed.Load() {
		d.closeMu.RUnlock()
		if d.logger != nil {
			d.logger.Error("Cannot dispatch async event, dispatcher is closed",
				"event_type", evt.Type,
				"event_id", evt.ID,
			)
		}
		return
	}
	handlers := d.handlersFor(evt.Type)
	d.wg.Add(len(handlers))
	d.closeMu.RUnlock()

	detached := context.WithoutCancel(ctx)
	for _, info := range handlers {
		go func(h subscription) {
			defer d.wg.Done()

			if err := d.safeExecute(detached, evt, h); err != nil && d.logger != nil {
				d.logger.Error("Async handler error",
					"event_type", evt.Type,
					"event_id", evt.ID,
					"handler_name", h.name,
					"error", err,
				)
			}
		}(info)
	}
}

func (d *eventDispatcher) Close() error {
	d.closeMu.Lock()
	if d.closed.Load() {
		d.closeMu.Unlock()
		return fmt.Errorf("dispatcher already closed")
	}
	d.closed.Store(true)
	d.closeMu.Unlock()

	d.wg.Wait()

	if d.logger != nil {
		d.logger.Info("Dispatcher closed")
	}

	return nil
}

// safeExecute runs a handler with panic recovery
func (d *eventDispatcher) safeExecute(ctx context.Context, evt *event.Event, info subscription) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
			if d.logger != nil {
				d.logger.Error("Handler panic recovered",
					"event_type", evt.Type,
					"event_id", evt.ID,
					"handler_name", info.name,
					"panic", r,
				)
			}
		}
	}()

	return info.handle(ctx, evt)
}
