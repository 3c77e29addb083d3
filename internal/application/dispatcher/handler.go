package dispatcher

import (
	"context"

	"github.com/garyjia/validation-workflow/internal/domain/event"
)

// Handler reacts to one domain event. Dispatch stops at the first error;
// DispatchAsync only logs it.
type Handler func(ctx context.Context, evt *event.Event) error

// subscription is a named handler. Wildcard subscriptions leave eventType empty.
type subscription struct {
	name      string
	eventType event.Type
	handle    Handler
}
