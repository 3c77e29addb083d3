package dispatcher

import (
	"context"

	"github.com/garyjia/validation-workflow/internal/domain/event"
)

// AuditLogHandler writes one structured log line per domain event
func AuditLogHandler(logger Logger) Handler {
	return func(_ context.Context, evt *event.Event) error {
		kv := []interface{}{
			"event_id", evt.ID,
			"event_type", string(evt.Type),
			"workspace_id", evt.WorkspaceID,
			"aggregate_id", evt.AggregateID,
			"correlation_id", evt.CorrelationID,
		}
		for _, key := range []string{"status", "validated_by", "level", "action", "reference_id"} {
			if v := evt.GetPayloadString(key); v != "" {
				kv = append(kv, key, v)
			}
		}
		logger.Info("Domain event", kv...)
		return nil
	}
}
