// services/dispatch-service/internal/dispatcher/consumer.go
package dispatcher

import (
	"context"
	"encoding/json"

	"github.com/dukens11-create/gud/shared/contracts"
)

// KafkaHandler decodes change events from the broker and dispatches them.
// Undecodable payloads are logged and dropped; handler failures are
// returned so the consumer retries the message.
func (d *Dispatcher) KafkaHandler() func(ctx context.Context, key []byte, value []byte) error {
	return func(ctx context.Context, key []byte, value []byte) error {
		var ev contracts.ChangeEvent
		if err := json.Unmarshal(value, &ev); err != nil {
			d.log.WithError(err).WithField("key", string(key)).Error("dropping undecodable change event")
			return nil
		}
		if ev.After == nil {
			d.log.WithField("event_id", ev.ID).Warn("dropping change event without after snapshot")
			return nil
		}
		if ev.EntityID == "" {
			ev.EntityID = ev.After.ID
		}
		return d.Dispatch(ctx, ev).Err()
	}
}
