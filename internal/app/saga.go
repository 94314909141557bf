/**
 * @description
 * Shared pieces of the movement sagas: the final status advance with bounded
 * retry, and best-effort event publishing. Every orchestrator moves money
 * first and records the outcome after, so the status write is the one step
 * whose failure must not trigger balance compensation — the money has
 * already legitimately moved. Policy here: retry the write a fixed number of
 * times, then surface the error and leave the record pending for the
 * reconciler to report.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/paygate/movement-service/internal/domain"
)

const defaultStatusRetryAttempts = 3

// EventPublisher publishes movement lifecycle events. A nil publisher is
// valid and disables publishing.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body any) error
}

// finalizeStatus advances a movement record to success, retrying transient
// failures. It never compensates balances: by the time it runs, every
// balance leg has committed.
func finalizeStatus(ctx context.Context, attempts int, id uuid.UUID, setStatus func(context.Context, uuid.UUID, string) error) error {
	if attempts <= 0 {
		attempts = defaultStatusRetryAttempts
	}
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(time.Duration(i) * 100 * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err = setStatus(ctx, id, domain.StatusSuccess); err == nil {
			return nil
		}
		log.Printf("level=warn component=saga msg=\"status advance failed\" movement_id=%s attempt=%d err=%v", id, i+1, err)
	}
	return fmt.Errorf("advance status to success: %w", err)
}

// publishMovementEvent emits a lifecycle event. Publishing is best-effort:
// a broker failure is logged and swallowed.
func publishMovementEvent(ctx context.Context, producer EventPublisher, exchange string, ev domain.MovementEvent) {
	if producer == nil {
		return
	}
	routingKey := "movement." + ev.Kind + "." + ev.Status
	if err := producer.Publish(ctx, exchange, routingKey, ev); err != nil {
		log.Printf("level=warn component=saga msg=\"event publish failed\" routing_key=%s movement_id=%s err=%v", routingKey, ev.MovementID, err)
	}
}
