package domain

import (
	"time"

	"github.com/google/uuid"
)

// MovementEvent is the payload published to the event exchange after a
// movement record reaches a terminal outcome, and by the reconciler when a
// record is stuck in pending.
type MovementEvent struct {
	MovementID uuid.UUID `json:"movement_id"`
	Kind       string    `json:"kind"` // "transaction", "transfer", "topup", "withdraw"
	Status     string    `json:"status"`
	Amount     int64     `json:"amount"`
	OccurredAt time.Time `json:"occurred_at"`
}
