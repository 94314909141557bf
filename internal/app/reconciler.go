/**
 * @description
 * Reconciler for stuck-pending movement records. A record stays pending when
 * the final status advance exhausted its retries after the balance legs had
 * already committed. The reconciler never mutates balances: whether the
 * money fully arrived cannot be decided from the record alone, so it reports
 * each stuck record for operator action instead.
 */

package app

import (
	"context"
	"log"
	"time"

	"github.com/paygate/movement-service/internal/cache"
	"github.com/paygate/movement-service/internal/domain"
	"github.com/paygate/movement-service/internal/store"
)

// Reconciler periodically reports movement records stuck in pending.
type Reconciler struct {
	transactions store.TransactionStore
	transfers    store.TransferStore
	producer     EventPublisher
	exchange     string
	pendingAfter time.Duration
}

// NewReconciler creates a reconciler that flags records pending longer than
// pendingAfter. producer may be nil.
func NewReconciler(
	transactions store.TransactionStore,
	transfers store.TransferStore,
	producer EventPublisher,
	exchange string,
	pendingAfter time.Duration,
) *Reconciler {
	if pendingAfter <= 0 {
		pendingAfter = 15 * time.Minute
	}
	return &Reconciler{
		transactions: transactions,
		transfers:    transfers,
		producer:     producer,
		exchange:     exchange,
		pendingAfter: pendingAfter,
	}
}

// Run scans both movement tables once and reports every stuck record. It is
// wired as a cron job; errors are logged, never returned, so one bad scan
// does not stop the schedule.
func (r *Reconciler) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().Add(-r.pendingAfter)

	txs, err := r.transactions.FindStuckPending(ctx, cutoff)
	if err != nil {
		log.Printf("level=error component=reconciler msg=\"transaction scan failed\" err=%v", err)
	} else {
		for i := range txs {
			r.report(ctx, cache.KindTransaction, txs[i].ID.String(), txs[i].Amount, txs[i].UpdatedAt, domain.MovementEvent{
				MovementID: txs[i].ID,
				Kind:       cache.KindTransaction,
				Status:     "stuck",
				Amount:     txs[i].Amount,
				OccurredAt: time.Now().UTC(),
			})
		}
	}

	transfers, err := r.transfers.FindStuckPending(ctx, cutoff)
	if err != nil {
		log.Printf("level=error component=reconciler msg=\"transfer scan failed\" err=%v", err)
		return
	}
	for i := range transfers {
		r.report(ctx, cache.KindTransfer, transfers[i].ID.String(), transfers[i].Amount, transfers[i].UpdatedAt, domain.MovementEvent{
			MovementID: transfers[i].ID,
			Kind:       cache.KindTransfer,
			Status:     "stuck",
			Amount:     transfers[i].Amount,
			OccurredAt: time.Now().UTC(),
		})
	}
}

func (r *Reconciler) report(ctx context.Context, kind, id string, amount int64, lastTouched time.Time, ev domain.MovementEvent) {
	log.Printf("level=error component=reconciler msg=\"movement stuck in pending; balances committed, record not finalized\" kind=%s movement_id=%s amount=%d last_touched=%s",
		kind, id, amount, lastTouched.Format(time.RFC3339))
	publishMovementEvent(ctx, r.producer, r.exchange, ev)
}
