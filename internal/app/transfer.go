/**
 * @description
 * This file contains the Transfer orchestrator: the two-account movement
 * flow moving funds between card-bound balances. Create debits the source
 * and credits the destination with explicit compensation in reverse commit
 * order when a later step fails. Update is delta-based: only the difference
 * between the new and old amount crosses the accounts, in either direction.
 *
 * Key features:
 * - Create: sufficiency check, two balance legs, record persistence, each
 *   failure unwinding exactly the legs that already committed.
 * - Update: sign-agnostic delta application with full compensation.
 * - Record lifecycle administration (trash/restore/permanent delete).
 * - Cache invalidation and event publishing after successful mutations.
 *
 * @dependencies
 * - context, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: Movement record ids.
 * - internal/cache, internal/domain, internal/observability, internal/store.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/paygate/movement-service/internal/cache"
	"github.com/paygate/movement-service/internal/domain"
	"github.com/paygate/movement-service/internal/observability"
	"github.com/paygate/movement-service/internal/store"
)

// TransferService orchestrates transfer movements between two accounts.
type TransferService struct {
	transfers store.TransferStore
	cards     store.CardStore
	saldos    store.SaldoStore
	cache     cache.Store
	sink      observability.Sink
	producer  EventPublisher
	exchange  string
	retries   int
	locks     *accountLocks
}

// NewTransferService creates a transfer orchestrator. producer may be nil;
// events are then skipped.
func NewTransferService(
	transfers store.TransferStore,
	cards store.CardStore,
	saldos store.SaldoStore,
	cacheStore cache.Store,
	sink observability.Sink,
	producer EventPublisher,
	exchange string,
	statusRetryAttempts int,
) *TransferService {
	return &TransferService{
		transfers: transfers,
		cards:     cards,
		saldos:    saldos,
		cache:     cacheStore,
		sink:      sink,
		producer:  producer,
		exchange:  exchange,
		retries:   statusRetryAttempts,
		locks:     newAccountLocks(),
	}
}

// Create runs the transfer saga:
// resolve both cards, check source sufficiency, debit the source, credit
// the destination, persist the record, advance its status. A destination
// credit failure restores the source; a record persistence failure reverses
// both legs in reverse commit order.
func (s *TransferService) Create(ctx context.Context, req *domain.CreateTransferRequest) (*domain.Transfer, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	ctx, span := s.sink.Start(ctx, "transfer.create", map[string]string{
		"transfer_from": req.TransferFrom,
		"transfer_to":   req.TransferTo,
	})
	var opErr error
	defer func() {
		if opErr != nil {
			span.Complete(false, opErr.Error())
		} else {
			span.Complete(true, "transfer created")
		}
	}()

	unlock := s.locks.Lock(req.TransferFrom, req.TransferTo)
	defer unlock()

	// 1. Resolve both parties independently so the caller learns which side
	// is missing.
	fromCard, err := s.cards.FindByCard(ctx, req.TransferFrom)
	if err != nil {
		opErr = fmt.Errorf("resolve source card %s: %w", req.TransferFrom, err)
		return nil, opErr
	}
	toCard, err := s.cards.FindByCard(ctx, req.TransferTo)
	if err != nil {
		opErr = fmt.Errorf("resolve destination card %s: %w", req.TransferTo, err)
		return nil, opErr
	}

	// 2. Read both balances, then check source sufficiency before any write.
	fromSaldo, err := s.saldos.FindByCard(ctx, fromCard.CardNumber)
	if err != nil {
		opErr = fmt.Errorf("fetch source saldo: %w", err)
		return nil, opErr
	}
	if _, err := s.saldos.FindByCard(ctx, toCard.CardNumber); err != nil {
		opErr = fmt.Errorf("fetch destination saldo: %w", err)
		return nil, opErr
	}
	if fromSaldo.TotalBalance < req.Amount {
		log.Printf("level=warn component=transfer msg=\"insufficient balance\" card=%s requested=%d available=%d",
			fromCard.CardNumber, req.Amount, fromSaldo.TotalBalance)
		opErr = fmt.Errorf("source %s: %w", fromCard.CardNumber, store.ErrInsufficientBalance)
		return nil, opErr
	}

	// 3. Debit the source.
	if err := s.saldos.Debit(ctx, fromCard.CardNumber, req.Amount); err != nil {
		opErr = fmt.Errorf("debit source saldo: %w", err)
		return nil, opErr
	}

	// 4. Credit the destination. On failure the source debit is reversed.
	if err := s.saldos.Credit(ctx, toCard.CardNumber, req.Amount); err != nil {
		s.compensateLeg(ctx, "credit source back", fromCard.CardNumber, req.Amount, s.saldos.Credit)
		opErr = fmt.Errorf("credit destination saldo: %w", err)
		return nil, opErr
	}

	// 5. Persist the movement record. On failure both legs are reversed in
	// reverse commit order.
	transfer, err := s.transfers.Create(ctx, req)
	if err != nil {
		s.compensateLeg(ctx, "debit destination back", toCard.CardNumber, req.Amount, s.saldos.Debit)
		s.compensateLeg(ctx, "credit source back", fromCard.CardNumber, req.Amount, s.saldos.Credit)
		opErr = fmt.Errorf("create transfer record: %w", err)
		return nil, opErr
	}

	// 6. Advance the record to success. Both legs have committed, so this is
	// retried rather than compensated.
	if err := finalizeStatus(ctx, s.retries, transfer.ID, s.transfers.UpdateStatus); err != nil {
		opErr = err
		return nil, opErr
	}
	transfer.Status = domain.StatusSuccess

	s.invalidateAfterMutation(ctx, transfer.ID, fromCard.CardNumber, toCard.CardNumber)
	publishMovementEvent(ctx, s.producer, s.exchange, domain.MovementEvent{
		MovementID: transfer.ID,
		Kind:       cache.KindTransfer,
		Status:     "created",
		Amount:     transfer.Amount,
		OccurredAt: time.Now().UTC(),
	})

	log.Printf("level=info component=transfer msg=\"transfer created\" transfer_id=%s from=%s to=%s amount=%d",
		transfer.ID, fromCard.CardNumber, toCard.CardNumber, transfer.Amount)
	return transfer, nil
}

// Update re-points an existing transfer at a new amount by moving only the
// difference. A positive delta moves more funds from source to destination;
// a negative delta moves the excess back. Each failure past the first
// balance write compensates the legs that committed and marks the record
// failed.
func (s *TransferService) Update(ctx context.Context, req *domain.UpdateTransferRequest) (*domain.Transfer, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	ctx, span := s.sink.Start(ctx, "transfer.update", map[string]string{
		"transfer_id": req.TransferID.String(),
	})
	var opErr error
	defer func() {
		if opErr != nil {
			span.Complete(false, opErr.Error())
		} else {
			span.Complete(true, "transfer updated")
		}
	}()

	// 1. Load the record and derive the delta.
	existing, err := s.transfers.FindByID(ctx, req.TransferID)
	if err != nil {
		opErr = fmt.Errorf("find transfer %s: %w", req.TransferID, err)
		return nil, opErr
	}
	delta := req.Amount - existing.Amount

	unlock := s.locks.Lock(existing.TransferFrom, existing.TransferTo)
	defer unlock()

	// 2. Check the source can absorb the delta. A negative delta always can.
	fromSaldo, err := s.saldos.FindByCard(ctx, existing.TransferFrom)
	if err != nil {
		opErr = fmt.Errorf("fetch source saldo: %w", err)
		return nil, opErr
	}
	if fromSaldo.TotalBalance-delta < 0 {
		log.Printf("level=warn component=transfer msg=\"insufficient balance on update\" card=%s delta=%d available=%d",
			existing.TransferFrom, delta, fromSaldo.TotalBalance)
		s.markFailed(ctx, existing.ID)
		opErr = fmt.Errorf("source %s: %w", existing.TransferFrom, store.ErrInsufficientBalance)
		return nil, opErr
	}

	// 3. Apply the delta to the source.
	if err := s.applyDelta(ctx, existing.TransferFrom, -delta); err != nil {
		s.markFailed(ctx, existing.ID)
		opErr = fmt.Errorf("adjust source saldo: %w", err)
		return nil, opErr
	}

	// 4. Confirm the destination still exists before touching it. On failure
	// the source adjustment is reversed.
	if _, err := s.saldos.FindByCard(ctx, existing.TransferTo); err != nil {
		s.compensateDelta(ctx, "restore source", existing.TransferFrom, delta)
		s.markFailed(ctx, existing.ID)
		opErr = fmt.Errorf("fetch destination saldo: %w", err)
		return nil, opErr
	}

	// 5. Apply the delta to the destination.
	if err := s.applyDelta(ctx, existing.TransferTo, delta); err != nil {
		s.compensateDelta(ctx, "restore source", existing.TransferFrom, delta)
		s.markFailed(ctx, existing.ID)
		opErr = fmt.Errorf("adjust destination saldo: %w", err)
		return nil, opErr
	}

	// 6. Update the record. On failure both adjustments are reversed.
	updated, err := s.transfers.Update(ctx, existing.ID, req.Amount)
	if err != nil {
		s.compensateDelta(ctx, "restore destination", existing.TransferTo, -delta)
		s.compensateDelta(ctx, "restore source", existing.TransferFrom, delta)
		s.markFailed(ctx, existing.ID)
		opErr = fmt.Errorf("update transfer record: %w", err)
		return nil, opErr
	}

	// 7. Advance status.
	if err := finalizeStatus(ctx, s.retries, updated.ID, s.transfers.UpdateStatus); err != nil {
		opErr = err
		return nil, opErr
	}
	updated.Status = domain.StatusSuccess

	s.invalidateAfterMutation(ctx, updated.ID, existing.TransferFrom, existing.TransferTo)
	publishMovementEvent(ctx, s.producer, s.exchange, domain.MovementEvent{
		MovementID: updated.ID,
		Kind:       cache.KindTransfer,
		Status:     "updated",
		Amount:     updated.Amount,
		OccurredAt: time.Now().UTC(),
	})

	log.Printf("level=info component=transfer msg=\"transfer updated\" transfer_id=%s amount=%d delta=%d", updated.ID, updated.Amount, delta)
	return updated, nil
}

// applyDelta moves amount onto an account: positive credits, negative
// debits, zero is a no-op. The guarded debit keeps either side from going
// below zero no matter the delta's sign.
func (s *TransferService) applyDelta(ctx context.Context, cardNumber string, amount int64) error {
	switch {
	case amount > 0:
		return s.saldos.Credit(ctx, cardNumber, amount)
	case amount < 0:
		return s.saldos.Debit(ctx, cardNumber, -amount)
	default:
		return nil
	}
}

// compensateDelta reverses a previously applied delta. Best-effort: a
// compensation failure is logged and never overrides the triggering error.
func (s *TransferService) compensateDelta(ctx context.Context, what, cardNumber string, amount int64) {
	if err := s.applyDelta(ctx, cardNumber, amount); err != nil {
		log.Printf("level=error component=transfer msg=\"compensation failed: %s\" card=%s amount=%d err=%v", what, cardNumber, amount, err)
	}
}

func (s *TransferService) compensateLeg(ctx context.Context, what, cardNumber string, amount int64, op func(context.Context, string, int64) error) {
	if err := op(ctx, cardNumber, amount); err != nil {
		log.Printf("level=error component=transfer msg=\"compensation failed: %s\" card=%s amount=%d err=%v", what, cardNumber, amount, err)
	}
}

func (s *TransferService) markFailed(ctx context.Context, id uuid.UUID) {
	if err := s.transfers.UpdateStatus(ctx, id, domain.StatusFailed); err != nil {
		log.Printf("level=error component=transfer msg=\"failed-status write failed\" transfer_id=%s err=%v", id, err)
	}
}

func (s *TransferService) invalidateAfterMutation(ctx context.Context, id uuid.UUID, fromCard, toCard string) {
	s.cache.Evict(ctx, cache.FindByIDKey(cache.KindTransfer, id))
	s.cache.Evict(ctx, cache.FindByCardKey(cache.KindTransfer, fromCard))
	s.cache.Evict(ctx, cache.FindByCardKey(cache.KindTransfer, toCard))
	s.cache.Evict(ctx, cache.FindByCardKey(cache.KindSaldo, fromCard))
	s.cache.Evict(ctx, cache.FindByCardKey(cache.KindSaldo, toCard))
	s.cache.EvictPattern(ctx, cache.FindAllPattern(cache.KindTransfer))
	s.cache.EvictPattern(ctx, cache.FindActivePattern(cache.KindTransfer))
	s.cache.EvictPattern(ctx, cache.FindTrashedPattern(cache.KindTransfer))
}

// Trashed soft-deletes a transfer record.
func (s *TransferService) Trashed(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	transfer, err := s.transfers.Trash(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("trash transfer %s: %w", id, err)
	}
	s.invalidateAfterMutation(ctx, id, transfer.TransferFrom, transfer.TransferTo)
	return transfer, nil
}

// Restore brings a trashed transfer record back.
func (s *TransferService) Restore(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	transfer, err := s.transfers.Restore(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("restore transfer %s: %w", id, err)
	}
	s.invalidateAfterMutation(ctx, id, transfer.TransferFrom, transfer.TransferTo)
	return transfer, nil
}

// DeletePermanent removes a trashed transfer record for good.
func (s *TransferService) DeletePermanent(ctx context.Context, id uuid.UUID) error {
	if err := s.transfers.DeletePermanent(ctx, id); err != nil {
		return fmt.Errorf("permanently delete transfer %s: %w", id, err)
	}
	s.cache.Evict(ctx, cache.FindByIDKey(cache.KindTransfer, id))
	s.cache.EvictPattern(ctx, cache.FindAllPattern(cache.KindTransfer))
	s.cache.EvictPattern(ctx, cache.FindActivePattern(cache.KindTransfer))
	s.cache.EvictPattern(ctx, cache.FindTrashedPattern(cache.KindTransfer))
	return nil
}

// RestoreAll restores every trashed transfer record.
func (s *TransferService) RestoreAll(ctx context.Context) error {
	if err := s.transfers.RestoreAll(ctx); err != nil {
		return fmt.Errorf("restore all transfers: %w", err)
	}
	s.cache.EvictPattern(ctx, cache.KindTransfer+":*")
	return nil
}

// DeleteAllPermanent removes every trashed transfer record for good.
func (s *TransferService) DeleteAllPermanent(ctx context.Context) error {
	if err := s.transfers.DeleteAllPermanent(ctx); err != nil {
		return fmt.Errorf("permanently delete all transfers: %w", err)
	}
	s.cache.EvictPattern(ctx, cache.KindTransfer+":*")
	return nil
}
