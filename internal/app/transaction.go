/**
 * @description
 * This file contains the Transaction orchestrator: the command side of the
 * one-account movement flow where a payer card pays a merchant. It owns the
 * hand-rolled saga around the balance store — ordered side effects, a
 * sufficiency check, and explicit compensation when a later step fails after
 * an earlier one committed. There is no distributed-transaction primitive
 * underneath; consistency comes from the step order and the inverse actions.
 *
 * Key features:
 * - Create: debit payer, persist record, advance status, credit merchant.
 * - Update: restore the old amount, re-check, debit the new amount.
 * - Record lifecycle administration (trash/restore/permanent delete).
 * - Cache invalidation and event publishing after successful mutations.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: Movement record ids.
 * - internal/cache, internal/domain, internal/observability, internal/store.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/paygate/movement-service/internal/cache"
	"github.com/paygate/movement-service/internal/domain"
	"github.com/paygate/movement-service/internal/observability"
	"github.com/paygate/movement-service/internal/store"
)

// TransactionService orchestrates transaction movements.
type TransactionService struct {
	transactions store.TransactionStore
	merchants    store.MerchantStore
	cards        store.CardStore
	saldos       store.SaldoStore
	cache        cache.Store
	sink         observability.Sink
	producer     EventPublisher
	exchange     string
	retries      int
	locks        *accountLocks
}

// NewTransactionService creates a transaction orchestrator. producer may be
// nil; events are then skipped.
func NewTransactionService(
	transactions store.TransactionStore,
	merchants store.MerchantStore,
	cards store.CardStore,
	saldos store.SaldoStore,
	cacheStore cache.Store,
	sink observability.Sink,
	producer EventPublisher,
	exchange string,
	statusRetryAttempts int,
) *TransactionService {
	return &TransactionService{
		transactions: transactions,
		merchants:    merchants,
		cards:        cards,
		saldos:       saldos,
		cache:        cacheStore,
		sink:         sink,
		producer:     producer,
		exchange:     exchange,
		retries:      statusRetryAttempts,
		locks:        newAccountLocks(),
	}
}

// Create runs the transaction saga:
// resolve merchant and payer, check sufficiency, debit the payer, persist
// the record, advance its status, then credit the merchant's account.
// The only compensated step is record persistence — its failure credits the
// debited amount back to the payer.
func (s *TransactionService) Create(ctx context.Context, apiKey string, req *domain.CreateTransactionRequest) (*domain.Transaction, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	ctx, span := s.sink.Start(ctx, "transaction.create", map[string]string{
		"card_number": req.CardNumber,
	})
	var opErr error
	defer func() {
		if opErr != nil {
			span.Complete(false, opErr.Error())
		} else {
			span.Complete(true, "transaction created")
		}
	}()

	unlock := s.locks.Lock(req.CardNumber)
	defer unlock()

	// 1. Resolve the parties. Nothing has been mutated yet, so either lookup
	// failing is a clean abort.
	merchant, err := s.merchants.FindByAPIKey(ctx, apiKey)
	if err != nil {
		opErr = fmt.Errorf("resolve merchant: %w", err)
		return nil, opErr
	}
	card, err := s.cards.FindByCard(ctx, req.CardNumber)
	if err != nil {
		opErr = fmt.Errorf("resolve payer card: %w", err)
		return nil, opErr
	}

	// 2. Sufficiency check before any write.
	saldo, err := s.saldos.FindByCard(ctx, card.CardNumber)
	if err != nil {
		opErr = fmt.Errorf("fetch payer saldo: %w", err)
		return nil, opErr
	}
	if saldo.TotalBalance < req.Amount {
		log.Printf("level=warn component=transaction msg=\"insufficient balance\" card=%s requested=%d available=%d",
			card.CardNumber, req.Amount, saldo.TotalBalance)
		opErr = fmt.Errorf("payer %s: %w", card.CardNumber, store.ErrInsufficientBalance)
		return nil, opErr
	}

	// 3. Debit the payer. The store refuses to go below zero even if the
	// balance changed since the read above.
	if err := s.saldos.Debit(ctx, card.CardNumber, req.Amount); err != nil {
		opErr = fmt.Errorf("debit payer saldo: %w", err)
		return nil, opErr
	}

	// 4. Persist the movement record. On failure the debit is compensated;
	// a compensation failure is logged but never overrides the creation error.
	tx, err := s.transactions.Create(ctx, req, merchant.ID)
	if err != nil {
		if rbErr := s.saldos.Credit(ctx, card.CardNumber, req.Amount); rbErr != nil {
			log.Printf("level=error component=transaction msg=\"compensation failed; payer debit not reversed\" card=%s amount=%d err=%v",
				card.CardNumber, req.Amount, rbErr)
		}
		opErr = fmt.Errorf("create transaction record: %w", err)
		return nil, opErr
	}

	// 5. Advance the record to success. The money has moved, so this is
	// retried rather than compensated; exhaustion leaves the record pending
	// for the reconciler to report.
	if err := finalizeStatus(ctx, s.retries, tx.ID, s.transactions.UpdateStatus); err != nil {
		opErr = err
		return nil, opErr
	}
	tx.Status = domain.StatusSuccess

	// 6. Credit the merchant's own account.
	merchantCard, err := s.cards.FindByUserID(ctx, merchant.UserID)
	if err != nil {
		opErr = fmt.Errorf("resolve merchant card: %w", err)
		return nil, opErr
	}
	if err := s.saldos.Credit(ctx, merchantCard.CardNumber, req.Amount); err != nil {
		opErr = fmt.Errorf("credit merchant saldo: %w", err)
		return nil, opErr
	}

	s.invalidateAfterMutation(ctx, tx.ID, card.CardNumber, merchantCard.CardNumber)
	publishMovementEvent(ctx, s.producer, s.exchange, domain.MovementEvent{
		MovementID: tx.ID,
		Kind:       cache.KindTransaction,
		Status:     "created",
		Amount:     tx.Amount,
		OccurredAt: time.Now().UTC(),
	})

	log.Printf("level=info component=transaction msg=\"transaction created\" transaction_id=%s card=%s amount=%d",
		tx.ID, card.CardNumber, tx.Amount)
	return tx, nil
}

// Update re-points an existing transaction at a new amount. The old amount
// is credited back first, the new amount is checked against the restored
// balance and then debited. Failures after the record is loaded mark it
// failed where the flow dictates; there is no full rollback chain symmetric
// to Create.
func (s *TransactionService) Update(ctx context.Context, apiKey string, req *domain.UpdateTransactionRequest) (*domain.Transaction, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	ctx, span := s.sink.Start(ctx, "transaction.update", map[string]string{
		"transaction_id": req.TransactionID.String(),
	})
	var opErr error
	defer func() {
		if opErr != nil {
			span.Complete(false, opErr.Error())
		} else {
			span.Complete(true, "transaction updated")
		}
	}()

	// 1. Load the record, then check ownership. The order is deliberate: the
	// failed status must land on the record the caller tried to touch.
	existing, err := s.transactions.FindByID(ctx, req.TransactionID)
	if err != nil {
		opErr = fmt.Errorf("find transaction %s: %w", req.TransactionID, err)
		return nil, opErr
	}
	merchant, err := s.merchants.FindByAPIKey(ctx, apiKey)
	if err != nil {
		opErr = fmt.Errorf("resolve merchant: %w", err)
		return nil, opErr
	}
	if existing.MerchantID != merchant.ID {
		s.markFailed(ctx, existing.ID)
		opErr = fmt.Errorf("transaction %s: %w", existing.ID, ErrUnauthorizedAccess)
		return nil, opErr
	}

	unlock := s.locks.Lock(existing.CardNumber)
	defer unlock()

	// 2. Resolve the account referenced by the existing record.
	card, err := s.cards.FindByCard(ctx, existing.CardNumber)
	if err != nil {
		opErr = fmt.Errorf("resolve card: %w", err)
		return nil, opErr
	}
	saldo, err := s.saldos.FindByCard(ctx, card.CardNumber)
	if err != nil {
		opErr = fmt.Errorf("fetch saldo: %w", err)
		return nil, opErr
	}

	// 3. Restore the balance by the old amount, undoing the original debit.
	if err := s.saldos.Credit(ctx, card.CardNumber, existing.Amount); err != nil {
		s.markFailed(ctx, existing.ID)
		opErr = fmt.Errorf("restore saldo: %w", err)
		return nil, opErr
	}
	restored := saldo.TotalBalance + existing.Amount

	// 4. Check the new amount against the restored balance. The balance is
	// left restored and un-debited on failure.
	if restored < req.Amount {
		log.Printf("level=warn component=transaction msg=\"insufficient balance on update\" card=%s requested=%d available=%d",
			card.CardNumber, req.Amount, restored)
		s.markFailed(ctx, existing.ID)
		opErr = fmt.Errorf("payer %s: %w", card.CardNumber, store.ErrInsufficientBalance)
		return nil, opErr
	}

	// 5. Debit the new amount.
	if err := s.saldos.Debit(ctx, card.CardNumber, req.Amount); err != nil {
		if errors.Is(err, store.ErrInsufficientBalance) {
			s.markFailed(ctx, existing.ID)
		}
		opErr = fmt.Errorf("debit new amount: %w", err)
		return nil, opErr
	}

	// 6. Update the record's mutable fields.
	updated, err := s.transactions.Update(ctx, req)
	if err != nil {
		opErr = fmt.Errorf("update transaction record: %w", err)
		return nil, opErr
	}

	// 7. Advance status.
	if err := finalizeStatus(ctx, s.retries, updated.ID, s.transactions.UpdateStatus); err != nil {
		opErr = err
		return nil, opErr
	}
	updated.Status = domain.StatusSuccess

	s.invalidateAfterMutation(ctx, updated.ID, card.CardNumber, "")
	publishMovementEvent(ctx, s.producer, s.exchange, domain.MovementEvent{
		MovementID: updated.ID,
		Kind:       cache.KindTransaction,
		Status:     "updated",
		Amount:     updated.Amount,
		OccurredAt: time.Now().UTC(),
	})

	log.Printf("level=info component=transaction msg=\"transaction updated\" transaction_id=%s amount=%d", updated.ID, updated.Amount)
	return updated, nil
}

// markFailed records a failed outcome on a persisted record. Best-effort:
// the triggering error is what the caller sees.
func (s *TransactionService) markFailed(ctx context.Context, id uuid.UUID) {
	if err := s.transactions.UpdateStatus(ctx, id, domain.StatusFailed); err != nil {
		log.Printf("level=error component=transaction msg=\"failed-status write failed\" transaction_id=%s err=%v", id, err)
	}
}

func (s *TransactionService) invalidateAfterMutation(ctx context.Context, id uuid.UUID, payerCard, merchantCard string) {
	s.cache.Evict(ctx, cache.FindByIDKey(cache.KindTransaction, id))
	s.cache.Evict(ctx, cache.FindByCardKey(cache.KindTransaction, payerCard))
	s.cache.Evict(ctx, cache.FindByCardKey(cache.KindSaldo, payerCard))
	if merchantCard != "" {
		s.cache.Evict(ctx, cache.FindByCardKey(cache.KindSaldo, merchantCard))
	}
	s.cache.EvictPattern(ctx, cache.FindAllPattern(cache.KindTransaction))
	s.cache.EvictPattern(ctx, cache.FindActivePattern(cache.KindTransaction))
	s.cache.EvictPattern(ctx, cache.FindTrashedPattern(cache.KindTransaction))
}

// Trashed soft-deletes a transaction record.
func (s *TransactionService) Trashed(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	tx, err := s.transactions.Trash(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("trash transaction %s: %w", id, err)
	}
	s.invalidateAfterMutation(ctx, id, tx.CardNumber, "")
	return tx, nil
}

// Restore brings a trashed transaction record back.
func (s *TransactionService) Restore(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	tx, err := s.transactions.Restore(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("restore transaction %s: %w", id, err)
	}
	s.invalidateAfterMutation(ctx, id, tx.CardNumber, "")
	return tx, nil
}

// DeletePermanent removes a trashed transaction record for good.
func (s *TransactionService) DeletePermanent(ctx context.Context, id uuid.UUID) error {
	if err := s.transactions.DeletePermanent(ctx, id); err != nil {
		return fmt.Errorf("permanently delete transaction %s: %w", id, err)
	}
	s.cache.Evict(ctx, cache.FindByIDKey(cache.KindTransaction, id))
	s.cache.EvictPattern(ctx, cache.FindAllPattern(cache.KindTransaction))
	s.cache.EvictPattern(ctx, cache.FindActivePattern(cache.KindTransaction))
	s.cache.EvictPattern(ctx, cache.FindTrashedPattern(cache.KindTransaction))
	return nil
}

// RestoreAll restores every trashed transaction record.
func (s *TransactionService) RestoreAll(ctx context.Context) error {
	if err := s.transactions.RestoreAll(ctx); err != nil {
		return fmt.Errorf("restore all transactions: %w", err)
	}
	s.cache.EvictPattern(ctx, cache.KindTransaction+":*")
	return nil
}

// DeleteAllPermanent removes every trashed transaction record for good.
func (s *TransactionService) DeleteAllPermanent(ctx context.Context) error {
	if err := s.transactions.DeleteAllPermanent(ctx); err != nil {
		return fmt.Errorf("permanently delete all transactions: %w", err)
	}
	s.cache.EvictPattern(ctx, cache.KindTransaction+":*")
	return nil
}
