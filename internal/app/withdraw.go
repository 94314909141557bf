/**
 * @description
 * Withdraw orchestrator: a single-balance debit movement. Mirrors the
 * transaction payer leg without a counterparty: sufficiency check, guarded
 * debit, record persistence with a credit-back compensation, then the
 * retried status advance.
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

// WithdrawService orchestrates withdraw movements.
type WithdrawService struct {
	withdraws store.WithdrawStore
	saldos    store.SaldoStore
	cache     cache.Store
	sink      observability.Sink
	producer  EventPublisher
	exchange  string
	retries   int
	locks     *accountLocks
}

// NewWithdrawService creates a withdraw orchestrator. producer may be nil.
func NewWithdrawService(
	withdraws store.WithdrawStore,
	saldos store.SaldoStore,
	cacheStore cache.Store,
	sink observability.Sink,
	producer EventPublisher,
	exchange string,
	statusRetryAttempts int,
) *WithdrawService {
	return &WithdrawService{
		withdraws: withdraws,
		saldos:    saldos,
		cache:     cacheStore,
		sink:      sink,
		producer:  producer,
		exchange:  exchange,
		retries:   statusRetryAttempts,
		locks:     newAccountLocks(),
	}
}

// Create checks sufficiency, debits the balance, persists the record, then
// advances its status. A record persistence failure credits the debited
// amount back.
func (s *WithdrawService) Create(ctx context.Context, req *domain.CreateWithdrawRequest) (*domain.Withdraw, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	ctx, span := s.sink.Start(ctx, "withdraw.create", map[string]string{"card_number": req.CardNumber})
	var opErr error
	defer func() {
		if opErr != nil {
			span.Complete(false, opErr.Error())
		} else {
			span.Complete(true, "withdraw created")
		}
	}()

	unlock := s.locks.Lock(req.CardNumber)
	defer unlock()

	// 1. Sufficiency check before any write.
	saldo, err := s.saldos.FindByCard(ctx, req.CardNumber)
	if err != nil {
		opErr = fmt.Errorf("fetch saldo: %w", err)
		return nil, opErr
	}
	if saldo.TotalBalance < req.Amount {
		log.Printf("level=warn component=withdraw msg=\"insufficient balance\" card=%s requested=%d available=%d",
			req.CardNumber, req.Amount, saldo.TotalBalance)
		opErr = fmt.Errorf("account %s: %w", req.CardNumber, store.ErrInsufficientBalance)
		return nil, opErr
	}

	// 2. Debit the balance.
	if err := s.saldos.Debit(ctx, req.CardNumber, req.Amount); err != nil {
		opErr = fmt.Errorf("debit saldo: %w", err)
		return nil, opErr
	}

	// 3. Persist the movement record. On failure the debit is compensated.
	withdraw, err := s.withdraws.Create(ctx, req)
	if err != nil {
		if rbErr := s.saldos.Credit(ctx, req.CardNumber, req.Amount); rbErr != nil {
			log.Printf("level=error component=withdraw msg=\"compensation failed; debit not reversed\" card=%s amount=%d err=%v",
				req.CardNumber, req.Amount, rbErr)
		}
		opErr = fmt.Errorf("create withdraw record: %w", err)
		return nil, opErr
	}

	// 4. Advance status.
	if err := finalizeStatus(ctx, s.retries, withdraw.ID, s.withdraws.UpdateStatus); err != nil {
		opErr = err
		return nil, opErr
	}
	withdraw.Status = domain.StatusSuccess

	s.invalidateAfterMutation(ctx, withdraw.ID, req.CardNumber)
	publishMovementEvent(ctx, s.producer, s.exchange, domain.MovementEvent{
		MovementID: withdraw.ID,
		Kind:       cache.KindWithdraw,
		Status:     "created",
		Amount:     withdraw.Amount,
		OccurredAt: time.Now().UTC(),
	})

	log.Printf("level=info component=withdraw msg=\"withdraw created\" withdraw_id=%s card=%s amount=%d", withdraw.ID, req.CardNumber, withdraw.Amount)
	return withdraw, nil
}

// Update adjusts an existing withdraw's amount by moving only the
// difference: withdrawing more debits the extra, withdrawing less credits
// the excess back.
func (s *WithdrawService) Update(ctx context.Context, req *domain.UpdateWithdrawRequest) (*domain.Withdraw, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	ctx, span := s.sink.Start(ctx, "withdraw.update", map[string]string{"withdraw_id": req.WithdrawID.String()})
	var opErr error
	defer func() {
		if opErr != nil {
			span.Complete(false, opErr.Error())
		} else {
			span.Complete(true, "withdraw updated")
		}
	}()

	// 1. Load the record and derive the delta from the stored amount.
	existing, err := s.withdraws.FindByID(ctx, req.WithdrawID)
	if err != nil {
		opErr = fmt.Errorf("find withdraw %s: %w", req.WithdrawID, err)
		return nil, opErr
	}
	delta := req.Amount - existing.Amount

	unlock := s.locks.Lock(existing.CardNumber)
	defer unlock()

	// 2. Apply the delta: a larger withdraw debits more, a smaller one
	// credits the excess back.
	switch {
	case delta > 0:
		err = s.saldos.Debit(ctx, existing.CardNumber, delta)
	case delta < 0:
		err = s.saldos.Credit(ctx, existing.CardNumber, -delta)
	}
	if err != nil {
		if errors.Is(err, store.ErrInsufficientBalance) {
			s.markFailed(ctx, existing.ID)
		}
		opErr = fmt.Errorf("adjust saldo: %w", err)
		return nil, opErr
	}

	// 3. Update the record. On failure the delta is reversed.
	updated, err := s.withdraws.Update(ctx, req)
	if err != nil {
		s.reverseDelta(ctx, existing.CardNumber, delta)
		s.markFailed(ctx, existing.ID)
		opErr = fmt.Errorf("update withdraw record: %w", err)
		return nil, opErr
	}

	// 4. Advance status.
	if err := finalizeStatus(ctx, s.retries, updated.ID, s.withdraws.UpdateStatus); err != nil {
		opErr = err
		return nil, opErr
	}
	updated.Status = domain.StatusSuccess

	s.invalidateAfterMutation(ctx, updated.ID, existing.CardNumber)
	publishMovementEvent(ctx, s.producer, s.exchange, domain.MovementEvent{
		MovementID: updated.ID,
		Kind:       cache.KindWithdraw,
		Status:     "updated",
		Amount:     updated.Amount,
		OccurredAt: time.Now().UTC(),
	})
	return updated, nil
}

func (s *WithdrawService) reverseDelta(ctx context.Context, cardNumber string, delta int64) {
	var err error
	switch {
	case delta > 0:
		err = s.saldos.Credit(ctx, cardNumber, delta)
	case delta < 0:
		err = s.saldos.Debit(ctx, cardNumber, -delta)
	}
	if err != nil {
		log.Printf("level=error component=withdraw msg=\"compensation failed\" card=%s delta=%d err=%v", cardNumber, delta, err)
	}
}

func (s *WithdrawService) markFailed(ctx context.Context, id uuid.UUID) {
	if err := s.withdraws.UpdateStatus(ctx, id, domain.StatusFailed); err != nil {
		log.Printf("level=error component=withdraw msg=\"failed-status write failed\" withdraw_id=%s err=%v", id, err)
	}
}

func (s *WithdrawService) invalidateAfterMutation(ctx context.Context, id uuid.UUID, cardNumber string) {
	s.cache.Evict(ctx, cache.FindByIDKey(cache.KindWithdraw, id))
	s.cache.Evict(ctx, cache.FindByCardKey(cache.KindWithdraw, cardNumber))
	s.cache.Evict(ctx, cache.FindByCardKey(cache.KindSaldo, cardNumber))
	s.cache.EvictPattern(ctx, cache.FindAllPattern(cache.KindWithdraw))
}
