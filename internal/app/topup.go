/**
 * @description
 * Topup orchestrator: a single-balance credit movement. Unlike transactions
 * and withdraws, the record is persisted before the balance moves; a credit
 * failure then marks the already-visible record failed instead of unwinding
 * a balance leg.
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

// TopupService orchestrates topup movements.
type TopupService struct {
	topups   store.TopupStore
	cards    store.CardStore
	saldos   store.SaldoStore
	cache    cache.Store
	sink     observability.Sink
	producer EventPublisher
	exchange string
	retries  int
	locks    *accountLocks
}

// NewTopupService creates a topup orchestrator. producer may be nil.
func NewTopupService(
	topups store.TopupStore,
	cards store.CardStore,
	saldos store.SaldoStore,
	cacheStore cache.Store,
	sink observability.Sink,
	producer EventPublisher,
	exchange string,
	statusRetryAttempts int,
) *TopupService {
	return &TopupService{
		topups:   topups,
		cards:    cards,
		saldos:   saldos,
		cache:    cacheStore,
		sink:     sink,
		producer: producer,
		exchange: exchange,
		retries:  statusRetryAttempts,
		locks:    newAccountLocks(),
	}
}

// Create persists the topup record first, then credits the balance. A credit
// failure marks the record failed; the caller sees the credit error.
func (s *TopupService) Create(ctx context.Context, req *domain.CreateTopupRequest) (*domain.Topup, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	ctx, span := s.sink.Start(ctx, "topup.create", map[string]string{"card_number": req.CardNumber})
	var opErr error
	defer func() {
		if opErr != nil {
			span.Complete(false, opErr.Error())
		} else {
			span.Complete(true, "topup created")
		}
	}()

	unlock := s.locks.Lock(req.CardNumber)
	defer unlock()

	// 1. The card must exist before anything is written.
	card, err := s.cards.FindByCard(ctx, req.CardNumber)
	if err != nil {
		opErr = fmt.Errorf("resolve card: %w", err)
		return nil, opErr
	}

	// 2. Persist the movement record.
	topup, err := s.topups.Create(ctx, req)
	if err != nil {
		opErr = fmt.Errorf("create topup record: %w", err)
		return nil, opErr
	}

	// 3. Credit the balance. The record already exists, so failure is
	// recorded on it rather than compensated.
	if err := s.saldos.Credit(ctx, card.CardNumber, req.Amount); err != nil {
		s.markFailed(ctx, topup.ID)
		opErr = fmt.Errorf("credit saldo: %w", err)
		return nil, opErr
	}

	// 4. Advance status.
	if err := finalizeStatus(ctx, s.retries, topup.ID, s.topups.UpdateStatus); err != nil {
		opErr = err
		return nil, opErr
	}
	topup.Status = domain.StatusSuccess

	s.invalidateAfterMutation(ctx, topup.ID, card.CardNumber)
	publishMovementEvent(ctx, s.producer, s.exchange, domain.MovementEvent{
		MovementID: topup.ID,
		Kind:       cache.KindTopup,
		Status:     "created",
		Amount:     topup.Amount,
		OccurredAt: time.Now().UTC(),
	})

	log.Printf("level=info component=topup msg=\"topup created\" topup_id=%s card=%s amount=%d", topup.ID, card.CardNumber, topup.Amount)
	return topup, nil
}

// Update adjusts an existing topup's amount by moving only the difference on
// the balance. Shrinking the topup debits the excess back; the guarded debit
// refuses to take the balance below zero.
func (s *TopupService) Update(ctx context.Context, req *domain.UpdateTopupRequest) (*domain.Topup, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	ctx, span := s.sink.Start(ctx, "topup.update", map[string]string{"topup_id": req.TopupID.String()})
	var opErr error
	defer func() {
		if opErr != nil {
			span.Complete(false, opErr.Error())
		} else {
			span.Complete(true, "topup updated")
		}
	}()

	// 1. Load the record and derive the delta from the stored amount.
	existing, err := s.topups.FindByID(ctx, req.TopupID)
	if err != nil {
		opErr = fmt.Errorf("find topup %s: %w", req.TopupID, err)
		return nil, opErr
	}
	delta := req.Amount - existing.Amount

	unlock := s.locks.Lock(existing.CardNumber)
	defer unlock()

	// 2. Apply the delta: a larger topup credits more, a smaller one debits
	// the excess back.
	switch {
	case delta > 0:
		err = s.saldos.Credit(ctx, existing.CardNumber, delta)
	case delta < 0:
		err = s.saldos.Debit(ctx, existing.CardNumber, -delta)
	}
	if err != nil {
		if errors.Is(err, store.ErrInsufficientBalance) {
			s.markFailed(ctx, existing.ID)
		}
		opErr = fmt.Errorf("adjust saldo: %w", err)
		return nil, opErr
	}

	// 3. Update the record. On failure the delta is reversed.
	updated, err := s.topups.Update(ctx, req)
	if err != nil {
		s.reverseDelta(ctx, existing.CardNumber, delta)
		s.markFailed(ctx, existing.ID)
		opErr = fmt.Errorf("update topup record: %w", err)
		return nil, opErr
	}

	// 4. Advance status.
	if err := finalizeStatus(ctx, s.retries, updated.ID, s.topups.UpdateStatus); err != nil {
		opErr = err
		return nil, opErr
	}
	updated.Status = domain.StatusSuccess

	s.invalidateAfterMutation(ctx, updated.ID, existing.CardNumber)
	publishMovementEvent(ctx, s.producer, s.exchange, domain.MovementEvent{
		MovementID: updated.ID,
		Kind:       cache.KindTopup,
		Status:     "updated",
		Amount:     updated.Amount,
		OccurredAt: time.Now().UTC(),
	})
	return updated, nil
}

func (s *TopupService) reverseDelta(ctx context.Context, cardNumber string, delta int64) {
	var err error
	switch {
	case delta > 0:
		err = s.saldos.Debit(ctx, cardNumber, delta)
	case delta < 0:
		err = s.saldos.Credit(ctx, cardNumber, -delta)
	}
	if err != nil {
		log.Printf("level=error component=topup msg=\"compensation failed\" card=%s delta=%d err=%v", cardNumber, delta, err)
	}
}

func (s *TopupService) markFailed(ctx context.Context, id uuid.UUID) {
	if err := s.topups.UpdateStatus(ctx, id, domain.StatusFailed); err != nil {
		log.Printf("level=error component=topup msg=\"failed-status write failed\" topup_id=%s err=%v", id, err)
	}
}

func (s *TopupService) invalidateAfterMutation(ctx context.Context, id uuid.UUID, cardNumber string) {
	s.cache.Evict(ctx, cache.FindByIDKey(cache.KindTopup, id))
	s.cache.Evict(ctx, cache.FindByCardKey(cache.KindTopup, cardNumber))
	s.cache.Evict(ctx, cache.FindByCardKey(cache.KindSaldo, cardNumber))
	s.cache.EvictPattern(ctx, cache.FindAllPattern(cache.KindTopup))
}
