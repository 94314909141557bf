package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paygate/movement-service/internal/domain"
	"github.com/paygate/movement-service/internal/observability"
	"github.com/paygate/movement-service/internal/store"
)

const (
	fromCard = "4333333333333333"
	toCard   = "4444444444444444"
)

type transferFixture struct {
	svc       *TransferService
	saldos    *fakeSaldos
	transfers *fakeTransfers
	publisher *fakePublisher
}

func newTransferFixture(t *testing.T) *transferFixture {
	t.Helper()
	cards := newFakeCards(
		&domain.Card{ID: uuid.New(), UserID: uuid.New(), CardNumber: fromCard, CardType: "debit"},
		&domain.Card{ID: uuid.New(), UserID: uuid.New(), CardNumber: toCard, CardType: "debit"},
	)
	saldos := newFakeSaldos(map[string]int64{fromCard: 1000, toCard: 200})
	transfers := newFakeTransfers()
	publisher := &fakePublisher{}
	svc := NewTransferService(
		transfers, cards, saldos,
		&fakeCache{}, observability.NoopSink{}, publisher, "movement_events", 3,
	)
	return &transferFixture{svc: svc, saldos: saldos, transfers: transfers, publisher: publisher}
}

func createTransferReq(amount int64) *domain.CreateTransferRequest {
	return &domain.CreateTransferRequest{TransferFrom: fromCard, TransferTo: toCard, Amount: amount}
}

func (fx *transferFixture) mustCreate(t *testing.T, amount int64) *domain.Transfer {
	t.Helper()
	transfer, err := fx.svc.Create(context.Background(), createTransferReq(amount))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	return transfer
}

func TestTransferCreate_IsZeroSum(t *testing.T) {
	fx := newTransferFixture(t)

	transfer := fx.mustCreate(t, 300)
	if transfer.Status != domain.StatusSuccess {
		t.Fatalf("expected success status, got %q", transfer.Status)
	}
	if got := fx.saldos.balance(fromCard); got != 700 {
		t.Fatalf("expected source balance 700, got %d", got)
	}
	if got := fx.saldos.balance(toCard); got != 500 {
		t.Fatalf("expected destination balance 500, got %d", got)
	}
	if got := fx.saldos.total(); got != 1200 {
		t.Fatalf("expected total preserved at 1200, got %d", got)
	}
	if !fx.publisher.published("movement.transfer.created") {
		t.Fatal("expected movement.transfer.created event")
	}
}

func TestTransferCreate_InsufficientSourceLeavesStateUntouched(t *testing.T) {
	fx := newTransferFixture(t)

	_, err := fx.svc.Create(context.Background(), createTransferReq(5000))
	if !errors.Is(err, store.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if len(fx.saldos.ops) != 0 {
		t.Fatalf("expected no balance operations, got %v", fx.saldos.ops)
	}
}

func TestTransferCreate_SameAccountRejected(t *testing.T) {
	fx := newTransferFixture(t)

	_, err := fx.svc.Create(context.Background(), &domain.CreateTransferRequest{
		TransferFrom: fromCard, TransferTo: fromCard, Amount: 100,
	})
	if !IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTransferCreate_DestinationCreditFailureRestoresSource(t *testing.T) {
	fx := newTransferFixture(t)
	fx.saldos.failCredit[toCard] = errors.New("credit failed")

	_, err := fx.svc.Create(context.Background(), createTransferReq(300))
	if err == nil {
		t.Fatal("expected error")
	}
	if got := fx.saldos.balance(fromCard); got != 1000 {
		t.Fatalf("expected source restored to 1000, got %d", got)
	}
	if got := fx.saldos.balance(toCard); got != 200 {
		t.Fatalf("expected destination unchanged at 200, got %d", got)
	}
}

func TestTransferCreate_RecordFailureReversesBothLegs(t *testing.T) {
	fx := newTransferFixture(t)
	fx.transfers.createErr = errors.New("insert failed")

	_, err := fx.svc.Create(context.Background(), createTransferReq(300))
	if err == nil {
		t.Fatal("expected error")
	}
	if got := fx.saldos.balance(fromCard); got != 1000 {
		t.Fatalf("expected source restored to 1000, got %d", got)
	}
	if got := fx.saldos.balance(toCard); got != 200 {
		t.Fatalf("expected destination restored to 200, got %d", got)
	}
	// Reverse commit order: destination leg undone before the source leg.
	ops := fx.saldos.ops
	if len(ops) != 4 {
		t.Fatalf("expected 4 balance operations, got %v", ops)
	}
	if ops[2] != "debit:"+toCard+":300" || ops[3] != "credit:"+fromCard+":300" {
		t.Fatalf("expected compensation in reverse commit order, got %v", ops)
	}
}

func TestTransferUpdate_AppliesDelta(t *testing.T) {
	tests := []struct {
		name      string
		newAmount int64
		wantFrom  int64
		wantTo    int64
	}{
		{name: "increase moves extra", newAmount: 450, wantFrom: 550, wantTo: 650},
		{name: "decrease moves excess back", newAmount: 100, wantFrom: 900, wantTo: 300},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fx := newTransferFixture(t)
			transfer := fx.mustCreate(t, 300)

			updated, err := fx.svc.Update(context.Background(), &domain.UpdateTransferRequest{
				TransferID: transfer.ID,
				Amount:     tc.newAmount,
			})
			if err != nil {
				t.Fatalf("Update returned error: %v", err)
			}
			if updated.Amount != tc.newAmount {
				t.Fatalf("expected amount %d, got %d", tc.newAmount, updated.Amount)
			}
			if got := fx.saldos.balance(fromCard); got != tc.wantFrom {
				t.Fatalf("expected source balance %d, got %d", tc.wantFrom, got)
			}
			if got := fx.saldos.balance(toCard); got != tc.wantTo {
				t.Fatalf("expected destination balance %d, got %d", tc.wantTo, got)
			}
			if got := fx.saldos.total(); got != 1200 {
				t.Fatalf("expected total preserved at 1200, got %d", got)
			}
		})
	}
}

func TestTransferUpdate_UnchangedAmountTouchesNoBalance(t *testing.T) {
	fx := newTransferFixture(t)
	transfer := fx.mustCreate(t, 300)
	opsBefore := len(fx.saldos.ops)

	updated, err := fx.svc.Update(context.Background(), &domain.UpdateTransferRequest{
		TransferID: transfer.ID,
		Amount:     300,
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.Status != domain.StatusSuccess {
		t.Fatalf("expected success status, got %q", updated.Status)
	}
	if len(fx.saldos.ops) != opsBefore {
		t.Fatalf("expected no balance operations for zero delta, got %v", fx.saldos.ops[opsBefore:])
	}
}

func TestTransferUpdate_InsufficientDeltaMarksFailedWithoutWrites(t *testing.T) {
	fx := newTransferFixture(t)
	transfer := fx.mustCreate(t, 300)
	opsBefore := len(fx.saldos.ops)

	_, err := fx.svc.Update(context.Background(), &domain.UpdateTransferRequest{
		TransferID: transfer.ID,
		Amount:     5000,
	})
	if !errors.Is(err, store.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if fx.transfers.status(transfer.ID) != domain.StatusFailed {
		t.Fatalf("expected record marked failed, got %q", fx.transfers.status(transfer.ID))
	}
	if len(fx.saldos.ops) != opsBefore {
		t.Fatalf("expected no balance operations, got %v", fx.saldos.ops[opsBefore:])
	}
}

func TestTransferUpdate_RecordFailureReversesDelta(t *testing.T) {
	fx := newTransferFixture(t)
	transfer := fx.mustCreate(t, 300)
	fx.transfers.updateErr = errors.New("update failed")

	_, err := fx.svc.Update(context.Background(), &domain.UpdateTransferRequest{
		TransferID: transfer.ID,
		Amount:     450,
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := fx.saldos.balance(fromCard); got != 700 {
		t.Fatalf("expected source back at 700, got %d", got)
	}
	if got := fx.saldos.balance(toCard); got != 500 {
		t.Fatalf("expected destination back at 500, got %d", got)
	}
	if fx.transfers.status(transfer.ID) != domain.StatusFailed {
		t.Fatalf("expected record marked failed, got %q", fx.transfers.status(transfer.ID))
	}
}

func TestTransferCreate_StatusExhaustionLeavesRecordPending(t *testing.T) {
	fx := newTransferFixture(t)
	fx.transfers.statusFailures = 10

	start := time.Now()
	_, err := fx.svc.Create(context.Background(), createTransferReq(300))
	if err == nil {
		t.Fatal("expected error after retry exhaustion")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("retry backoff took unexpectedly long")
	}
	// Both legs committed and stay committed.
	if got := fx.saldos.balance(fromCard); got != 700 {
		t.Fatalf("expected source balance 700, got %d", got)
	}
	if got := fx.saldos.balance(toCard); got != 500 {
		t.Fatalf("expected destination balance 500, got %d", got)
	}
}
