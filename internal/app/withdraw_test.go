package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/paygate/movement-service/internal/domain"
	"github.com/paygate/movement-service/internal/observability"
	"github.com/paygate/movement-service/internal/store"
)

const withdrawCard = "4666666666666666"

func newWithdrawFixture(t *testing.T) (*WithdrawService, *fakeSaldos, *fakeWithdraws) {
	t.Helper()
	saldos := newFakeSaldos(map[string]int64{withdrawCard: 800})
	withdraws := newFakeWithdraws()
	svc := NewWithdrawService(withdraws, saldos, &fakeCache{}, observability.NoopSink{}, &fakePublisher{}, "movement_events", 3)
	return svc, saldos, withdraws
}

func createWithdrawReq(amount int64) *domain.CreateWithdrawRequest {
	return &domain.CreateWithdrawRequest{
		CardNumber:   withdrawCard,
		Amount:       amount,
		WithdrawTime: time.Now(),
	}
}

func TestWithdrawCreate_DebitsBalance(t *testing.T) {
	svc, saldos, _ := newWithdrawFixture(t)

	withdraw, err := svc.Create(context.Background(), createWithdrawReq(300))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if withdraw.Status != domain.StatusSuccess {
		t.Fatalf("expected success status, got %q", withdraw.Status)
	}
	if got := saldos.balance(withdrawCard); got != 500 {
		t.Fatalf("expected balance 500, got %d", got)
	}
}

func TestWithdrawCreate_InsufficientBalance(t *testing.T) {
	svc, saldos, _ := newWithdrawFixture(t)

	_, err := svc.Create(context.Background(), createWithdrawReq(5000))
	if !errors.Is(err, store.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if len(saldos.ops) != 0 {
		t.Fatalf("expected no balance operations, got %v", saldos.ops)
	}
}

func TestWithdrawCreate_RecordFailureRefunds(t *testing.T) {
	svc, saldos, withdraws := newWithdrawFixture(t)
	withdraws.createErr = errors.New("insert failed")

	_, err := svc.Create(context.Background(), createWithdrawReq(300))
	if err == nil {
		t.Fatal("expected error")
	}
	if got := saldos.balance(withdrawCard); got != 800 {
		t.Fatalf("expected balance refunded to 800, got %d", got)
	}
}

func TestWithdrawUpdate_AppliesDelta(t *testing.T) {
	tests := []struct {
		name      string
		newAmount int64
		want      int64
	}{
		{name: "withdraw more debits extra", newAmount: 450, want: 350},
		{name: "withdraw less credits excess back", newAmount: 100, want: 700},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, saldos, _ := newWithdrawFixture(t)
			withdraw, err := svc.Create(context.Background(), createWithdrawReq(300))
			if err != nil {
				t.Fatalf("Create returned error: %v", err)
			}

			updated, err := svc.Update(context.Background(), &domain.UpdateWithdrawRequest{
				WithdrawID: withdraw.ID,
				CardNumber: withdrawCard,
				Amount:     tc.newAmount,
			})
			if err != nil {
				t.Fatalf("Update returned error: %v", err)
			}
			if updated.Amount != tc.newAmount {
				t.Fatalf("expected amount %d, got %d", tc.newAmount, updated.Amount)
			}
			if got := saldos.balance(withdrawCard); got != tc.want {
				t.Fatalf("expected balance %d, got %d", tc.want, got)
			}
		})
	}
}

func TestWithdrawUpdate_InsufficientDeltaMarksFailed(t *testing.T) {
	svc, saldos, withdraws := newWithdrawFixture(t)
	withdraw, err := svc.Create(context.Background(), createWithdrawReq(300))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	opsBefore := len(saldos.ops)

	_, err = svc.Update(context.Background(), &domain.UpdateWithdrawRequest{
		WithdrawID: withdraw.ID,
		CardNumber: withdrawCard,
		Amount:     5000,
	})
	if !errors.Is(err, store.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if withdraws.records[withdraw.ID].Status != domain.StatusFailed {
		t.Fatalf("expected record marked failed, got %q", withdraws.records[withdraw.ID].Status)
	}
	if len(saldos.ops) != opsBefore {
		t.Fatalf("expected no balance operations, got %v", saldos.ops[opsBefore:])
	}
}
