/**
 * @description
 * This file defines the data-access contracts consumed by the movement
 * orchestrators. Each collaborator gets its own small interface (balance
 * store, party resolvers, movement record stores) so the saga logic can be
 * tested against hand-rolled fakes, while a single PostgresRepository
 * implements all of them against one connection pool.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For movement record ids.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/paygate/movement-service/internal/domain"
)

var (
	ErrCardNotFound        = errors.New("card not found")
	ErrMerchantNotFound    = errors.New("merchant not found")
	ErrSaldoNotFound       = errors.New("saldo not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrTransferNotFound    = errors.New("transfer not found")
	ErrTopupNotFound       = errors.New("topup not found")
	ErrWithdrawNotFound    = errors.New("withdraw not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// SaldoStore owns all balance reads and mutations. Debit is guarded: it runs
// inside a row-locked transaction and refuses to take a balance below zero,
// returning ErrInsufficientBalance instead. Credit is an atomic increment.
// Together they close the read-then-write race a plain read/update-balance
// round trip would have.
type SaldoStore interface {
	FindByCard(ctx context.Context, cardNumber string) (*domain.Saldo, error)
	Debit(ctx context.Context, cardNumber string, amount int64) error
	Credit(ctx context.Context, cardNumber string, amount int64) error
}

// CardStore resolves account identity records. The orchestrators never
// mutate cards.
type CardStore interface {
	FindByCard(ctx context.Context, cardNumber string) (*domain.Card, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.Card, error)
}

// MerchantStore resolves the caller's merchant record from an API key.
type MerchantStore interface {
	FindByAPIKey(ctx context.Context, apiKey string) (*domain.Merchant, error)
}

// TransactionStore persists transaction movement records and their lifecycle.
type TransactionStore interface {
	Create(ctx context.Context, req *domain.CreateTransactionRequest, merchantID uuid.UUID) (*domain.Transaction, error)
	Update(ctx context.Context, req *domain.UpdateTransactionRequest) (*domain.Transaction, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	FindAll(ctx context.Context, opts domain.ListOptions) ([]domain.Transaction, error)
	FindActive(ctx context.Context, opts domain.ListOptions) ([]domain.Transaction, error)
	FindTrashed(ctx context.Context, opts domain.ListOptions) ([]domain.Transaction, error)
	FindByCard(ctx context.Context, cardNumber string) ([]domain.Transaction, error)
	Trash(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	Restore(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	DeletePermanent(ctx context.Context, id uuid.UUID) error
	RestoreAll(ctx context.Context) error
	DeleteAllPermanent(ctx context.Context) error
	FindStuckPending(ctx context.Context, olderThan time.Time) ([]domain.Transaction, error)
}

// TransferStore persists transfer movement records and their lifecycle.
type TransferStore interface {
	Create(ctx context.Context, req *domain.CreateTransferRequest) (*domain.Transfer, error)
	Update(ctx context.Context, id uuid.UUID, amount int64) (*domain.Transfer, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error)
	FindAll(ctx context.Context, opts domain.ListOptions) ([]domain.Transfer, error)
	FindActive(ctx context.Context, opts domain.ListOptions) ([]domain.Transfer, error)
	FindTrashed(ctx context.Context, opts domain.ListOptions) ([]domain.Transfer, error)
	FindByCard(ctx context.Context, cardNumber string) ([]domain.Transfer, error)
	Trash(ctx context.Context, id uuid.UUID) (*domain.Transfer, error)
	Restore(ctx context.Context, id uuid.UUID) (*domain.Transfer, error)
	DeletePermanent(ctx context.Context, id uuid.UUID) error
	RestoreAll(ctx context.Context) error
	DeleteAllPermanent(ctx context.Context) error
	FindStuckPending(ctx context.Context, olderThan time.Time) ([]domain.Transfer, error)
}

// TopupStore persists topup movement records.
type TopupStore interface {
	Create(ctx context.Context, req *domain.CreateTopupRequest) (*domain.Topup, error)
	Update(ctx context.Context, req *domain.UpdateTopupRequest) (*domain.Topup, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Topup, error)
}

// WithdrawStore persists withdraw movement records.
type WithdrawStore interface {
	Create(ctx context.Context, req *domain.CreateWithdrawRequest) (*domain.Withdraw, error)
	Update(ctx context.Context, req *domain.UpdateWithdrawRequest) (*domain.Withdraw, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Withdraw, error)
}
