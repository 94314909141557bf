/**
 * @description
 * This file defines the core domain models for the movement-service.
 * These structs represent the movement records (transactions, transfers,
 * topups, withdraws) and the party/balance entities used throughout the
 * service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Amounts are stored as `int64` to represent the value in the smallest
 *   currency unit, which avoids floating-point inaccuracies with financial
 *   data.
 * - Movement records carry a lifecycle status: pending -> success | failed.
 *   A record only exists once its initial persistence succeeded, so the
 *   pending state is implicit at creation time.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Movement record statuses. There is no transition back from a terminal
// status to pending; a later Update call starts a fresh status cycle.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// ValidStatusTransition reports whether a movement record may move from one
// status to another.
func ValidStatusTransition(from, to string) bool {
	switch from {
	case StatusPending:
		return to == StatusSuccess || to == StatusFailed
	case StatusSuccess, StatusFailed:
		// A subsequent Update call may re-drive the status of a terminal
		// record; status is not a lock.
		return to == StatusSuccess || to == StatusFailed
	default:
		return false
	}
}

// Saldo is the stored balance owned by one card. It maps to the `saldos`
// table and is mutated exclusively through the SaldoStore.
type Saldo struct {
	ID           uuid.UUID  `json:"id"`
	CardNumber   string     `json:"card_number"`
	TotalBalance int64      `json:"total_balance"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// Card is the account identity record resolved before any balance mutation.
// The orchestrators never mutate cards.
type Card struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	CardNumber string    `json:"card_number"`
	CardType   string    `json:"card_type"`
}

// Merchant is resolved from an API key on transaction flows. Its UserID links
// to the card that receives the merchant leg of a transaction.
type Merchant struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
	APIKey string    `json:"-"`
	Status string    `json:"status"`
}

// Transaction is a one-account movement record: a payer card pays a merchant.
// Maps to the `transactions` table.
type Transaction struct {
	ID              uuid.UUID  `json:"id"`
	CardNumber      string     `json:"card_number"`
	Amount          int64      `json:"amount"`
	PaymentMethod   string     `json:"payment_method"`
	MerchantID      uuid.UUID  `json:"merchant_id"`
	TransactionTime time.Time  `json:"transaction_time"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
}

// Transfer is a two-account movement record. Maps to the `transfers` table.
type Transfer struct {
	ID           uuid.UUID  `json:"id"`
	TransferFrom string     `json:"transfer_from"`
	TransferTo   string     `json:"transfer_to"`
	Amount       int64      `json:"transfer_amount"`
	TransferTime time.Time  `json:"transfer_time"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// Topup is a single-balance credit record. Maps to the `topups` table.
type Topup struct {
	ID          uuid.UUID  `json:"id"`
	CardNumber  string     `json:"card_number"`
	Amount      int64      `json:"topup_amount"`
	TopupMethod string     `json:"topup_method"`
	TopupTime   time.Time  `json:"topup_time"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// Withdraw is a single-balance debit record. Maps to the `withdraws` table.
type Withdraw struct {
	ID           uuid.UUID  `json:"id"`
	CardNumber   string     `json:"card_number"`
	Amount       int64      `json:"withdraw_amount"`
	WithdrawTime time.Time  `json:"withdraw_time"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// CreateTransactionRequest is the DTO for creating a transaction movement.
// The merchant is resolved from the caller's API key, not the body.
type CreateTransactionRequest struct {
	CardNumber      string    `json:"card_number" validate:"required"`
	Amount          int64     `json:"amount" validate:"required,gt=0"`
	PaymentMethod   string    `json:"payment_method" validate:"required"`
	TransactionTime time.Time `json:"transaction_time" validate:"required"`
}

// UpdateTransactionRequest is the DTO for updating an existing transaction.
type UpdateTransactionRequest struct {
	TransactionID   uuid.UUID `json:"transaction_id" validate:"required"`
	CardNumber      string    `json:"card_number" validate:"required"`
	Amount          int64     `json:"amount" validate:"required,gt=0"`
	PaymentMethod   string    `json:"payment_method" validate:"required"`
	TransactionTime time.Time `json:"transaction_time" validate:"required"`
}

// CreateTransferRequest is the DTO for creating a transfer movement.
type CreateTransferRequest struct {
	TransferFrom string `json:"transfer_from" validate:"required"`
	TransferTo   string `json:"transfer_to" validate:"required,nefield=TransferFrom"`
	Amount       int64  `json:"transfer_amount" validate:"required,gt=0"`
}

// UpdateTransferRequest is the DTO for updating an existing transfer's amount.
// The from/to accounts are taken from the stored record, not the request.
type UpdateTransferRequest struct {
	TransferID uuid.UUID `json:"transfer_id" validate:"required"`
	Amount     int64     `json:"transfer_amount" validate:"required,gt=0"`
}

// CreateTopupRequest is the DTO for creating a topup movement.
type CreateTopupRequest struct {
	CardNumber  string    `json:"card_number" validate:"required"`
	Amount      int64     `json:"topup_amount" validate:"required,gt=0"`
	TopupMethod string    `json:"topup_method" validate:"required"`
	TopupTime   time.Time `json:"topup_time" validate:"required"`
}

// UpdateTopupRequest is the DTO for updating an existing topup's amount.
type UpdateTopupRequest struct {
	TopupID    uuid.UUID `json:"topup_id" validate:"required"`
	CardNumber string    `json:"card_number" validate:"required"`
	Amount     int64     `json:"topup_amount" validate:"required,gt=0"`
}

// CreateWithdrawRequest is the DTO for creating a withdraw movement.
type CreateWithdrawRequest struct {
	CardNumber   string    `json:"card_number" validate:"required"`
	Amount       int64     `json:"withdraw_amount" validate:"required,gt=0"`
	WithdrawTime time.Time `json:"withdraw_time" validate:"required"`
}

// UpdateWithdrawRequest is the DTO for updating an existing withdraw's amount.
type UpdateWithdrawRequest struct {
	WithdrawID uuid.UUID `json:"withdraw_id" validate:"required"`
	CardNumber string    `json:"card_number" validate:"required"`
	Amount     int64     `json:"withdraw_amount" validate:"required,gt=0"`
}

// ListOptions carries pagination and search parameters for list queries.
type ListOptions struct {
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Search   string `json:"search"`
}

// Normalize clamps pagination values to sane bounds.
func (o *ListOptions) Normalize() {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PageSize < 1 || o.PageSize > 100 {
		o.PageSize = 25
	}
}

// APIResponse is the success envelope every operation returns.
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// OK wraps data in a success envelope.
func OK(message string, data any) APIResponse {
	return APIResponse{Status: "success", Message: message, Data: data}
}
