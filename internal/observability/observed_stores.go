/**
 * @description
 * Decorators wrapping the store interfaces with span recording. Wrapping
 * collaborator calls here keeps the saga logic free of instrumentation and
 * testable in isolation: the orchestrators receive already-decorated stores.
 */

package observability

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/paygate/movement-service/internal/domain"
	"github.com/paygate/movement-service/internal/store"
)

func observe(ctx context.Context, sink Sink, name string, attrs map[string]string, fn func(context.Context) error) error {
	ctx, handle := sink.Start(ctx, name, attrs)
	err := fn(ctx)
	if err != nil {
		handle.Complete(false, name+" failed: "+err.Error())
		return err
	}
	handle.Complete(true, name+" completed")
	return nil
}

// ObservedSaldoStore wraps a SaldoStore with spans.
type ObservedSaldoStore struct {
	Inner store.SaldoStore
	Sink  Sink
}

func (o ObservedSaldoStore) FindByCard(ctx context.Context, cardNumber string) (*domain.Saldo, error) {
	var out *domain.Saldo
	err := observe(ctx, o.Sink, "saldo.find_by_card", map[string]string{"card_number": cardNumber}, func(ctx context.Context) error {
		var err error
		out, err = o.Inner.FindByCard(ctx, cardNumber)
		return err
	})
	return out, err
}

func (o ObservedSaldoStore) Debit(ctx context.Context, cardNumber string, amount int64) error {
	return observe(ctx, o.Sink, "saldo.debit", map[string]string{"card_number": cardNumber}, func(ctx context.Context) error {
		return o.Inner.Debit(ctx, cardNumber, amount)
	})
}

func (o ObservedSaldoStore) Credit(ctx context.Context, cardNumber string, amount int64) error {
	return observe(ctx, o.Sink, "saldo.credit", map[string]string{"card_number": cardNumber}, func(ctx context.Context) error {
		return o.Inner.Credit(ctx, cardNumber, amount)
	})
}

// ObservedCardStore wraps a CardStore with spans.
type ObservedCardStore struct {
	Inner store.CardStore
	Sink  Sink
}

func (o ObservedCardStore) FindByCard(ctx context.Context, cardNumber string) (*domain.Card, error) {
	var out *domain.Card
	err := observe(ctx, o.Sink, "card.find_by_card", map[string]string{"card_number": cardNumber}, func(ctx context.Context) error {
		var err error
		out, err = o.Inner.FindByCard(ctx, cardNumber)
		return err
	})
	return out, err
}

func (o ObservedCardStore) FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.Card, error) {
	var out *domain.Card
	err := observe(ctx, o.Sink, "card.find_by_user_id", map[string]string{"user_id": userID.String()}, func(ctx context.Context) error {
		var err error
		out, err = o.Inner.FindByUserID(ctx, userID)
		return err
	})
	return out, err
}

// ObservedMerchantStore wraps a MerchantStore with spans. The API key is
// deliberately not recorded as an attribute.
type ObservedMerchantStore struct {
	Inner store.MerchantStore
	Sink  Sink
}

func (o ObservedMerchantStore) FindByAPIKey(ctx context.Context, apiKey string) (*domain.Merchant, error) {
	var out *domain.Merchant
	err := observe(ctx, o.Sink, "merchant.find_by_apikey", nil, func(ctx context.Context) error {
		var err error
		out, err = o.Inner.FindByAPIKey(ctx, apiKey)
		return err
	})
	return out, err
}

// ObservedTransactionStore wraps the write path of a TransactionStore with
// spans. Read methods pass through; the query service carries its own span.
type ObservedTransactionStore struct {
	store.TransactionStore
	Sink Sink
}

func (o ObservedTransactionStore) Create(ctx context.Context, req *domain.CreateTransactionRequest, merchantID uuid.UUID) (*domain.Transaction, error) {
	var out *domain.Transaction
	err := observe(ctx, o.Sink, "transaction.create_record", map[string]string{"card_number": req.CardNumber}, func(ctx context.Context) error {
		var err error
		out, err = o.TransactionStore.Create(ctx, req, merchantID)
		return err
	})
	return out, err
}

func (o ObservedTransactionStore) Update(ctx context.Context, req *domain.UpdateTransactionRequest) (*domain.Transaction, error) {
	var out *domain.Transaction
	err := observe(ctx, o.Sink, "transaction.update_record", map[string]string{"transaction_id": req.TransactionID.String()}, func(ctx context.Context) error {
		var err error
		out, err = o.TransactionStore.Update(ctx, req)
		return err
	})
	return out, err
}

func (o ObservedTransactionStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return observe(ctx, o.Sink, "transaction.update_status", map[string]string{"transaction_id": id.String(), "status": status}, func(ctx context.Context) error {
		return o.TransactionStore.UpdateStatus(ctx, id, status)
	})
}

func (o ObservedTransactionStore) FindStuckPending(ctx context.Context, olderThan time.Time) ([]domain.Transaction, error) {
	return o.TransactionStore.FindStuckPending(ctx, olderThan)
}

// ObservedTransferStore wraps the write path of a TransferStore with spans.
type ObservedTransferStore struct {
	store.TransferStore
	Sink Sink
}

func (o ObservedTransferStore) Create(ctx context.Context, req *domain.CreateTransferRequest) (*domain.Transfer, error) {
	var out *domain.Transfer
	err := observe(ctx, o.Sink, "transfer.create_record", map[string]string{"transfer_from": req.TransferFrom, "transfer_to": req.TransferTo}, func(ctx context.Context) error {
		var err error
		out, err = o.TransferStore.Create(ctx, req)
		return err
	})
	return out, err
}

func (o ObservedTransferStore) Update(ctx context.Context, id uuid.UUID, amount int64) (*domain.Transfer, error) {
	var out *domain.Transfer
	err := observe(ctx, o.Sink, "transfer.update_record", map[string]string{"transfer_id": id.String()}, func(ctx context.Context) error {
		var err error
		out, err = o.TransferStore.Update(ctx, id, amount)
		return err
	})
	return out, err
}

func (o ObservedTransferStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return observe(ctx, o.Sink, "transfer.update_status", map[string]string{"transfer_id": id.String(), "status": status}, func(ctx context.Context) error {
		return o.TransferStore.UpdateStatus(ctx, id, status)
	})
}
