/**
 * @description
 * Query services for movement records: the read side of the service,
 * separated from the command orchestrators. Every read goes through the
 * cache first; a miss falls back to the store and populates the cache with
 * the TTL configured there. Cache failures only ever cost the fallback
 * query, never correctness, because the command side evicts the exact keys
 * these methods populate.
 */

package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/paygate/movement-service/internal/cache"
	"github.com/paygate/movement-service/internal/domain"
	"github.com/paygate/movement-service/internal/store"
)

// TransactionQueryService serves cached transaction reads.
type TransactionQueryService struct {
	transactions store.TransactionStore
	cache        cache.Store
}

func NewTransactionQueryService(transactions store.TransactionStore, cacheStore cache.Store) *TransactionQueryService {
	return &TransactionQueryService{transactions: transactions, cache: cacheStore}
}

func (s *TransactionQueryService) FindByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	key := cache.FindByIDKey(cache.KindTransaction, id)
	var cached domain.Transaction
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}
	tx, err := s.transactions.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find transaction %s: %w", id, err)
	}
	s.cache.Set(ctx, key, tx)
	return tx, nil
}

func (s *TransactionQueryService) FindByCard(ctx context.Context, cardNumber string) ([]domain.Transaction, error) {
	key := cache.FindByCardKey(cache.KindTransaction, cardNumber)
	var cached []domain.Transaction
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}
	txs, err := s.transactions.FindByCard(ctx, cardNumber)
	if err != nil {
		return nil, fmt.Errorf("find transactions by card %s: %w", cardNumber, err)
	}
	s.cache.Set(ctx, key, txs)
	return txs, nil
}

func (s *TransactionQueryService) FindAll(ctx context.Context, opts domain.ListOptions) ([]domain.Transaction, error) {
	opts.Normalize()
	key := cache.FindAllKey(cache.KindTransaction, opts.Page, opts.PageSize, opts.Search)
	var cached []domain.Transaction
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}
	txs, err := s.transactions.FindAll(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("find all transactions: %w", err)
	}
	s.cache.Set(ctx, key, txs)
	return txs, nil
}

func (s *TransactionQueryService) FindActive(ctx context.Context, opts domain.ListOptions) ([]domain.Transaction, error) {
	opts.Normalize()
	key := cache.FindActiveKey(cache.KindTransaction, opts.Page, opts.PageSize, opts.Search)
	var cached []domain.Transaction
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}
	txs, err := s.transactions.FindActive(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("find active transactions: %w", err)
	}
	s.cache.Set(ctx, key, txs)
	return txs, nil
}

func (s *TransactionQueryService) FindTrashed(ctx context.Context, opts domain.ListOptions) ([]domain.Transaction, error) {
	opts.Normalize()
	key := cache.FindTrashedKey(cache.KindTransaction, opts.Page, opts.PageSize, opts.Search)
	var cached []domain.Transaction
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}
	txs, err := s.transactions.FindTrashed(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("find trashed transactions: %w", err)
	}
	s.cache.Set(ctx, key, txs)
	return txs, nil
}

// TransferQueryService serves cached transfer reads.
type TransferQueryService struct {
	transfers store.TransferStore
	cache     cache.Store
}

func NewTransferQueryService(transfers store.TransferStore, cacheStore cache.Store) *TransferQueryService {
	return &TransferQueryService{transfers: transfers, cache: cacheStore}
}

func (s *TransferQueryService) FindByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	key := cache.FindByIDKey(cache.KindTransfer, id)
	var cached domain.Transfer
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}
	transfer, err := s.transfers.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find transfer %s: %w", id, err)
	}
	s.cache.Set(ctx, key, transfer)
	return transfer, nil
}

func (s *TransferQueryService) FindByCard(ctx context.Context, cardNumber string) ([]domain.Transfer, error) {
	key := cache.FindByCardKey(cache.KindTransfer, cardNumber)
	var cached []domain.Transfer
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}
	transfers, err := s.transfers.FindByCard(ctx, cardNumber)
	if err != nil {
		return nil, fmt.Errorf("find transfers by card %s: %w", cardNumber, err)
	}
	s.cache.Set(ctx, key, transfers)
	return transfers, nil
}

func (s *TransferQueryService) FindAll(ctx context.Context, opts domain.ListOptions) ([]domain.Transfer, error) {
	opts.Normalize()
	key := cache.FindAllKey(cache.KindTransfer, opts.Page, opts.PageSize, opts.Search)
	var cached []domain.Transfer
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}
	transfers, err := s.transfers.FindAll(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("find all transfers: %w", err)
	}
	s.cache.Set(ctx, key, transfers)
	return transfers, nil
}

func (s *TransferQueryService) FindActive(ctx context.Context, opts domain.ListOptions) ([]domain.Transfer, error) {
	opts.Normalize()
	key := cache.FindActiveKey(cache.KindTransfer, opts.Page, opts.PageSize, opts.Search)
	var cached []domain.Transfer
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}
	transfers, err := s.transfers.FindActive(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("find active transfers: %w", err)
	}
	s.cache.Set(ctx, key, transfers)
	return transfers, nil
}

func (s *TransferQueryService) FindTrashed(ctx context.Context, opts domain.ListOptions) ([]domain.Transfer, error) {
	opts.Normalize()
	key := cache.FindTrashedKey(cache.KindTransfer, opts.Page, opts.PageSize, opts.Search)
	var cached []domain.Transfer
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}
	transfers, err := s.transfers.FindTrashed(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("find trashed transfers: %w", err)
	}
	s.cache.Set(ctx, key, transfers)
	return transfers, nil
}
