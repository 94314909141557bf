package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paygate/movement-service/internal/domain"
	"github.com/paygate/movement-service/internal/store"
)

// fakeSaldos is an in-memory SaldoStore with the same guard semantics as the
// Postgres implementation: Debit refuses to go below zero, Credit requires
// the row to exist. Per-card error hooks let tests inject failures at exact
// saga steps.
type fakeSaldos struct {
	mu         sync.Mutex
	balances   map[string]int64
	failDebit  map[string]error
	failCredit map[string]error
	ops        []string
}

func newFakeSaldos(balances map[string]int64) *fakeSaldos {
	return &fakeSaldos{
		balances:   balances,
		failDebit:  make(map[string]error),
		failCredit: make(map[string]error),
	}
}

func (f *fakeSaldos) FindByCard(ctx context.Context, cardNumber string) (*domain.Saldo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bal, ok := f.balances[cardNumber]
	if !ok {
		return nil, store.ErrSaldoNotFound
	}
	return &domain.Saldo{ID: uuid.New(), CardNumber: cardNumber, TotalBalance: bal}, nil
}

func (f *fakeSaldos) Debit(ctx context.Context, cardNumber string, amount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failDebit[cardNumber]; err != nil {
		return err
	}
	bal, ok := f.balances[cardNumber]
	if !ok {
		return store.ErrSaldoNotFound
	}
	if bal < amount {
		return store.ErrInsufficientBalance
	}
	f.balances[cardNumber] = bal - amount
	f.ops = append(f.ops, fmt.Sprintf("debit:%s:%d", cardNumber, amount))
	return nil
}

func (f *fakeSaldos) Credit(ctx context.Context, cardNumber string, amount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failCredit[cardNumber]; err != nil {
		return err
	}
	if _, ok := f.balances[cardNumber]; !ok {
		return store.ErrSaldoNotFound
	}
	f.balances[cardNumber] += amount
	f.ops = append(f.ops, fmt.Sprintf("credit:%s:%d", cardNumber, amount))
	return nil
}

func (f *fakeSaldos) balance(cardNumber string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[cardNumber]
}

func (f *fakeSaldos) total() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum int64
	for _, bal := range f.balances {
		sum += bal
	}
	return sum
}

type fakeCards struct {
	byCard map[string]*domain.Card
	byUser map[uuid.UUID]*domain.Card
}

func newFakeCards(cards ...*domain.Card) *fakeCards {
	f := &fakeCards{byCard: make(map[string]*domain.Card), byUser: make(map[uuid.UUID]*domain.Card)}
	for _, c := range cards {
		f.byCard[c.CardNumber] = c
		f.byUser[c.UserID] = c
	}
	return f
}

func (f *fakeCards) FindByCard(ctx context.Context, cardNumber string) (*domain.Card, error) {
	c, ok := f.byCard[cardNumber]
	if !ok {
		return nil, store.ErrCardNotFound
	}
	return c, nil
}

func (f *fakeCards) FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.Card, error) {
	c, ok := f.byUser[userID]
	if !ok {
		return nil, store.ErrCardNotFound
	}
	return c, nil
}

type fakeMerchants struct {
	byAPIKey map[string]*domain.Merchant
}

func (f *fakeMerchants) FindByAPIKey(ctx context.Context, apiKey string) (*domain.Merchant, error) {
	m, ok := f.byAPIKey[apiKey]
	if !ok {
		return nil, store.ErrMerchantNotFound
	}
	return m, nil
}

// fakeTransactions stubs the TransactionStore methods the sagas exercise.
// Unstubbed methods panic through the embedded nil interface, which is the
// point: a test touching them is using a path it did not mean to.
type fakeTransactions struct {
	store.TransactionStore
	mu             sync.Mutex
	records        map[uuid.UUID]*domain.Transaction
	createErr      error
	updateErr      error
	statusFailures int
	statusCalls    int
}

func newFakeTransactions() *fakeTransactions {
	return &fakeTransactions{records: make(map[uuid.UUID]*domain.Transaction)}
}

func (f *fakeTransactions) Create(ctx context.Context, req *domain.CreateTransactionRequest, merchantID uuid.UUID) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	tx := &domain.Transaction{
		ID:              uuid.New(),
		CardNumber:      req.CardNumber,
		Amount:          req.Amount,
		PaymentMethod:   req.PaymentMethod,
		MerchantID:      merchantID,
		TransactionTime: req.TransactionTime,
		Status:          domain.StatusPending,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	f.records[tx.ID] = tx
	return copyTransaction(tx), nil
}

func (f *fakeTransactions) Update(ctx context.Context, req *domain.UpdateTransactionRequest) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	tx, ok := f.records[req.TransactionID]
	if !ok {
		return nil, store.ErrTransactionNotFound
	}
	tx.CardNumber = req.CardNumber
	tx.Amount = req.Amount
	tx.PaymentMethod = req.PaymentMethod
	tx.TransactionTime = req.TransactionTime
	tx.UpdatedAt = time.Now()
	return copyTransaction(tx), nil
}

func (f *fakeTransactions) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.statusCalls <= f.statusFailures {
		return fmt.Errorf("status write %d failed", f.statusCalls)
	}
	tx, ok := f.records[id]
	if !ok {
		return store.ErrTransactionNotFound
	}
	tx.Status = status
	return nil
}

func (f *fakeTransactions) FindByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.records[id]
	if !ok {
		return nil, store.ErrTransactionNotFound
	}
	return copyTransaction(tx), nil
}

func (f *fakeTransactions) status(id uuid.UUID) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tx, ok := f.records[id]; ok {
		return tx.Status
	}
	return ""
}

func (f *fakeTransactions) only() *domain.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.records {
		return copyTransaction(tx)
	}
	return nil
}

func (f *fakeTransactions) FindStuckPending(ctx context.Context, olderThan time.Time) ([]domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var stuck []domain.Transaction
	for _, tx := range f.records {
		if tx.Status == domain.StatusPending && tx.UpdatedAt.Before(olderThan) {
			stuck = append(stuck, *tx)
		}
	}
	return stuck, nil
}

func copyTransaction(tx *domain.Transaction) *domain.Transaction {
	cp := *tx
	return &cp
}

type fakeTransfers struct {
	store.TransferStore
	mu             sync.Mutex
	records        map[uuid.UUID]*domain.Transfer
	createErr      error
	updateErr      error
	statusFailures int
	statusCalls    int
}

func newFakeTransfers() *fakeTransfers {
	return &fakeTransfers{records: make(map[uuid.UUID]*domain.Transfer)}
}

func (f *fakeTransfers) seed(transfer *domain.Transfer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[transfer.ID] = transfer
}

func (f *fakeTransfers) Create(ctx context.Context, req *domain.CreateTransferRequest) (*domain.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	transfer := &domain.Transfer{
		ID:           uuid.New(),
		TransferFrom: req.TransferFrom,
		TransferTo:   req.TransferTo,
		Amount:       req.Amount,
		TransferTime: time.Now(),
		Status:       domain.StatusPending,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	f.records[transfer.ID] = transfer
	return copyTransfer(transfer), nil
}

func (f *fakeTransfers) Update(ctx context.Context, id uuid.UUID, amount int64) (*domain.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	transfer, ok := f.records[id]
	if !ok {
		return nil, store.ErrTransferNotFound
	}
	transfer.Amount = amount
	transfer.UpdatedAt = time.Now()
	return copyTransfer(transfer), nil
}

func (f *fakeTransfers) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.statusCalls <= f.statusFailures {
		return fmt.Errorf("status write %d failed", f.statusCalls)
	}
	transfer, ok := f.records[id]
	if !ok {
		return store.ErrTransferNotFound
	}
	transfer.Status = status
	return nil
}

func (f *fakeTransfers) FindByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	transfer, ok := f.records[id]
	if !ok {
		return nil, store.ErrTransferNotFound
	}
	return copyTransfer(transfer), nil
}

func (f *fakeTransfers) status(id uuid.UUID) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if transfer, ok := f.records[id]; ok {
		return transfer.Status
	}
	return ""
}

func (f *fakeTransfers) FindStuckPending(ctx context.Context, olderThan time.Time) ([]domain.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var stuck []domain.Transfer
	for _, transfer := range f.records {
		if transfer.Status == domain.StatusPending && transfer.UpdatedAt.Before(olderThan) {
			stuck = append(stuck, *transfer)
		}
	}
	return stuck, nil
}

func copyTransfer(transfer *domain.Transfer) *domain.Transfer {
	cp := *transfer
	return &cp
}

type fakeTopups struct {
	store.TopupStore
	mu        sync.Mutex
	records   map[uuid.UUID]*domain.Topup
	createErr error
	updateErr error
}

func newFakeTopups() *fakeTopups {
	return &fakeTopups{records: make(map[uuid.UUID]*domain.Topup)}
}

func (f *fakeTopups) Create(ctx context.Context, req *domain.CreateTopupRequest) (*domain.Topup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	topup := &domain.Topup{
		ID:          uuid.New(),
		CardNumber:  req.CardNumber,
		Amount:      req.Amount,
		TopupMethod: req.TopupMethod,
		TopupTime:   req.TopupTime,
		Status:      domain.StatusPending,
	}
	f.records[topup.ID] = topup
	return copyTopup(topup), nil
}

func (f *fakeTopups) Update(ctx context.Context, req *domain.UpdateTopupRequest) (*domain.Topup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	topup, ok := f.records[req.TopupID]
	if !ok {
		return nil, store.ErrTopupNotFound
	}
	topup.Amount = req.Amount
	return copyTopup(topup), nil
}

func (f *fakeTopups) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	topup, ok := f.records[id]
	if !ok {
		return store.ErrTopupNotFound
	}
	topup.Status = status
	return nil
}

func (f *fakeTopups) FindByID(ctx context.Context, id uuid.UUID) (*domain.Topup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	topup, ok := f.records[id]
	if !ok {
		return nil, store.ErrTopupNotFound
	}
	return copyTopup(topup), nil
}

func (f *fakeTopups) status(id uuid.UUID) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if topup, ok := f.records[id]; ok {
		return topup.Status
	}
	return ""
}

func copyTopup(topup *domain.Topup) *domain.Topup {
	cp := *topup
	return &cp
}

type fakeWithdraws struct {
	store.WithdrawStore
	mu        sync.Mutex
	records   map[uuid.UUID]*domain.Withdraw
	createErr error
}

func newFakeWithdraws() *fakeWithdraws {
	return &fakeWithdraws{records: make(map[uuid.UUID]*domain.Withdraw)}
}

func (f *fakeWithdraws) Create(ctx context.Context, req *domain.CreateWithdrawRequest) (*domain.Withdraw, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	withdraw := &domain.Withdraw{
		ID:           uuid.New(),
		CardNumber:   req.CardNumber,
		Amount:       req.Amount,
		WithdrawTime: req.WithdrawTime,
		Status:       domain.StatusPending,
	}
	f.records[withdraw.ID] = withdraw
	return copyWithdraw(withdraw), nil
}

func (f *fakeWithdraws) Update(ctx context.Context, req *domain.UpdateWithdrawRequest) (*domain.Withdraw, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	withdraw, ok := f.records[req.WithdrawID]
	if !ok {
		return nil, store.ErrWithdrawNotFound
	}
	withdraw.Amount = req.Amount
	return copyWithdraw(withdraw), nil
}

func (f *fakeWithdraws) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	withdraw, ok := f.records[id]
	if !ok {
		return store.ErrWithdrawNotFound
	}
	withdraw.Status = status
	return nil
}

func (f *fakeWithdraws) FindByID(ctx context.Context, id uuid.UUID) (*domain.Withdraw, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	withdraw, ok := f.records[id]
	if !ok {
		return nil, store.ErrWithdrawNotFound
	}
	return copyWithdraw(withdraw), nil
}

func copyWithdraw(withdraw *domain.Withdraw) *domain.Withdraw {
	cp := *withdraw
	return &cp
}

// fakeCache records evictions so tests can assert invalidation.
type fakeCache struct {
	mu       sync.Mutex
	evicted  []string
	patterns []string
}

func (f *fakeCache) Get(ctx context.Context, key string, dest any) bool { return false }
func (f *fakeCache) Set(ctx context.Context, key string, value any)    {}

func (f *fakeCache) Evict(ctx context.Context, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evicted = append(f.evicted, key)
}

func (f *fakeCache) EvictPattern(ctx context.Context, pattern string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patterns = append(f.patterns, pattern)
}

func (f *fakeCache) evictedKey(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range f.evicted {
		if k == key {
			return true
		}
	}
	return false
}

// fakePublisher records published events.
type fakePublisher struct {
	mu     sync.Mutex
	keys   []string
	bodies []any
}

func (f *fakePublisher) Publish(ctx context.Context, exchange, routingKey string, body any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, routingKey)
	f.bodies = append(f.bodies, body)
	return nil
}

func (f *fakePublisher) published(routingKey string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range f.keys {
		if k == routingKey {
			return true
		}
	}
	return false
}
