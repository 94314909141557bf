/**
 * @description
 * This file provides the PostgreSQL implementation of the store interfaces.
 * It contains all the SQL needed by the movement orchestrators: guarded
 * balance mutations on `saldos`, identity lookups on `cards` and `merchants`,
 * and full lifecycle persistence (create, update, status, soft delete,
 * restore, permanent delete) for the movement record tables.
 *
 * @dependencies
 * - context, errors, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paygate/movement-service/internal/domain"
)

// PostgresRepository is a concrete implementation of every store interface
// backed by a single pgx connection pool.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Saldos returns the repository as a SaldoStore.
func (r *PostgresRepository) Saldos() SaldoStore { return saldoRepo{r} }

// Cards returns the repository as a CardStore.
func (r *PostgresRepository) Cards() CardStore { return cardRepo{r} }

// Merchants returns the repository as a MerchantStore.
func (r *PostgresRepository) Merchants() MerchantStore { return merchantRepo{r} }

// Transactions returns the repository as a TransactionStore.
func (r *PostgresRepository) Transactions() TransactionStore { return transactionRepo{r} }

// Transfers returns the repository as a TransferStore.
func (r *PostgresRepository) Transfers() TransferStore { return transferRepo{r} }

// Topups returns the repository as a TopupStore.
func (r *PostgresRepository) Topups() TopupStore { return topupRepo{r} }

// Withdraws returns the repository as a WithdrawStore.
func (r *PostgresRepository) Withdraws() WithdrawStore { return withdrawRepo{r} }

// --- saldos ---

type saldoRepo struct{ *PostgresRepository }

func (r saldoRepo) FindByCard(ctx context.Context, cardNumber string) (*domain.Saldo, error) {
	var s domain.Saldo
	query := `
		SELECT saldo_id, card_number, total_balance, created_at, updated_at, deleted_at
		FROM saldos
		WHERE card_number = $1 AND deleted_at IS NULL
	`
	err := r.db.QueryRow(ctx, query, cardNumber).Scan(
		&s.ID, &s.CardNumber, &s.TotalBalance, &s.CreatedAt, &s.UpdatedAt, &s.DeletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrSaldoNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Debit subtracts amount from the card's balance inside a row-locked
// transaction. The balance is never written below zero: a shortfall returns
// ErrInsufficientBalance with no write.
func (r saldoRepo) Debit(ctx context.Context, cardNumber string, amount int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var balance int64
	// FOR UPDATE locks the row so concurrent movements on the same card
	// cannot interleave between the check and the write.
	err = tx.QueryRow(ctx,
		"SELECT total_balance FROM saldos WHERE card_number = $1 AND deleted_at IS NULL FOR UPDATE",
		cardNumber,
	).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrSaldoNotFound
		}
		return err
	}

	if balance < amount {
		return ErrInsufficientBalance
	}

	_, err = tx.Exec(ctx,
		"UPDATE saldos SET total_balance = total_balance - $1, updated_at = NOW() WHERE card_number = $2",
		amount, cardNumber,
	)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Credit adds amount to the card's balance as a single atomic increment.
func (r saldoRepo) Credit(ctx context.Context, cardNumber string, amount int64) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE saldos SET total_balance = total_balance + $1, updated_at = NOW() WHERE card_number = $2 AND deleted_at IS NULL",
		amount, cardNumber,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSaldoNotFound
	}
	return nil
}

// --- cards ---

type cardRepo struct{ *PostgresRepository }

func (r cardRepo) FindByCard(ctx context.Context, cardNumber string) (*domain.Card, error) {
	var c domain.Card
	query := `SELECT card_id, user_id, card_number, card_type FROM cards WHERE card_number = $1 AND deleted_at IS NULL`
	err := r.db.QueryRow(ctx, query, cardNumber).Scan(&c.ID, &c.UserID, &c.CardNumber, &c.CardType)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r cardRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.Card, error) {
	var c domain.Card
	query := `SELECT card_id, user_id, card_number, card_type FROM cards WHERE user_id = $1 AND deleted_at IS NULL ORDER BY created_at LIMIT 1`
	err := r.db.QueryRow(ctx, query, userID).Scan(&c.ID, &c.UserID, &c.CardNumber, &c.CardType)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return &c, nil
}

// --- merchants ---

type merchantRepo struct{ *PostgresRepository }

func (r merchantRepo) FindByAPIKey(ctx context.Context, apiKey string) (*domain.Merchant, error) {
	var m domain.Merchant
	query := `SELECT merchant_id, user_id, name, api_key, status FROM merchants WHERE api_key = $1 AND deleted_at IS NULL`
	err := r.db.QueryRow(ctx, query, apiKey).Scan(&m.ID, &m.UserID, &m.Name, &m.APIKey, &m.Status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrMerchantNotFound
		}
		return nil, err
	}
	return &m, nil
}

// --- transactions ---

type transactionRepo struct{ *PostgresRepository }

const transactionColumns = `
	transaction_id, card_number, amount, payment_method, merchant_id,
	transaction_time, status, created_at, updated_at, deleted_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(
		&t.ID, &t.CardNumber, &t.Amount, &t.PaymentMethod, &t.MerchantID,
		&t.TransactionTime, &t.Status, &t.CreatedAt, &t.UpdatedAt, &t.DeletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r transactionRepo) Create(ctx context.Context, req *domain.CreateTransactionRequest, merchantID uuid.UUID) (*domain.Transaction, error) {
	query := `
		INSERT INTO transactions (transaction_id, card_number, amount, payment_method, merchant_id, transaction_time, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', NOW(), NOW())
		RETURNING ` + transactionColumns
	return scanTransaction(r.db.QueryRow(ctx, query,
		uuid.New(), req.CardNumber, req.Amount, req.PaymentMethod, merchantID, req.TransactionTime,
	))
}

func (r transactionRepo) Update(ctx context.Context, req *domain.UpdateTransactionRequest) (*domain.Transaction, error) {
	query := `
		UPDATE transactions
		SET card_number = $2, amount = $3, payment_method = $4, transaction_time = $5, updated_at = NOW()
		WHERE transaction_id = $1 AND deleted_at IS NULL
		RETURNING ` + transactionColumns
	return scanTransaction(r.db.QueryRow(ctx, query,
		req.TransactionID, req.CardNumber, req.Amount, req.PaymentMethod, req.TransactionTime,
	))
}

func (r transactionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE transactions SET status = $2, updated_at = NOW() WHERE transaction_id = $1 AND deleted_at IS NULL",
		id, status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r transactionRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := "SELECT " + transactionColumns + " FROM transactions WHERE transaction_id = $1 AND deleted_at IS NULL"
	return scanTransaction(r.db.QueryRow(ctx, query, id))
}

func (r transactionRepo) findPaged(ctx context.Context, where string, opts domain.ListOptions) ([]domain.Transaction, error) {
	opts.Normalize()
	query := fmt.Sprintf(`
		SELECT %s FROM transactions
		WHERE %s AND ($1 = '' OR card_number ILIKE '%%' || $1 || '%%' OR payment_method ILIKE '%%' || $1 || '%%')
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, transactionColumns, where)
	rows, err := r.db.Query(ctx, query, opts.Search, opts.PageSize, (opts.Page-1)*opts.PageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r transactionRepo) FindAll(ctx context.Context, opts domain.ListOptions) ([]domain.Transaction, error) {
	return r.findPaged(ctx, "TRUE", opts)
}

func (r transactionRepo) FindActive(ctx context.Context, opts domain.ListOptions) ([]domain.Transaction, error) {
	return r.findPaged(ctx, "deleted_at IS NULL", opts)
}

func (r transactionRepo) FindTrashed(ctx context.Context, opts domain.ListOptions) ([]domain.Transaction, error) {
	return r.findPaged(ctx, "deleted_at IS NOT NULL", opts)
}

func (r transactionRepo) FindByCard(ctx context.Context, cardNumber string) ([]domain.Transaction, error) {
	query := "SELECT " + transactionColumns + " FROM transactions WHERE card_number = $1 AND deleted_at IS NULL ORDER BY created_at DESC"
	rows, err := r.db.Query(ctx, query, cardNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r transactionRepo) Trash(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `
		UPDATE transactions SET deleted_at = NOW(), updated_at = NOW()
		WHERE transaction_id = $1 AND deleted_at IS NULL
		RETURNING ` + transactionColumns
	return scanTransaction(r.db.QueryRow(ctx, query, id))
}

func (r transactionRepo) Restore(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `
		UPDATE transactions SET deleted_at = NULL, updated_at = NOW()
		WHERE transaction_id = $1 AND deleted_at IS NOT NULL
		RETURNING ` + transactionColumns
	return scanTransaction(r.db.QueryRow(ctx, query, id))
}

func (r transactionRepo) DeletePermanent(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM transactions WHERE transaction_id = $1 AND deleted_at IS NOT NULL", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r transactionRepo) RestoreAll(ctx context.Context) error {
	_, err := r.db.Exec(ctx, "UPDATE transactions SET deleted_at = NULL, updated_at = NOW() WHERE deleted_at IS NOT NULL")
	return err
}

func (r transactionRepo) DeleteAllPermanent(ctx context.Context) error {
	_, err := r.db.Exec(ctx, "DELETE FROM transactions WHERE deleted_at IS NOT NULL")
	return err
}

func (r transactionRepo) FindStuckPending(ctx context.Context, olderThan time.Time) ([]domain.Transaction, error) {
	query := "SELECT " + transactionColumns + " FROM transactions WHERE status = 'pending' AND deleted_at IS NULL AND updated_at < $1"
	rows, err := r.db.Query(ctx, query, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// --- transfers ---

type transferRepo struct{ *PostgresRepository }

const transferColumns = `
	transfer_id, transfer_from, transfer_to, transfer_amount,
	transfer_time, status, created_at, updated_at, deleted_at`

func scanTransfer(row pgx.Row) (*domain.Transfer, error) {
	var t domain.Transfer
	err := row.Scan(
		&t.ID, &t.TransferFrom, &t.TransferTo, &t.Amount,
		&t.TransferTime, &t.Status, &t.CreatedAt, &t.UpdatedAt, &t.DeletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransferNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r transferRepo) Create(ctx context.Context, req *domain.CreateTransferRequest) (*domain.Transfer, error) {
	query := `
		INSERT INTO transfers (transfer_id, transfer_from, transfer_to, transfer_amount, transfer_time, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), 'pending', NOW(), NOW())
		RETURNING ` + transferColumns
	return scanTransfer(r.db.QueryRow(ctx, query, uuid.New(), req.TransferFrom, req.TransferTo, req.Amount))
}

func (r transferRepo) Update(ctx context.Context, id uuid.UUID, amount int64) (*domain.Transfer, error) {
	query := `
		UPDATE transfers
		SET transfer_amount = $2, transfer_time = NOW(), updated_at = NOW()
		WHERE transfer_id = $1 AND deleted_at IS NULL
		RETURNING ` + transferColumns
	return scanTransfer(r.db.QueryRow(ctx, query, id, amount))
}

func (r transferRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE transfers SET status = $2, updated_at = NOW() WHERE transfer_id = $1 AND deleted_at IS NULL",
		id, status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransferNotFound
	}
	return nil
}

func (r transferRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	query := "SELECT " + transferColumns + " FROM transfers WHERE transfer_id = $1 AND deleted_at IS NULL"
	return scanTransfer(r.db.QueryRow(ctx, query, id))
}

func (r transferRepo) findPaged(ctx context.Context, where string, opts domain.ListOptions) ([]domain.Transfer, error) {
	opts.Normalize()
	query := fmt.Sprintf(`
		SELECT %s FROM transfers
		WHERE %s AND ($1 = '' OR transfer_from ILIKE '%%' || $1 || '%%' OR transfer_to ILIKE '%%' || $1 || '%%')
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, transferColumns, where)
	rows, err := r.db.Query(ctx, query, opts.Search, opts.PageSize, (opts.Page-1)*opts.PageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r transferRepo) FindAll(ctx context.Context, opts domain.ListOptions) ([]domain.Transfer, error) {
	return r.findPaged(ctx, "TRUE", opts)
}

func (r transferRepo) FindActive(ctx context.Context, opts domain.ListOptions) ([]domain.Transfer, error) {
	return r.findPaged(ctx, "deleted_at IS NULL", opts)
}

func (r transferRepo) FindTrashed(ctx context.Context, opts domain.ListOptions) ([]domain.Transfer, error) {
	return r.findPaged(ctx, "deleted_at IS NOT NULL", opts)
}

func (r transferRepo) FindByCard(ctx context.Context, cardNumber string) ([]domain.Transfer, error) {
	query := "SELECT " + transferColumns + " FROM transfers WHERE (transfer_from = $1 OR transfer_to = $1) AND deleted_at IS NULL ORDER BY created_at DESC"
	rows, err := r.db.Query(ctx, query, cardNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r transferRepo) Trash(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	query := `
		UPDATE transfers SET deleted_at = NOW(), updated_at = NOW()
		WHERE transfer_id = $1 AND deleted_at IS NULL
		RETURNING ` + transferColumns
	return scanTransfer(r.db.QueryRow(ctx, query, id))
}

func (r transferRepo) Restore(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	query := `
		UPDATE transfers SET deleted_at = NULL, updated_at = NOW()
		WHERE transfer_id = $1 AND deleted_at IS NOT NULL
		RETURNING ` + transferColumns
	return scanTransfer(r.db.QueryRow(ctx, query, id))
}

func (r transferRepo) DeletePermanent(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM transfers WHERE transfer_id = $1 AND deleted_at IS NOT NULL", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransferNotFound
	}
	return nil
}

func (r transferRepo) RestoreAll(ctx context.Context) error {
	_, err := r.db.Exec(ctx, "UPDATE transfers SET deleted_at = NULL, updated_at = NOW() WHERE deleted_at IS NOT NULL")
	return err
}

func (r transferRepo) DeleteAllPermanent(ctx context.Context) error {
	_, err := r.db.Exec(ctx, "DELETE FROM transfers WHERE deleted_at IS NOT NULL")
	return err
}

func (r transferRepo) FindStuckPending(ctx context.Context, olderThan time.Time) ([]domain.Transfer, error) {
	query := "SELECT " + transferColumns + " FROM transfers WHERE status = 'pending' AND deleted_at IS NULL AND updated_at < $1"
	rows, err := r.db.Query(ctx, query, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// --- topups ---

type topupRepo struct{ *PostgresRepository }

const topupColumns = `
	topup_id, card_number, topup_amount, topup_method, topup_time,
	status, created_at, updated_at, deleted_at`

func scanTopup(row pgx.Row) (*domain.Topup, error) {
	var t domain.Topup
	err := row.Scan(
		&t.ID, &t.CardNumber, &t.Amount, &t.TopupMethod, &t.TopupTime,
		&t.Status, &t.CreatedAt, &t.UpdatedAt, &t.DeletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTopupNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r topupRepo) Create(ctx context.Context, req *domain.CreateTopupRequest) (*domain.Topup, error) {
	query := `
		INSERT INTO topups (topup_id, card_number, topup_amount, topup_method, topup_time, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', NOW(), NOW())
		RETURNING ` + topupColumns
	return scanTopup(r.db.QueryRow(ctx, query, uuid.New(), req.CardNumber, req.Amount, req.TopupMethod, req.TopupTime))
}

func (r topupRepo) Update(ctx context.Context, req *domain.UpdateTopupRequest) (*domain.Topup, error) {
	query := `
		UPDATE topups
		SET topup_amount = $2, updated_at = NOW()
		WHERE topup_id = $1 AND deleted_at IS NULL
		RETURNING ` + topupColumns
	return scanTopup(r.db.QueryRow(ctx, query, req.TopupID, req.Amount))
}

func (r topupRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE topups SET status = $2, updated_at = NOW() WHERE topup_id = $1 AND deleted_at IS NULL",
		id, status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTopupNotFound
	}
	return nil
}

func (r topupRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Topup, error) {
	query := "SELECT " + topupColumns + " FROM topups WHERE topup_id = $1 AND deleted_at IS NULL"
	return scanTopup(r.db.QueryRow(ctx, query, id))
}

// --- withdraws ---

type withdrawRepo struct{ *PostgresRepository }

const withdrawColumns = `
	withdraw_id, card_number, withdraw_amount, withdraw_time,
	status, created_at, updated_at, deleted_at`

func scanWithdraw(row pgx.Row) (*domain.Withdraw, error) {
	var w domain.Withdraw
	err := row.Scan(
		&w.ID, &w.CardNumber, &w.Amount, &w.WithdrawTime,
		&w.Status, &w.CreatedAt, &w.UpdatedAt, &w.DeletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrWithdrawNotFound
		}
		return nil, err
	}
	return &w, nil
}

func (r withdrawRepo) Create(ctx context.Context, req *domain.CreateWithdrawRequest) (*domain.Withdraw, error) {
	query := `
		INSERT INTO withdraws (withdraw_id, card_number, withdraw_amount, withdraw_time, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'pending', NOW(), NOW())
		RETURNING ` + withdrawColumns
	return scanWithdraw(r.db.QueryRow(ctx, query, uuid.New(), req.CardNumber, req.Amount, req.WithdrawTime))
}

func (r withdrawRepo) Update(ctx context.Context, req *domain.UpdateWithdrawRequest) (*domain.Withdraw, error) {
	query := `
		UPDATE withdraws
		SET withdraw_amount = $2, updated_at = NOW()
		WHERE withdraw_id = $1 AND deleted_at IS NULL
		RETURNING ` + withdrawColumns
	return scanWithdraw(r.db.QueryRow(ctx, query, req.WithdrawID, req.Amount))
}

func (r withdrawRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE withdraws SET status = $2, updated_at = NOW() WHERE withdraw_id = $1 AND deleted_at IS NULL",
		id, status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWithdrawNotFound
	}
	return nil
}

func (r withdrawRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Withdraw, error) {
	query := "SELECT " + withdrawColumns + " FROM withdraws WHERE withdraw_id = $1 AND deleted_at IS NULL"
	return scanWithdraw(r.db.QueryRow(ctx, query, id))
}
