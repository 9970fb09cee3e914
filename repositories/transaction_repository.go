package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bracketworks/arena/models"
	"github.com/lib/pq"
)

var (
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrTransactionDuplicate = errors.New("transaction with this idempotency key already exists")
)

type TransactionRepository interface {
	// Create inserts a ledger row. The unique constraint on idempotency_key
	// is the ultimate guard against double execution of a keyed operation;
	// the pre-insert lookup in the ledger is only a fast path.
	Create(ctx context.Context, exec SQLExecutor, t *models.Transaction) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Transaction, error)
	FindByIdempotencyKey(ctx context.Context, exec SQLExecutor, key string) (*models.Transaction, error)
	FindRefundOf(ctx context.Context, exec SQLExecutor, originalTxnID int) (*models.Transaction, error)
	ListByWallet(ctx context.Context, walletID int, limit, offset int) ([]*models.Transaction, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TransactionStatus) error
}

type postgresTransactionRepository struct {
	db *sql.DB
}

func NewPostgresTransactionRepository(db *sql.DB) TransactionRepository {
	return &postgresTransactionRepository{db: db}
}

func (r *postgresTransactionRepository) executor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const transactionColumns = `
	id, wallet_id, type, amount, status, idempotency_key,
	reference_transaction_id, memo, transaction_date`

func scanTransaction(row interface{ Scan(...interface{}) error }, t *models.Transaction) error {
	return row.Scan(
		&t.ID, &t.WalletID, &t.Type, &t.Amount, &t.Status, &t.IdempotencyKey,
		&t.ReferenceTxnID, &t.Memo, &t.TransactionDate,
	)
}

func (r *postgresTransactionRepository) Create(ctx context.Context, exec SQLExecutor, t *models.Transaction) error {
	query := `
		INSERT INTO transactions (
			wallet_id, type, amount, status, idempotency_key,
			reference_transaction_id, memo
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, transaction_date`

	err := r.executor(exec).QueryRowContext(ctx, query,
		t.WalletID, t.Type, t.Amount, t.Status, t.IdempotencyKey,
		t.ReferenceTxnID, t.Memo,
	).Scan(&t.ID, &t.TransactionDate)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			if pqErr.Constraint == "transactions_idempotency_key_key" {
				return ErrTransactionDuplicate
			}
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *postgresTransactionRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Transaction, error) {
	query := `SELECT` + transactionColumns + ` FROM transactions WHERE id = $1`

	t := &models.Transaction{}
	err := scanTransaction(r.executor(exec).QueryRowContext(ctx, query, id), t)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to scan transaction %d: %w", id, err)
	}
	return t, nil
}

func (r *postgresTransactionRepository) FindByIdempotencyKey(ctx context.Context, exec SQLExecutor, key string) (*models.Transaction, error) {
	query := `SELECT` + transactionColumns + ` FROM transactions WHERE idempotency_key = $1`

	t := &models.Transaction{}
	err := scanTransaction(r.executor(exec).QueryRowContext(ctx, query, key), t)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to find transaction by idempotency key: %w", err)
	}
	return t, nil
}

func (r *postgresTransactionRepository) FindRefundOf(ctx context.Context, exec SQLExecutor, originalTxnID int) (*models.Transaction, error) {
	query := `SELECT` + transactionColumns + `
		FROM transactions
		WHERE reference_transaction_id = $1 AND type = $2 AND status = $3`

	t := &models.Transaction{}
	err := scanTransaction(r.executor(exec).QueryRowContext(ctx, query, originalTxnID,
		models.TransactionTypeRefund, models.TransactionStatusCompleted), t)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to find refund of transaction %d: %w", originalTxnID, err)
	}
	return t, nil
}

func (r *postgresTransactionRepository) ListByWallet(ctx context.Context, walletID int, limit, offset int) ([]*models.Transaction, error) {
	query := `SELECT` + transactionColumns + `
		FROM transactions
		WHERE wallet_id = $1
		ORDER BY transaction_date DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, walletID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for wallet %d: %w", walletID, err)
	}
	defer rows.Close()

	transactions := make([]*models.Transaction, 0)
	for rows.Next() {
		var t models.Transaction
		if scanErr := scanTransaction(rows, &t); scanErr != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", scanErr)
		}
		transactions = append(transactions, &t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during transaction rows iteration: %w", err)
	}
	return transactions, nil
}

func (r *postgresTransactionRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TransactionStatus) error {
	query := `UPDATE transactions SET status = $1 WHERE id = $2`
	result, err := r.executor(exec).ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}
	return checkAffectedRows(result, ErrTransactionNotFound)
}
