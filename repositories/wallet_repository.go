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
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrWalletAlreadyExists = errors.New("wallet already exists for this user")
	ErrWalletOverdraft     = errors.New("wallet balance would go negative")
)

type WalletRepository interface {
	Create(ctx context.Context, exec SQLExecutor, w *models.Wallet) error
	GetByID(ctx context.Context, id int) (*models.Wallet, error)
	GetByUserID(ctx context.Context, userID int) (*models.Wallet, error)
	// GetByIDForUpdate locks the wallet row. The wallet is the last lock
	// point in the Tournament -> Participant -> Wallet order.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Wallet, error)
	GetByUserIDForUpdate(ctx context.Context, exec SQLExecutor, userID int) (*models.Wallet, error)
	// ApplyDelta adjusts the balance by delta (negative for debits). The
	// update is guarded so the balance never drops below zero: a debit that
	// would overdraw affects zero rows and returns ErrWalletOverdraft.
	ApplyDelta(ctx context.Context, exec SQLExecutor, walletID int, delta int64) error
}

type postgresWalletRepository struct {
	db *sql.DB
}

func NewPostgresWalletRepository(db *sql.DB) WalletRepository {
	return &postgresWalletRepository{db: db}
}

func (r *postgresWalletRepository) executor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresWalletRepository) Create(ctx context.Context, exec SQLExecutor, w *models.Wallet) error {
	query := `
		INSERT INTO wallets (user_id, balance, currency)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`

	err := r.executor(exec).QueryRowContext(ctx, query, w.UserID, w.Balance, w.Currency).
		Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrWalletAlreadyExists
		}
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

func (r *postgresWalletRepository) scanOne(row *sql.Row) (*models.Wallet, error) {
	w := &models.Wallet{}
	err := row.Scan(&w.ID, &w.UserID, &w.Balance, &w.Currency, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to scan wallet: %w", err)
	}
	return w, nil
}

const walletColumns = `id, user_id, balance, currency, created_at, updated_at`

func (r *postgresWalletRepository) GetByID(ctx context.Context, id int) (*models.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresWalletRepository) GetByUserID(ctx context.Context, userID int) (*models.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, userID))
}

func (r *postgresWalletRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1 FOR UPDATE`
	return r.scanOne(r.executor(exec).QueryRowContext(ctx, query, id))
}

func (r *postgresWalletRepository) GetByUserIDForUpdate(ctx context.Context, exec SQLExecutor, userID int) (*models.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 FOR UPDATE`
	return r.scanOne(r.executor(exec).QueryRowContext(ctx, query, userID))
}

func (r *postgresWalletRepository) ApplyDelta(ctx context.Context, exec SQLExecutor, walletID int, delta int64) error {
	query := `
		UPDATE wallets
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2 AND balance + $1 >= 0`

	result, err := r.executor(exec).ExecContext(ctx, query, delta, walletID)
	if err != nil {
		return fmt.Errorf("failed to apply balance delta to wallet %d: %w", walletID, err)
	}
	return checkAffectedRows(result, ErrWalletOverdraft)
}
