package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bracketworks/arena/models"
	"github.com/bracketworks/arena/repositories"
	"github.com/google/uuid"
)

const defaultCurrency = "USD"

// WalletService owns every balance mutation. All movements go through
// applyKeyed, so each one leaves exactly one ledger row and a retried
// operation with the same idempotency key is a no-op that returns the
// original row.
type WalletService struct {
	wallets      repositories.WalletRepository
	transactions repositories.TransactionRepository
	txManager    repositories.TxManager
	logger       *slog.Logger
}

func NewWalletService(
	wallets repositories.WalletRepository,
	transactions repositories.TransactionRepository,
	txManager repositories.TxManager,
	logger *slog.Logger,
) *WalletService {
	return &WalletService{
		wallets:      wallets,
		transactions: transactions,
		txManager:    txManager,
		logger:       logger,
	}
}

// EnsureWallet creates the user's wallet if it does not exist yet. Called
// inside the signup transaction.
func (s *WalletService) EnsureWallet(ctx context.Context, exec repositories.SQLExecutor, userID int) (*models.Wallet, error) {
	w := &models.Wallet{UserID: userID, Balance: 0, Currency: defaultCurrency}
	err := s.wallets.Create(ctx, exec, w)
	if err == nil {
		return w, nil
	}
	if errors.Is(err, repositories.ErrWalletAlreadyExists) {
		return s.wallets.GetByUserID(ctx, userID)
	}
	return nil, err
}

func (s *WalletService) GetByUserID(ctx context.Context, userID int) (*models.Wallet, error) {
	return s.wallets.GetByUserID(ctx, userID)
}

func (s *WalletService) ListTransactions(ctx context.Context, userID int, limit, offset int) ([]*models.Transaction, error) {
	w, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.transactions.ListByWallet(ctx, w.ID, limit, offset)
}

// Deposit credits external funds onto the user's wallet. The idempotency
// key is client-supplied so a retried request cannot double-credit; when
// absent a fresh key is generated and the call is not replay-safe.
func (s *WalletService) Deposit(ctx context.Context, userID int, amount int64, idempotencyKey *string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	key := orGeneratedKey(idempotencyKey)

	var txn *models.Transaction
	err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		w, err := s.wallets.GetByUserIDForUpdate(ctx, exec, userID)
		if err != nil {
			return err
		}
		txn, _, err = s.applyKeyed(ctx, exec, w.ID, models.TransactionTypeDeposit, amount, key, nil, nil)
		return err
	})
	return txn, err
}

// Withdraw debits funds off the wallet. Fails with ErrInsufficientFunds
// when the balance cannot cover the amount.
func (s *WalletService) Withdraw(ctx context.Context, userID int, amount int64, idempotencyKey *string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	key := orGeneratedKey(idempotencyKey)

	var txn *models.Transaction
	err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		w, err := s.wallets.GetByUserIDForUpdate(ctx, exec, userID)
		if err != nil {
			return err
		}
		txn, _, err = s.applyKeyed(ctx, exec, w.ID, models.TransactionTypeWithdrawal, amount, key, nil, nil)
		return err
	})
	return txn, err
}

// Debit removes amount from the wallet inside the caller's transaction.
// The bool return reports whether the key had already been applied, in
// which case the prior ledger row is returned and the balance is untouched.
func (s *WalletService) Debit(ctx context.Context, exec repositories.SQLExecutor, walletID int, txnType models.TransactionType, amount int64, key string, refTxnID *int, memo *string) (*models.Transaction, bool, error) {
	if amount <= 0 {
		return nil, false, ErrInvalidAmount
	}
	if !txnType.IsDebit() {
		return nil, false, fmt.Errorf("transaction type %q is not a debit", txnType)
	}
	return s.applyKeyed(ctx, exec, walletID, txnType, amount, key, refTxnID, memo)
}

// Credit adds amount to the wallet inside the caller's transaction. Same
// idempotency contract as Debit.
func (s *WalletService) Credit(ctx context.Context, exec repositories.SQLExecutor, walletID int, txnType models.TransactionType, amount int64, key string, refTxnID *int, memo *string) (*models.Transaction, bool, error) {
	if amount <= 0 {
		return nil, false, ErrInvalidAmount
	}
	if txnType.IsDebit() {
		return nil, false, fmt.Errorf("transaction type %q is not a credit", txnType)
	}
	return s.applyKeyed(ctx, exec, walletID, txnType, amount, key, refTxnID, memo)
}

// Refund reverses a completed debit inside the caller's transaction. The
// refund credits the original amount back onto the same wallet and
// references the original row; a debit that was already refunded is not
// refundable again.
func (s *WalletService) Refund(ctx context.Context, exec repositories.SQLExecutor, originalTxnID int, key string, memo *string) (*models.Transaction, bool, error) {
	original, err := s.transactions.GetByID(ctx, exec, originalTxnID)
	if err != nil {
		return nil, false, err
	}
	if !original.Type.IsDebit() || original.Status != models.TransactionStatusCompleted {
		return nil, false, ErrNotRefundable
	}

	prior, err := s.transactions.FindRefundOf(ctx, exec, originalTxnID)
	if err == nil {
		if prior.IdempotencyKey != nil && *prior.IdempotencyKey == key {
			return prior, true, nil
		}
		return nil, false, ErrNotRefundable
	}
	if !errors.Is(err, repositories.ErrTransactionNotFound) {
		return nil, false, err
	}

	return s.applyKeyed(ctx, exec, original.WalletID, models.TransactionTypeRefund,
		original.Amount, key, &original.ID, memo)
}

// applyKeyed moves money and writes the ledger row in one step. The
// idempotency key is checked twice: a fast-path lookup before touching the
// balance, and the unique constraint on insert that catches races the
// lookup missed.
func (s *WalletService) applyKeyed(ctx context.Context, exec repositories.SQLExecutor, walletID int, txnType models.TransactionType, amount int64, key string, refTxnID *int, memo *string) (*models.Transaction, bool, error) {
	existing, err := s.transactions.FindByIdempotencyKey(ctx, exec, key)
	if err == nil {
		if matchErr := matchesPrior(existing, walletID, txnType, amount); matchErr != nil {
			return nil, false, matchErr
		}
		return existing, true, nil
	}
	if !errors.Is(err, repositories.ErrTransactionNotFound) {
		return nil, false, err
	}

	delta := amount
	if txnType.IsDebit() {
		delta = -amount
	}
	if err := s.wallets.ApplyDelta(ctx, exec, walletID, delta); err != nil {
		if errors.Is(err, repositories.ErrWalletOverdraft) {
			return nil, false, ErrInsufficientFunds
		}
		return nil, false, err
	}

	txn := &models.Transaction{
		WalletID:       walletID,
		Type:           txnType,
		Amount:         amount,
		Status:         models.TransactionStatusCompleted,
		IdempotencyKey: &key,
		ReferenceTxnID: refTxnID,
		Memo:           memo,
	}
	if err := s.transactions.Create(ctx, exec, txn); err != nil {
		if errors.Is(err, repositories.ErrTransactionDuplicate) {
			// Lost a race on the same key. The surrounding transaction must
			// roll back so the ApplyDelta above is undone; the caller retries
			// and hits the fast path.
			return nil, false, ErrIdempotencyConflict
		}
		return nil, false, err
	}

	s.logger.Info("wallet movement applied",
		"wallet_id", walletID,
		"type", txnType,
		"amount", amount,
		"transaction_id", txn.ID,
	)
	return txn, false, nil
}

// matchesPrior guards key reuse: replaying a key with the same parameters
// is idempotent, replaying it with different ones is a client bug.
func matchesPrior(prior *models.Transaction, walletID int, txnType models.TransactionType, amount int64) error {
	if prior.WalletID != walletID || prior.Type != txnType || prior.Amount != amount {
		return ErrIdempotencyConflict
	}
	return nil
}

func orGeneratedKey(key *string) string {
	if key != nil && *key != "" {
		return *key
	}
	return uuid.NewString()
}
