package models

import "time"

// Wallet holds a user's balance in minor units (cents). The balance can
// never go negative; the database enforces it with a CHECK constraint and
// the ledger enforces it with guarded updates.
type Wallet struct {
	ID        int       `json:"id" db:"id"`
	UserID    int       `json:"user_id" db:"user_id"`
	Balance   int64     `json:"balance" db:"balance"`
	Currency  string    `json:"currency" db:"currency"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type TransactionType string

const (
	TransactionTypeDeposit     TransactionType = "deposit"
	TransactionTypeWithdrawal  TransactionType = "withdrawal"
	TransactionTypeEntryFee    TransactionType = "entry_fee"
	TransactionTypeRefund      TransactionType = "refund"
	TransactionTypePrizePayout TransactionType = "prize_payout"
)

// IsDebit reports whether the type decreases the wallet balance.
func (t TransactionType) IsDebit() bool {
	return t == TransactionTypeWithdrawal || t == TransactionTypeEntryFee
}

type TransactionStatus string

const (
	TransactionStatusPending          TransactionStatus = "pending"
	TransactionStatusCompleted        TransactionStatus = "completed"
	TransactionStatusFailed           TransactionStatus = "failed"
	TransactionStatusRequiresApproval TransactionStatus = "requires_approval"
)

// Transaction is an append-mostly ledger row. After creation only the
// status may change (pending -> completed/failed). A completed row with an
// idempotency key pins the outcome of that key forever.
type Transaction struct {
	ID              int               `json:"id" db:"id"`
	WalletID        int               `json:"wallet_id" db:"wallet_id"`
	Type            TransactionType   `json:"type" db:"type"`
	Amount          int64             `json:"amount" db:"amount"`
	Status          TransactionStatus `json:"status" db:"status"`
	IdempotencyKey  *string           `json:"idempotency_key,omitempty" db:"idempotency_key"`
	ReferenceTxnID  *int              `json:"reference_transaction_id,omitempty" db:"reference_transaction_id"`
	Memo            *string           `json:"memo,omitempty" db:"memo"`
	TransactionDate time.Time         `json:"transaction_date" db:"transaction_date"`
}
