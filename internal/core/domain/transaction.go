package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the kind of balance change.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
	TransactionTypeTransfer   TransactionType = "TRANSFER"
	TransactionTypePurchase   TransactionType = "PURCHASE"
	TransactionTypeRefund     TransactionType = "REFUND"
	TransactionTypeAdjustment TransactionType = "ADJUSTMENT"
)

// TransactionStatus represents the lifecycle state of a ledger entry.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
	TransactionStatusCancelled TransactionStatus = "CANCELLED"
)

// WalletTransaction is an immutable ledger entry explaining exactly one
// balance change. Amount is signed: positive credits, negative debits.
// BalanceBefore/BalanceAfter are captured at commit time and never recomputed.
type WalletTransaction struct {
	ID             uuid.UUID         `json:"id"`
	WalletID       uuid.UUID         `json:"wallet_id"`
	Type           TransactionType   `json:"type"`
	Amount         decimal.Decimal   `json:"amount"`
	BalanceBefore  decimal.Decimal   `json:"balance_before"`
	BalanceAfter   decimal.Decimal   `json:"balance_after"`
	Description    string            `json:"description"`
	IdempotencyKey *string           `json:"idempotency_key,omitempty"`
	RelatedUserID  *uuid.UUID        `json:"related_user_id,omitempty"`
	ProcessedBy    *uuid.UUID        `json:"processed_by,omitempty"`
	Status         TransactionStatus `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
}

// IsDebit reports whether this entry removed funds from the wallet.
func (t *WalletTransaction) IsDebit() bool {
	return t.Amount.IsNegative()
}

// IsTerminal returns true if the entry is in a final state.
func (t *WalletTransaction) IsTerminal() bool {
	return t.Status == TransactionStatusCompleted ||
		t.Status == TransactionStatusFailed ||
		t.Status == TransactionStatusCancelled
}

// CreditIdempotencyKey derives the key stored on the credit leg of a transfer
// from the caller-supplied key, so both legs of one transfer are individually
// replay-safe.
func CreditIdempotencyKey(key string) string {
	return key + ":credit"
}
