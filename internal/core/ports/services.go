package ports

import (
	"context"
	"time"

	"gamecafe-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletService is the single entry point for money movement. Callers
// (session billing, refunds, loyalty redemption, manual top-ups) never touch
// the balance directly.
type WalletService interface {
	// ApplyDelta applies one signed balance change and records exactly one
	// ledger entry, both inside one database transaction.
	ApplyDelta(ctx context.Context, caller domain.CallerContext, req ApplyDeltaRequest) (*ApplyDeltaResult, error)
	// Transfer moves funds between two users' wallets: one debit and one
	// credit leg that commit together or not at all.
	Transfer(ctx context.Context, caller domain.CallerContext, req TransferRequest) (*TransferResult, error)
	// GetWallet resolves (lazily creating) the wallet for a user.
	GetWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	// SetActive flips the wallet's active flag through the version-checked
	// update path.
	SetActive(ctx context.Context, caller domain.CallerContext, walletID uuid.UUID, active bool) (*domain.Wallet, error)
}

// ApplyDeltaRequest holds validated input for one balance change.
// Amount sign convention: positive credits, negative debits.
type ApplyDeltaRequest struct {
	UserID         uuid.UUID
	WalletID       *uuid.UUID // optional direct address; UserID ignored when set
	Amount         decimal.Decimal
	Type           domain.TransactionType
	Description    string
	IdempotencyKey *string
	RelatedUserID  *uuid.UUID
}

// ApplyDeltaResult is the outcome of a successful (or replayed) ApplyDelta.
type ApplyDeltaResult struct {
	Transaction *domain.WalletTransaction
	NewBalance  decimal.Decimal
	Replayed    bool // true when served from the idempotency record
}

// TransferRequest holds validated input for a wallet-to-wallet transfer.
// Amount is the positive magnitude moved from source to destination.
type TransferRequest struct {
	FromUserID     uuid.UUID
	ToUserID       uuid.UUID
	Amount         decimal.Decimal
	Description    string
	IdempotencyKey *string
}

// TransferResult carries both ledger legs of a committed transfer.
type TransferResult struct {
	Debit    *domain.WalletTransaction
	Credit   *domain.WalletTransaction
	Replayed bool
}

// AuditRecorder is the cross-cutting hook that explains every persisted
// change. Recording is strictly best-effort: implementations must never
// return an error to the business operation.
type AuditRecorder interface {
	Record(ctx context.Context, caller domain.CallerContext, action domain.AuditAction, entityType string, entityID string, before, after map[string]any)
	List(ctx context.Context, params AuditListParams) ([]domain.AuditLog, int64, error)
}

// ReportingService is the ledger query surface consumed by the admin UI.
type ReportingService interface {
	ListTransactions(ctx context.Context, params TransactionListParams) ([]domain.WalletTransaction, int64, error)
	GetWalletBalance(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	TotalActiveBalance(ctx context.Context) (decimal.Decimal, error)
}

// IdempotencyCache is the fast-path lookup for retried wallet operations.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // nil, nil on miss
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
