package ports

import (
	"context"
	"errors"
	"time"

	"gamecafe-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Sentinel errors returned by the storage layer. Services translate these
// into user-facing error codes; repositories wrap them with context.
var (
	// ErrNotFound means the addressed row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientFunds means a debit was rejected because it would
	// drive the balance below zero. The rejection is decided by the same
	// statement that performs the update, so there is no stale-read race.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrConflict means an optimistic update lost against a concurrent
	// writer. The caller owns the retry decision.
	ErrConflict = errors.New("concurrency conflict")
	// ErrDuplicate means a unique constraint (e.g. idempotency key) was hit.
	ErrDuplicate = errors.New("duplicate entry")
)

// BalanceChange is the result of one successful atomic balance update.
type BalanceChange struct {
	WalletID      uuid.UUID
	Amount        decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
}

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx run inside the caller's transaction so the balance
// update and its ledger row commit or roll back together.
type WalletRepository interface {
	Create(ctx context.Context, wallet *domain.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	// GetOrCreateByUserID lazily creates a wallet on first access for a user.
	GetOrCreateByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	// ApplyDelta changes the balance by a signed delta in one conditional
	// statement. Debits fail with ErrInsufficientFunds when they would
	// overdraw; a missing wallet fails with ErrNotFound. Exactly one row is
	// changed on success, none on failure.
	ApplyDelta(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, delta decimal.Decimal) (*BalanceChange, error)
	// UpdateDetails saves non-balance fields with an optimistic version
	// check; a lost race fails with ErrConflict.
	UpdateDetails(ctx context.Context, wallet *domain.Wallet) error
	// SumActiveBalances totals the balances of all active wallets.
	SumActiveBalances(ctx context.Context) (decimal.Decimal, error)
}

// TransactionRepository defines persistence for the append-only ledger.
// Entries are never updated or deleted.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, entry *domain.WalletTransaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WalletTransaction, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.WalletTransaction, error)
	List(ctx context.Context, params TransactionListParams) ([]domain.WalletTransaction, int64, error)
}

// TransactionListParams holds filter + pagination for listing ledger entries.
type TransactionListParams struct {
	WalletID uuid.UUID
	Type     *domain.TransactionType
	From     *time.Time
	To       *time.Time
	Search   string // free-text match against description
	Page     int
	PageSize int
}

// AuditRepository defines persistence for audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
	List(ctx context.Context, params AuditListParams) ([]domain.AuditLog, int64, error)
}

// AuditListParams holds filter + pagination for the audit query surface.
type AuditListParams struct {
	EntityType string
	EntityID   *string
	ActorID    *uuid.UUID
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
