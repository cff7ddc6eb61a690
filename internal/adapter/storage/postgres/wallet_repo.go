package postgres

import (
	"context"
	"errors"
	"fmt"

	"gamecafe-wallet/internal/core/domain"
	"gamecafe-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// applyDeltaSQL is the atomic balance updater: the non-negative check and the
// mutation happen in the same statement, so two concurrent debits can never
// both pass a stale balance check. Credits always pass the gate.
const applyDeltaSQL = `UPDATE wallets
	SET balance = balance + $2, updated_at = now()
	WHERE id = $1 AND ($2::numeric >= 0 OR balance + $2 >= 0)
	RETURNING balance`

// ApplyDelta changes a wallet's balance by a signed delta in one conditional
// statement. Returns ports.ErrInsufficientFunds when a debit would overdraw
// and ports.ErrNotFound when the wallet row does not exist. Exactly one row
// is changed on success, none on failure.
func (r *WalletRepo) ApplyDelta(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, delta decimal.Decimal) (*ports.BalanceChange, error) {
	var after decimal.Decimal
	err := tx.QueryRow(ctx, applyDeltaSQL, walletID, delta).Scan(&after)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish a missing wallet from a rejected debit.
			var exists bool
			if checkErr := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM wallets WHERE id = $1)`, walletID).Scan(&exists); checkErr != nil {
				return nil, fmt.Errorf("check wallet exists: %w", checkErr)
			}
			if !exists {
				return nil, fmt.Errorf("wallet %s: %w", walletID, ports.ErrNotFound)
			}
			return nil, fmt.Errorf("wallet %s debit %s: %w", walletID, delta, ports.ErrInsufficientFunds)
		}
		return nil, fmt.Errorf("apply balance delta: %w", translateConflict(err))
	}

	return &ports.BalanceChange{
		WalletID:      walletID,
		Amount:        delta,
		BalanceBefore: after.Sub(delta),
		BalanceAfter:  after,
	}, nil
}

// Create inserts a new wallet.
func (r *WalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	query := `INSERT INTO wallets (id, user_id, balance, is_active, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		w.ID, w.UserID, w.Balance, w.IsActive, w.Version, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", translateConflict(err))
	}
	return nil
}

// GetByID fetches a wallet by its UUID.
func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT id, user_id, balance, is_active, version, created_at, updated_at
		FROM wallets WHERE id = $1`

	return scanWallet(r.pool.QueryRow(ctx, query, id))
}

// GetByUserID fetches a wallet by its owning user.
func (r *WalletRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT id, user_id, balance, is_active, version, created_at, updated_at
		FROM wallets WHERE user_id = $1`

	return scanWallet(r.pool.QueryRow(ctx, query, userID))
}

// GetOrCreateByUserID returns the user's wallet, creating an empty one on
// first access. The insert is race-safe: concurrent first accesses for the
// same user all end up reading the single surviving row.
func (r *WalletRepo) GetOrCreateByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	w := domain.NewWallet(userID)
	query := `INSERT INTO wallets (id, user_id, balance, is_active, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO NOTHING`

	_, err := r.pool.Exec(ctx, query,
		w.ID, w.UserID, w.Balance, w.IsActive, w.Version, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert wallet: %w", err)
	}

	existing, err := r.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("wallet for user %s: %w", userID, ports.ErrNotFound)
	}
	return existing, nil
}

// UpdateDetails saves non-balance wallet fields with an optimistic version
// check. A zero-row update against an existing wallet means another writer
// won the race; the caller decides whether to retry with fresh data.
func (r *WalletRepo) UpdateDetails(ctx context.Context, w *domain.Wallet) error {
	query := `UPDATE wallets SET is_active = $2, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $3`

	tag, err := r.pool.Exec(ctx, query, w.ID, w.IsActive, w.Version)
	if err != nil {
		return fmt.Errorf("update wallet details: %w", translateConflict(err))
	}
	if tag.RowsAffected() == 0 {
		existing, getErr := r.GetByID(ctx, w.ID)
		if getErr != nil {
			return getErr
		}
		if existing == nil {
			return fmt.Errorf("wallet %s: %w", w.ID, ports.ErrNotFound)
		}
		return fmt.Errorf("wallet %s version %d: %w", w.ID, w.Version, ports.ErrConflict)
	}
	w.Version++
	return nil
}

// SumActiveBalances totals the balances of all active wallets.
func (r *WalletRepo) SumActiveBalances(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(balance), 0) FROM wallets WHERE is_active`).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum active balances: %w", err)
	}
	return total, nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(&w.ID, &w.UserID, &w.Balance, &w.IsActive, &w.Version, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan wallet: %w", err)
	}
	return w, nil
}
