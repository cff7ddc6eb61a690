package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gamecafe-wallet/internal/core/domain"
	"gamecafe-wallet/internal/core/ports"
	"gamecafe-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// WalletServiceImpl implements ports.WalletService. Every balance change goes
// through the atomic conditional update and writes exactly one ledger entry
// in the same database transaction.
type WalletServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	idempCache ports.IdempotencyCache
	transactor ports.DBTransactor
	audit      ports.AuditRecorder
	idempTTL   time.Duration
	log        zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	idempCache ports.IdempotencyCache,
	transactor ports.DBTransactor,
	audit ports.AuditRecorder,
	idempTTL time.Duration,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		idempCache: idempCache,
		transactor: transactor,
		audit:      audit,
		idempTTL:   idempTTL,
		log:        log,
	}
}

// ApplyDelta applies one signed balance change with a reason. The atomic
// update and the ledger row commit together or not at all.
func (s *WalletServiceImpl) ApplyDelta(ctx context.Context, caller domain.CallerContext, req ports.ApplyDeltaRequest) (*ports.ApplyDeltaResult, error) {
	if req.Amount.IsZero() {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.Type == "" {
		return nil, apperror.Validation("transaction type is required")
	}

	// Replay a retried call before touching the balance.
	if req.IdempotencyKey != nil {
		if replayed, err := s.findReplay(ctx, *req.IdempotencyKey); err != nil {
			return nil, err
		} else if replayed != nil {
			return replayed, nil
		}
	}

	wallet, err := s.resolveWallet(ctx, req.WalletID, req.UserID)
	if err != nil {
		return nil, err
	}
	if !wallet.IsActive {
		return nil, apperror.ErrWalletInactive()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	change, err := s.walletRepo.ApplyDelta(ctx, dbTx, wallet.ID, req.Amount)
	if err != nil {
		return nil, translateWalletErr(err)
	}

	entry := s.buildEntry(caller, wallet.ID, req, change)
	if err := s.txRepo.Create(ctx, dbTx, entry); err != nil {
		if errors.Is(err, ports.ErrDuplicate) && req.IdempotencyKey != nil {
			// A concurrent retry won the insert race. Roll back our
			// balance change and serve its committed result.
			_ = dbTx.Rollback(ctx)
			return s.replayFromLedger(ctx, *req.IdempotencyKey)
		}
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create ledger entry: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("commit tx: %w", err))
	}

	s.audit.Record(ctx, caller, domain.AuditActionCreate, "wallet_transaction", entry.ID.String(),
		nil, map[string]any{
			"wallet_id":     entry.WalletID.String(),
			"type":          string(entry.Type),
			"amount":        entry.Amount.String(),
			"balance_after": entry.BalanceAfter.String(),
		})

	s.cacheEntry(ctx, req.IdempotencyKey, entry)

	s.log.Info().
		Str("tx_id", entry.ID.String()).
		Str("wallet_id", wallet.ID.String()).
		Str("amount", req.Amount.String()).
		Str("type", string(req.Type)).
		Msg("balance change applied")

	return &ports.ApplyDeltaResult{
		Transaction: entry,
		NewBalance:  change.BalanceAfter,
	}, nil
}

// Transfer moves funds between two users' wallets. Both legs run in one
// database transaction; if the credit leg fails the debit is rolled back.
func (s *WalletServiceImpl) Transfer(ctx context.Context, caller domain.CallerContext, req ports.TransferRequest) (*ports.TransferResult, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.FromUserID == req.ToUserID {
		return nil, apperror.ErrSelfTransfer()
	}

	if req.IdempotencyKey != nil {
		if replayed, err := s.findTransferReplay(ctx, *req.IdempotencyKey); err != nil {
			return nil, err
		} else if replayed != nil {
			return replayed, nil
		}
	}

	from, err := s.walletRepo.GetOrCreateByUserID(ctx, req.FromUserID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("resolve source wallet: %w", err))
	}
	to, err := s.walletRepo.GetOrCreateByUserID(ctx, req.ToUserID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("resolve destination wallet: %w", err))
	}
	if !from.IsActive || !to.IsActive {
		return nil, apperror.ErrWalletInactive()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Lock wallets in a stable order so two opposing transfers between the
	// same pair cannot deadlock.
	legs := []struct {
		walletID uuid.UUID
		delta    decimal.Decimal
	}{
		{from.ID, req.Amount.Neg()},
		{to.ID, req.Amount},
	}
	if legs[1].walletID.String() < legs[0].walletID.String() {
		legs[0], legs[1] = legs[1], legs[0]
	}

	changes := make(map[uuid.UUID]*ports.BalanceChange, 2)
	for _, leg := range legs {
		change, err := s.walletRepo.ApplyDelta(ctx, dbTx, leg.walletID, leg.delta)
		if err != nil {
			return nil, translateWalletErr(err)
		}
		changes[leg.walletID] = change
	}

	now := time.Now().UTC()
	description := req.Description
	if description == "" {
		description = "wallet transfer"
	}

	var debitKey, creditKey *string
	if req.IdempotencyKey != nil {
		debitKey = req.IdempotencyKey
		ck := domain.CreditIdempotencyKey(*req.IdempotencyKey)
		creditKey = &ck
	}

	debit := &domain.WalletTransaction{
		ID:             uuid.New(),
		WalletID:       from.ID,
		Type:           domain.TransactionTypeTransfer,
		Amount:         req.Amount.Neg(),
		BalanceBefore:  changes[from.ID].BalanceBefore,
		BalanceAfter:   changes[from.ID].BalanceAfter,
		Description:    description,
		IdempotencyKey: debitKey,
		RelatedUserID:  &req.ToUserID,
		ProcessedBy:    caller.ActorID,
		Status:         domain.TransactionStatusCompleted,
		CreatedAt:      now,
	}
	credit := &domain.WalletTransaction{
		ID:             uuid.New(),
		WalletID:       to.ID,
		Type:           domain.TransactionTypeTransfer,
		Amount:         req.Amount,
		BalanceBefore:  changes[to.ID].BalanceBefore,
		BalanceAfter:   changes[to.ID].BalanceAfter,
		Description:    description,
		IdempotencyKey: creditKey,
		RelatedUserID:  &req.FromUserID,
		ProcessedBy:    caller.ActorID,
		Status:         domain.TransactionStatusCompleted,
		CreatedAt:      now,
	}

	for _, entry := range []*domain.WalletTransaction{debit, credit} {
		if err := s.txRepo.Create(ctx, dbTx, entry); err != nil {
			if errors.Is(err, ports.ErrDuplicate) && req.IdempotencyKey != nil {
				_ = dbTx.Rollback(ctx)
				return s.replayTransferFromLedger(ctx, *req.IdempotencyKey)
			}
			return nil, apperror.ErrDatabaseError(fmt.Errorf("create ledger entry: %w", err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("commit tx: %w", err))
	}

	for _, entry := range []*domain.WalletTransaction{debit, credit} {
		s.audit.Record(ctx, caller, domain.AuditActionCreate, "wallet_transaction", entry.ID.String(),
			nil, map[string]any{
				"wallet_id":     entry.WalletID.String(),
				"type":          string(entry.Type),
				"amount":        entry.Amount.String(),
				"balance_after": entry.BalanceAfter.String(),
			})
	}

	result := &ports.TransferResult{Debit: debit, Credit: credit}
	if req.IdempotencyKey != nil {
		if payload, err := json.Marshal(result); err == nil {
			if err := s.idempCache.Set(ctx, *req.IdempotencyKey, payload, s.idempTTL); err != nil {
				s.log.Warn().Err(err).Str("key", *req.IdempotencyKey).Msg("failed to cache transfer result")
			}
		}
	}

	s.log.Info().
		Str("from_wallet", from.ID.String()).
		Str("to_wallet", to.ID.String()).
		Str("amount", req.Amount.String()).
		Msg("transfer completed")

	return result, nil
}

// GetWallet resolves the wallet for a user, creating it on first access.
func (s *WalletServiceImpl) GetWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("resolve wallet: %w", err))
	}
	return wallet, nil
}

// SetActive flips the wallet's active flag through the version-checked path.
// A lost race against a concurrent writer surfaces as a conflict; the caller
// decides whether to retry with fresh data.
func (s *WalletServiceImpl) SetActive(ctx context.Context, caller domain.CallerContext, walletID uuid.UUID, active bool) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByID(ctx, walletID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	if wallet.IsActive == active {
		return wallet, nil
	}

	before := map[string]any{"is_active": wallet.IsActive}
	wallet.IsActive = active
	if err := s.walletRepo.UpdateDetails(ctx, wallet); err != nil {
		switch {
		case errors.Is(err, ports.ErrConflict):
			return nil, apperror.ErrConcurrencyConflict()
		case errors.Is(err, ports.ErrNotFound):
			return nil, apperror.ErrWalletNotFound()
		default:
			return nil, apperror.ErrDatabaseError(fmt.Errorf("update wallet: %w", err))
		}
	}

	s.audit.Record(ctx, caller, domain.AuditActionUpdate, "wallet", wallet.ID.String(),
		before, map[string]any{"is_active": active})

	return wallet, nil
}

// resolveWallet addresses a wallet directly by ID, or lazily by owner.
func (s *WalletServiceImpl) resolveWallet(ctx context.Context, walletID *uuid.UUID, userID uuid.UUID) (*domain.Wallet, error) {
	if walletID != nil {
		wallet, err := s.walletRepo.GetByID(ctx, *walletID)
		if err != nil {
			return nil, apperror.ErrDatabaseError(fmt.Errorf("get wallet: %w", err))
		}
		if wallet == nil {
			return nil, apperror.ErrWalletNotFound()
		}
		return wallet, nil
	}
	wallet, err := s.walletRepo.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("resolve wallet: %w", err))
	}
	return wallet, nil
}

func (s *WalletServiceImpl) buildEntry(caller domain.CallerContext, walletID uuid.UUID, req ports.ApplyDeltaRequest, change *ports.BalanceChange) *domain.WalletTransaction {
	return &domain.WalletTransaction{
		ID:             uuid.New(),
		WalletID:       walletID,
		Type:           req.Type,
		Amount:         req.Amount,
		BalanceBefore:  change.BalanceBefore,
		BalanceAfter:   change.BalanceAfter,
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
		RelatedUserID:  req.RelatedUserID,
		ProcessedBy:    caller.ActorID,
		Status:         domain.TransactionStatusCompleted,
		CreatedAt:      time.Now().UTC(),
	}
}

// findReplay checks both idempotency layers for a previously committed call.
// Returns nil, nil when the key is unseen.
func (s *WalletServiceImpl) findReplay(ctx context.Context, key string) (*ports.ApplyDeltaResult, error) {
	cached, err := s.idempCache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to ledger")
	}
	if cached != nil {
		entry := &domain.WalletTransaction{}
		if err := json.Unmarshal(cached, entry); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("unmarshal cached entry: %w", err))
		}
		return &ports.ApplyDeltaResult{Transaction: entry, NewBalance: entry.BalanceAfter, Replayed: true}, nil
	}

	entry, err := s.txRepo.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("ledger idempotency check: %w", err))
	}
	if entry == nil {
		return nil, nil
	}
	return &ports.ApplyDeltaResult{Transaction: entry, NewBalance: entry.BalanceAfter, Replayed: true}, nil
}

// replayFromLedger serves the result of the committed duplicate entry.
// Used after losing an insert race on the idempotency key.
func (s *WalletServiceImpl) replayFromLedger(ctx context.Context, key string) (*ports.ApplyDeltaResult, error) {
	entry, err := s.txRepo.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("ledger idempotency lookup: %w", err))
	}
	if entry == nil {
		// Key collided with something that is not visible yet; the caller
		// retries against the committed row.
		return nil, apperror.ErrConcurrencyConflict()
	}
	return &ports.ApplyDeltaResult{Transaction: entry, NewBalance: entry.BalanceAfter, Replayed: true}, nil
}

func (s *WalletServiceImpl) findTransferReplay(ctx context.Context, key string) (*ports.TransferResult, error) {
	cached, err := s.idempCache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to ledger")
	}
	if cached != nil {
		result := &ports.TransferResult{}
		if err := json.Unmarshal(cached, result); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("unmarshal cached transfer: %w", err))
		}
		result.Replayed = true
		return result, nil
	}

	debit, err := s.txRepo.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("ledger idempotency check: %w", err))
	}
	if debit == nil {
		return nil, nil
	}
	credit, err := s.txRepo.GetByIdempotencyKey(ctx, domain.CreditIdempotencyKey(key))
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("ledger idempotency check: %w", err))
	}
	return &ports.TransferResult{Debit: debit, Credit: credit, Replayed: true}, nil
}

func (s *WalletServiceImpl) replayTransferFromLedger(ctx context.Context, key string) (*ports.TransferResult, error) {
	result, err := s.findTransferReplay(ctx, key)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, apperror.ErrConcurrencyConflict()
	}
	return result, nil
}

// cacheEntry stores the committed entry for fast replay (best-effort).
func (s *WalletServiceImpl) cacheEntry(ctx context.Context, key *string, entry *domain.WalletTransaction) {
	if key == nil {
		return
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := s.idempCache.Set(ctx, *key, payload, s.idempTTL); err != nil {
		s.log.Warn().Err(err).Str("key", *key).Msg("failed to cache ledger entry")
	}
}

// translateWalletErr maps storage sentinels from the atomic update into
// user-facing errors.
func translateWalletErr(err error) error {
	switch {
	case errors.Is(err, ports.ErrInsufficientFunds):
		return apperror.ErrInsufficientFunds()
	case errors.Is(err, ports.ErrNotFound):
		return apperror.ErrWalletNotFound()
	case errors.Is(err, ports.ErrConflict):
		return apperror.ErrConcurrencyConflict()
	default:
		return apperror.ErrDatabaseError(err)
	}
}
