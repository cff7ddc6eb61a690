package service

import (
	"context"
	"fmt"

	"gamecafe-wallet/internal/core/domain"
	"gamecafe-wallet/internal/core/ports"
	"gamecafe-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ReportingServiceImpl implements ports.ReportingService: the read-only
// ledger query surface for the admin UI.
type ReportingServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	log        zerolog.Logger
}

// NewReportingService creates a new ReportingServiceImpl.
func NewReportingService(walletRepo ports.WalletRepository, txRepo ports.TransactionRepository, log zerolog.Logger) *ReportingServiceImpl {
	return &ReportingServiceImpl{walletRepo: walletRepo, txRepo: txRepo, log: log}
}

// ListTransactions returns a filtered, paginated slice of ledger entries plus
// the unpaginated total.
func (s *ReportingServiceImpl) ListTransactions(ctx context.Context, params ports.TransactionListParams) ([]domain.WalletTransaction, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}
	entries, total, err := s.txRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.ErrDatabaseError(fmt.Errorf("list transactions: %w", err))
	}
	return entries, total, nil
}

// GetWalletBalance returns the wallet for a user without creating one.
func (s *ReportingServiceImpl) GetWalletBalance(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	return wallet, nil
}

// TotalActiveBalance totals the funds held across all active wallets.
func (s *ReportingServiceImpl) TotalActiveBalance(ctx context.Context) (decimal.Decimal, error) {
	total, err := s.walletRepo.SumActiveBalances(ctx)
	if err != nil {
		return decimal.Zero, apperror.ErrDatabaseError(fmt.Errorf("sum balances: %w", err))
	}
	return total, nil
}
