package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gamecafe-wallet/internal/core/domain"
	"gamecafe-wallet/internal/core/ports"
	"gamecafe-wallet/internal/core/ports/mocks"
	"gamecafe-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type walletTestDeps struct {
	svc        *WalletServiceImpl
	walletRepo *mocks.MockWalletRepository
	txRepo     *mocks.MockTransactionRepository
	idempCache *mocks.MockIdempotencyCache
	transactor *mocks.MockDBTransactor
	audit      *mocks.MockAuditRecorder
	ctrl       *gomock.Controller
}

func setupWalletService(t *testing.T) *walletTestDeps {
	ctrl := gomock.NewController(t)
	d := &walletTestDeps{
		walletRepo: mocks.NewMockWalletRepository(ctrl),
		txRepo:     mocks.NewMockTransactionRepository(ctrl),
		idempCache: mocks.NewMockIdempotencyCache(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		audit:      mocks.NewMockAuditRecorder(ctrl),
		ctrl:       ctrl,
	}
	d.svc = NewWalletService(
		d.walletRepo, d.txRepo, d.idempCache, d.transactor, d.audit,
		24*time.Hour, zerolog.Nop(),
	)
	return d
}

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

func requireAppCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
}

func activeWallet(balance string) *domain.Wallet {
	return &domain.Wallet{
		ID:       uuid.New(),
		UserID:   uuid.New(),
		Balance:  decimal.RequireFromString(balance),
		IsActive: true,
		Version:  1,
	}
}

// ==================== ApplyDelta Tests ====================

func TestWalletService_ApplyDelta_Credit(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	wallet := activeWallet("100.00")
	tx := &mockTx{}
	amount := decimal.RequireFromString("50.00")
	caller := domain.SystemCaller()

	d.walletRepo.EXPECT().GetOrCreateByUserID(ctx, wallet.UserID).Return(wallet, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().ApplyDelta(ctx, tx, wallet.ID, amount).Return(&ports.BalanceChange{
		WalletID:      wallet.ID,
		Amount:        amount,
		BalanceBefore: decimal.RequireFromString("100.00"),
		BalanceAfter:  decimal.RequireFromString("150.00"),
	}, nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, entry *domain.WalletTransaction) error {
			assert.Equal(t, wallet.ID, entry.WalletID)
			assert.True(t, entry.Amount.Equal(amount))
			assert.True(t, entry.BalanceBefore.Equal(decimal.RequireFromString("100.00")))
			assert.True(t, entry.BalanceAfter.Equal(decimal.RequireFromString("150.00")))
			assert.Equal(t, domain.TransactionStatusCompleted, entry.Status)
			return nil
		})
	d.audit.EXPECT().Record(ctx, caller, domain.AuditActionCreate, "wallet_transaction",
		gomock.Any(), gomock.Any(), gomock.Any())

	result, err := d.svc.ApplyDelta(ctx, caller, ports.ApplyDeltaRequest{
		UserID:      wallet.UserID,
		Amount:      amount,
		Type:        domain.TransactionTypeDeposit,
		Description: "counter top-up",
	})
	require.NoError(t, err)
	assert.True(t, result.NewBalance.Equal(decimal.RequireFromString("150.00")))
	assert.False(t, result.Replayed)
}

func TestWalletService_ApplyDelta_InsufficientFunds(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	wallet := activeWallet("100.00")
	tx := &mockTx{}
	debit := decimal.RequireFromString("-150.00")

	d.walletRepo.EXPECT().GetOrCreateByUserID(ctx, wallet.UserID).Return(wallet, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().ApplyDelta(ctx, tx, wallet.ID, debit).Return(nil, ports.ErrInsufficientFunds)
	// No ledger entry and no audit row on failure.

	result, err := d.svc.ApplyDelta(ctx, domain.SystemCaller(), ports.ApplyDeltaRequest{
		UserID: wallet.UserID,
		Amount: debit,
		Type:   domain.TransactionTypePurchase,
	})
	assert.Nil(t, result)
	requireAppCode(t, err, "WAL_001")
}

func TestWalletService_ApplyDelta_ZeroAmount(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	result, err := d.svc.ApplyDelta(context.Background(), domain.SystemCaller(), ports.ApplyDeltaRequest{
		UserID: uuid.New(),
		Amount: decimal.Zero,
		Type:   domain.TransactionTypeDeposit,
	})
	assert.Nil(t, result)
	requireAppCode(t, err, "WAL_002")
}

func TestWalletService_ApplyDelta_InactiveWallet(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	wallet := activeWallet("100.00")
	wallet.IsActive = false

	d.walletRepo.EXPECT().GetOrCreateByUserID(ctx, wallet.UserID).Return(wallet, nil)

	_, err := d.svc.ApplyDelta(ctx, domain.SystemCaller(), ports.ApplyDeltaRequest{
		UserID: wallet.UserID,
		Amount: decimal.RequireFromString("10.00"),
		Type:   domain.TransactionTypeDeposit,
	})
	requireAppCode(t, err, "WAL_004")
}

func TestWalletService_ApplyDelta_WalletIDNotFound(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()

	d.walletRepo.EXPECT().GetByID(ctx, walletID).Return(nil, nil)

	_, err := d.svc.ApplyDelta(ctx, domain.SystemCaller(), ports.ApplyDeltaRequest{
		WalletID: &walletID,
		Amount:   decimal.RequireFromString("10.00"),
		Type:     domain.TransactionTypeDeposit,
	})
	requireAppCode(t, err, "WAL_003")
}

func TestWalletService_ApplyDelta_ReplayFromCache(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	key := "refund-abc-123"
	committed := &domain.WalletTransaction{
		ID:           uuid.New(),
		WalletID:     uuid.New(),
		Type:         domain.TransactionTypeRefund,
		Amount:       decimal.RequireFromString("25.00"),
		BalanceAfter: decimal.RequireFromString("125.00"),
		Status:       domain.TransactionStatusCompleted,
	}
	payload, err := json.Marshal(committed)
	require.NoError(t, err)

	d.idempCache.EXPECT().Get(ctx, key).Return(payload, nil)
	// No balance mutation and no new ledger row on replay.

	result, err := d.svc.ApplyDelta(ctx, domain.SystemCaller(), ports.ApplyDeltaRequest{
		UserID:         uuid.New(),
		Amount:         decimal.RequireFromString("25.00"),
		Type:           domain.TransactionTypeRefund,
		IdempotencyKey: &key,
	})
	require.NoError(t, err)
	assert.True(t, result.Replayed)
	assert.Equal(t, committed.ID, result.Transaction.ID)
	assert.True(t, result.NewBalance.Equal(committed.BalanceAfter))
}

func TestWalletService_ApplyDelta_ReplayFromLedger(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	key := "refund-def-456"
	committed := &domain.WalletTransaction{
		ID:           uuid.New(),
		BalanceAfter: decimal.RequireFromString("90.00"),
		Status:       domain.TransactionStatusCompleted,
	}

	d.idempCache.EXPECT().Get(ctx, key).Return(nil, nil)
	d.txRepo.EXPECT().GetByIdempotencyKey(ctx, key).Return(committed, nil)

	result, err := d.svc.ApplyDelta(ctx, domain.SystemCaller(), ports.ApplyDeltaRequest{
		UserID:         uuid.New(),
		Amount:         decimal.RequireFromString("-10.00"),
		Type:           domain.TransactionTypePurchase,
		IdempotencyKey: &key,
	})
	require.NoError(t, err)
	assert.True(t, result.Replayed)
	assert.Equal(t, committed.ID, result.Transaction.ID)
}

func TestWalletService_ApplyDelta_LostInsertRace(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	key := "session-bill-789"
	wallet := activeWallet("100.00")
	tx := &mockTx{}
	debit := decimal.RequireFromString("-20.00")
	committed := &domain.WalletTransaction{
		ID:           uuid.New(),
		BalanceAfter: decimal.RequireFromString("80.00"),
	}

	d.idempCache.EXPECT().Get(ctx, key).Return(nil, nil)
	d.txRepo.EXPECT().GetByIdempotencyKey(ctx, key).Return(nil, nil)
	d.walletRepo.EXPECT().GetOrCreateByUserID(ctx, wallet.UserID).Return(wallet, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().ApplyDelta(ctx, tx, wallet.ID, debit).Return(&ports.BalanceChange{
		BalanceBefore: decimal.RequireFromString("100.00"),
		BalanceAfter:  decimal.RequireFromString("80.00"),
	}, nil)
	// A concurrent retry committed the same key first.
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(ports.ErrDuplicate)
	d.txRepo.EXPECT().GetByIdempotencyKey(ctx, key).Return(committed, nil)

	result, err := d.svc.ApplyDelta(ctx, domain.SystemCaller(), ports.ApplyDeltaRequest{
		UserID:         wallet.UserID,
		Amount:         debit,
		Type:           domain.TransactionTypePurchase,
		IdempotencyKey: &key,
	})
	require.NoError(t, err)
	assert.True(t, result.Replayed)
	assert.Equal(t, committed.ID, result.Transaction.ID)
}

// ==================== Transfer Tests ====================

func transferPair(t *testing.T) (*domain.Wallet, *domain.Wallet) {
	t.Helper()
	// Fixed IDs pin the lock ordering: source sorts before destination.
	from := &domain.Wallet{
		ID:       uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		UserID:   uuid.New(),
		Balance:  decimal.RequireFromString("50.00"),
		IsActive: true,
	}
	to := &domain.Wallet{
		ID:       uuid.MustParse("22222222-2222-2222-2222-222222222222"),
		UserID:   uuid.New(),
		Balance:  decimal.RequireFromString("10.00"),
		IsActive: true,
	}
	return from, to
}

func TestWalletService_Transfer_Success(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	from, to := transferPair(t)
	tx := &mockTx{}
	amount := decimal.RequireFromString("30.00")
	caller := domain.SystemCaller()

	d.walletRepo.EXPECT().GetOrCreateByUserID(ctx, from.UserID).Return(from, nil)
	d.walletRepo.EXPECT().GetOrCreateByUserID(ctx, to.UserID).Return(to, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().ApplyDelta(ctx, tx, from.ID, amount.Neg()).Return(&ports.BalanceChange{
		BalanceBefore: decimal.RequireFromString("50.00"),
		BalanceAfter:  decimal.RequireFromString("20.00"),
	}, nil)
	d.walletRepo.EXPECT().ApplyDelta(ctx, tx, to.ID, amount).Return(&ports.BalanceChange{
		BalanceBefore: decimal.RequireFromString("10.00"),
		BalanceAfter:  decimal.RequireFromString("40.00"),
	}, nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil).Times(2)
	d.audit.EXPECT().Record(ctx, caller, domain.AuditActionCreate, "wallet_transaction",
		gomock.Any(), gomock.Any(), gomock.Any()).Times(2)

	result, err := d.svc.Transfer(ctx, caller, ports.TransferRequest{
		FromUserID: from.UserID,
		ToUserID:   to.UserID,
		Amount:     amount,
	})
	require.NoError(t, err)
	assert.True(t, result.Debit.Amount.Equal(amount.Neg()))
	assert.True(t, result.Debit.BalanceAfter.Equal(decimal.RequireFromString("20.00")))
	assert.True(t, result.Credit.Amount.Equal(amount))
	assert.True(t, result.Credit.BalanceAfter.Equal(decimal.RequireFromString("40.00")))
	assert.Equal(t, &to.UserID, result.Debit.RelatedUserID)
	assert.Equal(t, &from.UserID, result.Credit.RelatedUserID)
}

func TestWalletService_Transfer_CreditLegFails_NothingCommits(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	from, to := transferPair(t)
	tx := &mockTx{}
	amount := decimal.RequireFromString("30.00")

	d.walletRepo.EXPECT().GetOrCreateByUserID(ctx, from.UserID).Return(from, nil)
	d.walletRepo.EXPECT().GetOrCreateByUserID(ctx, to.UserID).Return(to, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().ApplyDelta(ctx, tx, from.ID, amount.Neg()).Return(&ports.BalanceChange{
		BalanceBefore: decimal.RequireFromString("50.00"),
		BalanceAfter:  decimal.RequireFromString("20.00"),
	}, nil)
	d.walletRepo.EXPECT().ApplyDelta(ctx, tx, to.ID, amount).Return(nil, errors.New("connection reset"))
	// No ledger rows, no commit: the deferred rollback undoes the debit.

	result, err := d.svc.Transfer(ctx, domain.SystemCaller(), ports.TransferRequest{
		FromUserID: from.UserID,
		ToUserID:   to.UserID,
		Amount:     amount,
	})
	assert.Nil(t, result)
	requireAppCode(t, err, "SYS_001")
}

func TestWalletService_Transfer_InsufficientSourceFunds(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	from, to := transferPair(t)
	tx := &mockTx{}
	amount := decimal.RequireFromString("80.00")

	d.walletRepo.EXPECT().GetOrCreateByUserID(ctx, from.UserID).Return(from, nil)
	d.walletRepo.EXPECT().GetOrCreateByUserID(ctx, to.UserID).Return(to, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().ApplyDelta(ctx, tx, from.ID, amount.Neg()).Return(nil, ports.ErrInsufficientFunds)

	_, err := d.svc.Transfer(ctx, domain.SystemCaller(), ports.TransferRequest{
		FromUserID: from.UserID,
		ToUserID:   to.UserID,
		Amount:     amount,
	})
	requireAppCode(t, err, "WAL_001")
}

func TestWalletService_Transfer_SelfTransfer(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	userID := uuid.New()
	_, err := d.svc.Transfer(context.Background(), domain.SystemCaller(), ports.TransferRequest{
		FromUserID: userID,
		ToUserID:   userID,
		Amount:     decimal.RequireFromString("10.00"),
	})
	requireAppCode(t, err, "WAL_005")
}

func TestWalletService_Transfer_NegativeAmount(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.Transfer(context.Background(), domain.SystemCaller(), ports.TransferRequest{
		FromUserID: uuid.New(),
		ToUserID:   uuid.New(),
		Amount:     decimal.RequireFromString("-10.00"),
	})
	requireAppCode(t, err, "WAL_002")
}

func TestWalletService_Transfer_ReplayFromLedger(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	key := "transfer-xyz"
	debit := &domain.WalletTransaction{ID: uuid.New(), Amount: decimal.RequireFromString("-30.00")}
	credit := &domain.WalletTransaction{ID: uuid.New(), Amount: decimal.RequireFromString("30.00")}

	d.idempCache.EXPECT().Get(ctx, key).Return(nil, nil)
	d.txRepo.EXPECT().GetByIdempotencyKey(ctx, key).Return(debit, nil)
	d.txRepo.EXPECT().GetByIdempotencyKey(ctx, domain.CreditIdempotencyKey(key)).Return(credit, nil)

	result, err := d.svc.Transfer(ctx, domain.SystemCaller(), ports.TransferRequest{
		FromUserID:     uuid.New(),
		ToUserID:       uuid.New(),
		Amount:         decimal.RequireFromString("30.00"),
		IdempotencyKey: &key,
	})
	require.NoError(t, err)
	assert.True(t, result.Replayed)
	assert.Equal(t, debit.ID, result.Debit.ID)
	assert.Equal(t, credit.ID, result.Credit.ID)
}

// ==================== GetWallet / SetActive Tests ====================

func TestWalletService_GetWallet_LazyCreate(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	wallet := &domain.Wallet{ID: uuid.New(), UserID: userID, Balance: decimal.Zero, IsActive: true}

	d.walletRepo.EXPECT().GetOrCreateByUserID(ctx, userID).Return(wallet, nil)

	got, err := d.svc.GetWallet(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, wallet, got)
}

func TestWalletService_SetActive_Success(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	wallet := activeWallet("40.00")
	caller := domain.SystemCaller()

	d.walletRepo.EXPECT().GetByID(ctx, wallet.ID).Return(wallet, nil)
	d.walletRepo.EXPECT().UpdateDetails(ctx, wallet).Return(nil)
	d.audit.EXPECT().Record(ctx, caller, domain.AuditActionUpdate, "wallet", wallet.ID.String(),
		map[string]any{"is_active": true}, map[string]any{"is_active": false})

	got, err := d.svc.SetActive(ctx, caller, wallet.ID, false)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestWalletService_SetActive_NoopWhenUnchanged(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	wallet := activeWallet("40.00")

	d.walletRepo.EXPECT().GetByID(ctx, wallet.ID).Return(wallet, nil)
	// No update and no audit row for a no-op.

	got, err := d.svc.SetActive(ctx, domain.SystemCaller(), wallet.ID, true)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
}

func TestWalletService_SetActive_Conflict(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	wallet := activeWallet("40.00")

	d.walletRepo.EXPECT().GetByID(ctx, wallet.ID).Return(wallet, nil)
	d.walletRepo.EXPECT().UpdateDetails(ctx, wallet).Return(ports.ErrConflict)

	_, err := d.svc.SetActive(ctx, domain.SystemCaller(), wallet.ID, false)
	requireAppCode(t, err, "CONF_001")
}

func TestWalletService_SetActive_NotFound(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()

	d.walletRepo.EXPECT().GetByID(ctx, walletID).Return(nil, nil)

	_, err := d.svc.SetActive(ctx, domain.SystemCaller(), walletID, false)
	requireAppCode(t, err, "WAL_003")
}
