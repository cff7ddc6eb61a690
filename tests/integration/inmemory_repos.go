package integration

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"gamecafe-wallet/internal/core/domain"
	"gamecafe-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// The in-memory repositories reproduce the storage contract closely enough
// for end-to-end tests: the conditional balance update is atomic under one
// mutex, idempotency keys are unique, and every mutation made inside a memTx
// registers an undo so Rollback restores the previous state.

// --- In-Memory Transactor ---

type memTx struct {
	pgx.Tx
	mu    sync.Mutex
	undos []func()
	done  bool
}

func (t *memTx) onRollback(undo func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.undos = append(t.undos, undo)
}

func (t *memTx) Commit(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done = true
	t.undos = nil
	return nil
}

func (t *memTx) Rollback(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	for i := len(t.undos) - 1; i >= 0; i-- {
		t.undos[i]()
	}
	t.undos = nil
	return nil
}

type inMemoryTransactor struct{}

func newInMemoryTransactor() *inMemoryTransactor { return &inMemoryTransactor{} }

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &memTx{}, nil
}

func registerUndo(tx pgx.Tx, undo func()) {
	if m, ok := tx.(*memTx); ok {
		m.onRollback(undo)
	}
}

// --- In-Memory Wallet Repo ---

type inMemoryWalletRepo struct {
	mu      sync.Mutex
	wallets map[uuid.UUID]*domain.Wallet
	byUser  map[uuid.UUID]uuid.UUID

	// applyDeltaHook, when set, runs before a delta is applied and can force
	// a failure for a specific wallet.
	applyDeltaHook func(walletID uuid.UUID) error
}

func newInMemoryWalletRepo() *inMemoryWalletRepo {
	return &inMemoryWalletRepo{
		wallets: make(map[uuid.UUID]*domain.Wallet),
		byUser:  make(map[uuid.UUID]uuid.UUID),
	}
}

func (r *inMemoryWalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *w
	r.wallets[w.ID] = &cp
	r.byUser[w.UserID] = w.ID
	return nil
}

func (r *inMemoryWalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWalletRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byUser[userID]
	if !ok {
		return nil, nil
	}
	cp := *r.wallets[id]
	return &cp, nil
}

func (r *inMemoryWalletRepo) GetOrCreateByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byUser[userID]; ok {
		cp := *r.wallets[id]
		return &cp, nil
	}
	w := domain.NewWallet(userID)
	cp := *w
	r.wallets[w.ID] = &cp
	r.byUser[userID] = w.ID
	return w, nil
}

// ApplyDelta mirrors the conditional single-statement update: the balance
// check and the mutation happen under one lock, so concurrent debits cannot
// both pass the check against the same funds.
func (r *inMemoryWalletRepo) ApplyDelta(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, delta decimal.Decimal) (*ports.BalanceChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.applyDeltaHook != nil {
		if err := r.applyDeltaHook(walletID); err != nil {
			return nil, err
		}
	}

	w, ok := r.wallets[walletID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	before := w.Balance
	after := before.Add(delta)
	if delta.IsNegative() && after.IsNegative() {
		return nil, ports.ErrInsufficientFunds
	}
	w.Balance = after
	w.UpdatedAt = time.Now().UTC()

	registerUndo(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if current, ok := r.wallets[walletID]; ok {
			current.Balance = current.Balance.Sub(delta)
		}
	})

	return &ports.BalanceChange{
		WalletID:      walletID,
		Amount:        delta,
		BalanceBefore: before,
		BalanceAfter:  after,
	}, nil
}

func (r *inMemoryWalletRepo) UpdateDetails(ctx context.Context, w *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.wallets[w.ID]
	if !ok {
		return ports.ErrNotFound
	}
	if current.Version != w.Version {
		return ports.ErrConflict
	}
	current.IsActive = w.IsActive
	current.Version++
	current.UpdatedAt = time.Now().UTC()
	w.Version = current.Version
	return nil
}

func (r *inMemoryWalletRepo) SumActiveBalances(ctx context.Context) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, w := range r.wallets {
		if w.IsActive {
			total = total.Add(w.Balance)
		}
	}
	return total, nil
}

// --- In-Memory Transaction Repo ---

type inMemoryTransactionRepo struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*domain.WalletTransaction
	byKey   map[string]uuid.UUID
}

func newInMemoryTransactionRepo() *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{
		entries: make(map[uuid.UUID]*domain.WalletTransaction),
		byKey:   make(map[string]uuid.UUID),
	}
}

func (r *inMemoryTransactionRepo) Create(ctx context.Context, tx pgx.Tx, entry *domain.WalletTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.IdempotencyKey != nil {
		if _, exists := r.byKey[*entry.IdempotencyKey]; exists {
			return ports.ErrDuplicate
		}
		r.byKey[*entry.IdempotencyKey] = entry.ID
	}
	cp := *entry
	r.entries[entry.ID] = &cp

	id := entry.ID
	key := entry.IdempotencyKey
	registerUndo(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.entries, id)
		if key != nil {
			delete(r.byKey, *key)
		}
	})
	return nil
}

func (r *inMemoryTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WalletTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (r *inMemoryTransactionRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.WalletTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byKey[key]
	if !ok {
		return nil, nil
	}
	cp := *r.entries[id]
	return &cp, nil
}

func (r *inMemoryTransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.WalletTransaction, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.WalletTransaction
	for _, e := range r.entries {
		if e.WalletID != params.WalletID {
			continue
		}
		if params.Type != nil && e.Type != *params.Type {
			continue
		}
		if params.From != nil && e.CreatedAt.Before(*params.From) {
			continue
		}
		if params.To != nil && e.CreatedAt.After(*params.To) {
			continue
		}
		if params.Search != "" && !strings.Contains(strings.ToLower(e.Description), strings.ToLower(params.Search)) {
			continue
		}
		result = append(result, *e)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	total := int64(len(result))

	start := (params.Page - 1) * params.PageSize
	if start >= len(result) {
		return []domain.WalletTransaction{}, total, nil
	}
	end := start + params.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

// sumAmounts totals the committed signed amounts for one wallet. Used to
// verify the balance-equals-ledger invariant.
func (r *inMemoryTransactionRepo) sumAmounts(walletID uuid.UUID) decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, e := range r.entries {
		if e.WalletID == walletID {
			total = total.Add(e.Amount)
		}
	}
	return total
}

func (r *inMemoryTransactionRepo) countForWallet(walletID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.WalletID == walletID {
			n++
		}
	}
	return n
}

// --- In-Memory Audit Repo ---

type inMemoryAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditLog
}

func newInMemoryAuditRepo() *inMemoryAuditRepo {
	return &inMemoryAuditRepo{}
}

func (r *inMemoryAuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *inMemoryAuditRepo) List(ctx context.Context, params ports.AuditListParams) ([]domain.AuditLog, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.AuditLog
	for _, e := range r.entries {
		if params.EntityType != "" && e.EntityType != params.EntityType {
			continue
		}
		if params.EntityID != nil && (e.EntityID == nil || *e.EntityID != *params.EntityID) {
			continue
		}
		if params.ActorID != nil && (e.ActorID == nil || *e.ActorID != *params.ActorID) {
			continue
		}
		if params.From != nil && e.CreatedAt.Before(*params.From) {
			continue
		}
		if params.To != nil && e.CreatedAt.After(*params.To) {
			continue
		}
		result = append(result, e)
	}
	total := int64(len(result))
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = 20
	}
	start := (params.Page - 1) * params.PageSize
	if start >= len(result) {
		return []domain.AuditLog{}, total, nil
	}
	end := start + params.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}
