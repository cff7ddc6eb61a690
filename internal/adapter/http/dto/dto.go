package dto

import (
	"time"

	"gamecafe-wallet/internal/core/domain"
	"gamecafe-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DepositRequest is the request body for crediting a wallet.
type DepositRequest struct {
	UserID         uuid.UUID       `json:"user_id" binding:"required"`
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	Description    string          `json:"description" binding:"max=255"`
	IdempotencyKey *string         `json:"idempotency_key,omitempty" binding:"omitempty,safe_id,max=100"`
}

// WithdrawRequest is the request body for debiting a wallet.
type WithdrawRequest struct {
	UserID         uuid.UUID       `json:"user_id" binding:"required"`
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	Description    string          `json:"description" binding:"max=255"`
	IdempotencyKey *string         `json:"idempotency_key,omitempty" binding:"omitempty,safe_id,max=100"`
}

// TransferRequest is the request body for a wallet-to-wallet transfer.
type TransferRequest struct {
	FromUserID     uuid.UUID       `json:"from_user_id" binding:"required"`
	ToUserID       uuid.UUID       `json:"to_user_id" binding:"required"`
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	Description    string          `json:"description" binding:"max=255"`
	IdempotencyKey *string         `json:"idempotency_key,omitempty" binding:"omitempty,safe_id,max=100"`
}

// SetActiveRequest is the request body for flipping a wallet's active flag.
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// WalletResponse is the response body for wallet queries.
type WalletResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Balance   string `json:"balance"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// TransactionResponse is the response body for one ledger entry.
type TransactionResponse struct {
	ID            string  `json:"id"`
	WalletID      string  `json:"wallet_id"`
	Type          string  `json:"type"`
	Amount        string  `json:"amount"`
	BalanceBefore string  `json:"balance_before"`
	BalanceAfter  string  `json:"balance_after"`
	Description   string  `json:"description"`
	RelatedUserID *string `json:"related_user_id,omitempty"`
	Status        string  `json:"status"`
	CreatedAt     string  `json:"created_at"`
}

// BalanceChangeResponse is the response body for deposit/withdraw results.
type BalanceChangeResponse struct {
	Transaction TransactionResponse `json:"transaction"`
	NewBalance  string              `json:"new_balance"`
	Replayed    bool                `json:"replayed"`
}

// TransferResponse is the response body for transfer results.
type TransferResponse struct {
	Debit    TransactionResponse `json:"debit"`
	Credit   TransactionResponse `json:"credit"`
	Replayed bool                `json:"replayed"`
}

// AuditLogResponse is the response body for one audit entry.
type AuditLogResponse struct {
	ID         string  `json:"id"`
	Action     string  `json:"action"`
	ActorID    *string `json:"actor_id,omitempty"`
	EntityType string  `json:"entity_type"`
	EntityID   *string `json:"entity_id,omitempty"`
	Details    string  `json:"details"`
	RequestID  string  `json:"request_id"`
	IPAddress  string  `json:"ip_address"`
	UserAgent  string  `json:"user_agent"`
	CreatedAt  string  `json:"created_at"`
}

// TotalBalanceResponse is the response for the aggregate balance report.
type TotalBalanceResponse struct {
	TotalActiveBalance string `json:"total_active_balance"`
}

// ToWalletResponse maps a wallet to its response body.
func ToWalletResponse(w *domain.Wallet) WalletResponse {
	return WalletResponse{
		ID:        w.ID.String(),
		UserID:    w.UserID.String(),
		Balance:   w.Balance.String(),
		IsActive:  w.IsActive,
		CreatedAt: w.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: w.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// ToTransactionResponse maps a ledger entry to its response body.
func ToTransactionResponse(t *domain.WalletTransaction) TransactionResponse {
	var related *string
	if t.RelatedUserID != nil {
		s := t.RelatedUserID.String()
		related = &s
	}
	return TransactionResponse{
		ID:            t.ID.String(),
		WalletID:      t.WalletID.String(),
		Type:          string(t.Type),
		Amount:        t.Amount.String(),
		BalanceBefore: t.BalanceBefore.String(),
		BalanceAfter:  t.BalanceAfter.String(),
		Description:   t.Description,
		RelatedUserID: related,
		Status:        string(t.Status),
		CreatedAt:     t.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ToBalanceChangeResponse maps an ApplyDelta result to its response body.
func ToBalanceChangeResponse(r *ports.ApplyDeltaResult) BalanceChangeResponse {
	return BalanceChangeResponse{
		Transaction: ToTransactionResponse(r.Transaction),
		NewBalance:  r.NewBalance.String(),
		Replayed:    r.Replayed,
	}
}

// ToTransferResponse maps a transfer result to its response body.
func ToTransferResponse(r *ports.TransferResult) TransferResponse {
	return TransferResponse{
		Debit:    ToTransactionResponse(r.Debit),
		Credit:   ToTransactionResponse(r.Credit),
		Replayed: r.Replayed,
	}
}

// ToAuditLogResponse maps an audit entry to its response body.
func ToAuditLogResponse(a *domain.AuditLog) AuditLogResponse {
	var actor *string
	if a.ActorID != nil {
		s := a.ActorID.String()
		actor = &s
	}
	return AuditLogResponse{
		ID:         a.ID.String(),
		Action:     string(a.Action),
		ActorID:    actor,
		EntityType: a.EntityType,
		EntityID:   a.EntityID,
		Details:    a.Details,
		RequestID:  a.RequestID,
		IPAddress:  a.IPAddress,
		UserAgent:  a.UserAgent,
		CreatedAt:  a.CreatedAt.UTC().Format(time.RFC3339),
	}
}
