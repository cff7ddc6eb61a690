package handler

import (
	"gamecafe-wallet/internal/adapter/http/dto"
	"gamecafe-wallet/internal/adapter/http/middleware"
	"gamecafe-wallet/internal/core/domain"
	"gamecafe-wallet/internal/core/ports"
	"gamecafe-wallet/pkg/apperror"
	"gamecafe-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler handles money-movement endpoints.
type WalletHandler struct {
	walletSvc    ports.WalletService
	reportingSvc ports.ReportingService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService, reportingSvc ports.ReportingService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc, reportingSvc: reportingSvc}
}

// Deposit handles POST /api/v1/wallets/deposit.
func (h *WalletHandler) Deposit(c *gin.Context) {
	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)
	if !req.Amount.IsPositive() {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	result, err := h.walletSvc.ApplyDelta(c.Request.Context(), middleware.CallerFrom(c), ports.ApplyDeltaRequest{
		UserID:         req.UserID,
		Amount:         req.Amount,
		Type:           domain.TransactionTypeDeposit,
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if result.Replayed {
		response.OK(c, dto.ToBalanceChangeResponse(result))
		return
	}
	response.Created(c, dto.ToBalanceChangeResponse(result))
}

// Withdraw handles POST /api/v1/wallets/withdraw. The request amount is the
// positive magnitude to remove; the ledger entry carries the signed delta.
func (h *WalletHandler) Withdraw(c *gin.Context) {
	var req dto.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)
	if !req.Amount.IsPositive() {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	result, err := h.walletSvc.ApplyDelta(c.Request.Context(), middleware.CallerFrom(c), ports.ApplyDeltaRequest{
		UserID:         req.UserID,
		Amount:         req.Amount.Neg(),
		Type:           domain.TransactionTypeWithdrawal,
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if result.Replayed {
		response.OK(c, dto.ToBalanceChangeResponse(result))
		return
	}
	response.Created(c, dto.ToBalanceChangeResponse(result))
}

// Transfer handles POST /api/v1/wallets/transfer.
func (h *WalletHandler) Transfer(c *gin.Context) {
	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)
	if !req.Amount.IsPositive() {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	result, err := h.walletSvc.Transfer(c.Request.Context(), middleware.CallerFrom(c), ports.TransferRequest{
		FromUserID:     req.FromUserID,
		ToUserID:       req.ToUserID,
		Amount:         req.Amount,
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if result.Replayed {
		response.OK(c, dto.ToTransferResponse(result))
		return
	}
	response.Created(c, dto.ToTransferResponse(result))
}

// GetWallet handles GET /api/v1/wallets/:id where :id is the owning user.
// Reads never create a wallet.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid user id"))
		return
	}

	wallet, err := h.reportingSvc.GetWalletBalance(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToWalletResponse(wallet))
}

// SetActive handles PUT /api/v1/wallets/:id/active where :id is the wallet.
func (h *WalletHandler) SetActive(c *gin.Context) {
	walletID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid wallet id"))
		return
	}

	var req dto.SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	wallet, err := h.walletSvc.SetActive(c.Request.Context(), middleware.CallerFrom(c), walletID, *req.Active)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToWalletResponse(wallet))
}
