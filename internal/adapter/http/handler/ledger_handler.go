package handler

import (
	"strconv"
	"time"

	"gamecafe-wallet/internal/adapter/http/dto"
	"gamecafe-wallet/internal/core/domain"
	"gamecafe-wallet/internal/core/ports"
	"gamecafe-wallet/pkg/apperror"
	"gamecafe-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LedgerHandler handles the ledger query surface.
type LedgerHandler struct {
	reportingSvc ports.ReportingService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(reportingSvc ports.ReportingService) *LedgerHandler {
	return &LedgerHandler{reportingSvc: reportingSvc}
}

// ListTransactions handles GET /api/v1/wallets/:id/transactions where :id is
// the owning user. Supports type, date-range, and description filters.
func (h *LedgerHandler) ListTransactions(c *gin.Context) {
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

	params := ports.TransactionListParams{
		WalletID: wallet.ID,
		Search:   c.Query("search"),
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "page_size", 20),
	}

	if raw := c.Query("type"); raw != "" {
		txType := domain.TransactionType(raw)
		params.Type = &txType
	}
	if from, ok := parseTimeQuery(c, "from"); ok {
		params.From = from
	} else {
		response.Error(c, apperror.Validation("invalid 'from' timestamp, want RFC3339"))
		return
	}
	if to, ok := parseTimeQuery(c, "to"); ok {
		params.To = to
	} else {
		response.Error(c, apperror.Validation("invalid 'to' timestamp, want RFC3339"))
		return
	}

	entries, total, err := h.reportingSvc.ListTransactions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.ToTransactionResponse(&entries[i]))
	}
	response.Page(c, items, total, params.Page, params.PageSize)
}

// TotalBalance handles GET /api/v1/reports/total-balance.
func (h *LedgerHandler) TotalBalance(c *gin.Context) {
	total, err := h.reportingSvc.TotalActiveBalance(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.TotalBalanceResponse{TotalActiveBalance: total.String()})
}

func parseIntQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

// parseTimeQuery returns (nil, true) when the parameter is absent and
// (nil, false) when it is present but malformed.
func parseTimeQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, false
	}
	return &ts, true
}
