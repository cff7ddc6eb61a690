package handler

import (
	"gamecafe-wallet/internal/adapter/http/dto"
	"gamecafe-wallet/internal/core/ports"
	"gamecafe-wallet/pkg/apperror"
	"gamecafe-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditHandler exposes the persisted audit trail.
type AuditHandler struct {
	auditSvc ports.AuditRecorder
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(auditSvc ports.AuditRecorder) *AuditHandler {
	return &AuditHandler{auditSvc: auditSvc}
}

// List handles GET /api/v1/audit-logs.
func (h *AuditHandler) List(c *gin.Context) {
	params := ports.AuditListParams{
		EntityType: c.Query("entity_type"),
		Page:       parseIntQuery(c, "page", 1),
		PageSize:   parseIntQuery(c, "page_size", 20),
	}

	if raw := c.Query("entity_id"); raw != "" {
		params.EntityID = &raw
	}
	if raw := c.Query("actor_id"); raw != "" {
		actorID, err := uuid.Parse(raw)
		if err != nil {
			response.Error(c, apperror.Validation("invalid actor id"))
			return
		}
		params.ActorID = &actorID
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

	entries, total, err := h.auditSvc.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.AuditLogResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.ToAuditLogResponse(&entries[i]))
	}
	response.Page(c, items, total, params.Page, params.PageSize)
}
