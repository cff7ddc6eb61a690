package service

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"gamecafe-wallet/internal/core/domain"
	"gamecafe-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// auditRecorder implements ports.AuditRecorder. Recording is synchronous but
// strictly best-effort: a failed write is logged and swallowed so the business
// operation it describes is never affected.
type auditRecorder struct {
	repo ports.AuditRepository
	log  zerolog.Logger
}

// NewAuditRecorder creates the audit recorder.
func NewAuditRecorder(repo ports.AuditRepository, log zerolog.Logger) ports.AuditRecorder {
	return &auditRecorder{repo: repo, log: log}
}

// Record persists one audit row describing a tracked save. The details
// payload is a JSON map of field name to {old, new} for every field whose
// value changed between the before and after snapshots.
func (s *auditRecorder) Record(ctx context.Context, caller domain.CallerContext, action domain.AuditAction, entityType, entityID string, before, after map[string]any) {
	details, err := buildDiff(before, after)
	if err != nil {
		s.log.Warn().Err(err).
			Str("entity_type", entityType).
			Str("entity_id", entityID).
			Msg("failed to build audit diff")
		return
	}

	var idRef *string
	if entityID != "" {
		idRef = &entityID
	}

	entry := &domain.AuditLog{
		ID:         uuid.New(),
		Action:     action,
		ActorID:    caller.ActorID,
		EntityType: entityType,
		EntityID:   idRef,
		Details:    details,
		RequestID:  caller.RequestID,
		IPAddress:  caller.IPAddress,
		UserAgent:  caller.UserAgent,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		s.log.Warn().Err(err).
			Str("action", string(action)).
			Str("entity_type", entityType).
			Str("entity_id", entityID).
			Msg("failed to persist audit log")
		return
	}

	s.log.Info().
		Str("action", string(action)).
		Str("entity_type", entityType).
		Str("entity_id", entityID).
		Str("request_id", caller.RequestID).
		Msg("audit")
}

// List exposes the persisted audit trail.
func (s *auditRecorder) List(ctx context.Context, params ports.AuditListParams) ([]domain.AuditLog, int64, error) {
	return s.repo.List(ctx, params)
}

// buildDiff serializes the changed fields between two snapshots. Unchanged
// fields are dropped. Payloads over MaxAuditDetailBytes are replaced with a
// truncation marker so one oversized entity cannot bloat the audit table.
func buildDiff(before, after map[string]any) (string, error) {
	diff := make(map[string]domain.FieldChange)
	for key, newVal := range after {
		oldVal, existed := before[key]
		if existed && reflect.DeepEqual(oldVal, newVal) {
			continue
		}
		diff[key] = domain.FieldChange{Old: oldVal, New: newVal}
	}
	for key, oldVal := range before {
		if _, ok := after[key]; !ok {
			diff[key] = domain.FieldChange{Old: oldVal, New: nil}
		}
	}

	payload, err := json.Marshal(diff)
	if err != nil {
		return "", fmt.Errorf("marshal audit diff: %w", err)
	}
	if len(payload) > domain.MaxAuditDetailBytes {
		marker, err := json.Marshal(map[string]any{
			"truncated":      true,
			"original_bytes": len(payload),
			"field_count":    len(diff),
		})
		if err != nil {
			return "", fmt.Errorf("marshal truncation marker: %w", err)
		}
		return string(marker), nil
	}
	return string(payload), nil
}
