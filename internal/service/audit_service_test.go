package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"gamecafe-wallet/internal/core/domain"
	"gamecafe-wallet/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAuditRecorder_Record_DiffContainsChangedFields(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockAuditRepository(ctrl)
	rec := NewAuditRecorder(repo, zerolog.Nop())

	actorID := uuid.New()
	caller := domain.CallerContext{
		ActorID:   &actorID,
		RequestID: "req-42",
		IPAddress: "10.0.0.5",
		UserAgent: "admin-ui",
	}

	var captured *domain.AuditLog
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, entry *domain.AuditLog) error {
			captured = entry
			return nil
		})

	rec.Record(context.Background(), caller, domain.AuditActionUpdate, "wallet", "w-1",
		map[string]any{"is_active": true, "balance": "100.00"},
		map[string]any{"is_active": false, "balance": "100.00"})

	require.NotNil(t, captured)
	assert.Equal(t, domain.AuditActionUpdate, captured.Action)
	assert.Equal(t, &actorID, captured.ActorID)
	assert.Equal(t, "wallet", captured.EntityType)
	require.NotNil(t, captured.EntityID)
	assert.Equal(t, "w-1", *captured.EntityID)
	assert.Equal(t, "req-42", captured.RequestID)
	assert.Equal(t, "10.0.0.5", captured.IPAddress)
	assert.Equal(t, "admin-ui", captured.UserAgent)

	var diff map[string]domain.FieldChange
	require.NoError(t, json.Unmarshal([]byte(captured.Details), &diff))
	require.Len(t, diff, 1, "unchanged fields must be dropped")
	assert.Equal(t, true, diff["is_active"].Old)
	assert.Equal(t, false, diff["is_active"].New)
}

func TestAuditRecorder_Record_CreateHasNoBefore(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockAuditRepository(ctrl)
	rec := NewAuditRecorder(repo, zerolog.Nop())

	var captured *domain.AuditLog
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, entry *domain.AuditLog) error {
			captured = entry
			return nil
		})

	rec.Record(context.Background(), domain.SystemCaller(), domain.AuditActionCreate, "wallet_transaction", "t-1",
		nil, map[string]any{"amount": "50.00", "type": "DEPOSIT"})

	require.NotNil(t, captured)
	assert.Nil(t, captured.ActorID)

	var diff map[string]domain.FieldChange
	require.NoError(t, json.Unmarshal([]byte(captured.Details), &diff))
	assert.Len(t, diff, 2)
	assert.Nil(t, diff["amount"].Old)
	assert.Equal(t, "50.00", diff["amount"].New)
}

func TestAuditRecorder_Record_TruncatesOversizedDiff(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockAuditRepository(ctrl)
	rec := NewAuditRecorder(repo, zerolog.Nop())

	var captured *domain.AuditLog
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, entry *domain.AuditLog) error {
			captured = entry
			return nil
		})

	rec.Record(context.Background(), domain.SystemCaller(), domain.AuditActionUpdate, "wallet", "w-2",
		map[string]any{"notes": "old"},
		map[string]any{"notes": strings.Repeat("x", domain.MaxAuditDetailBytes+1)})

	require.NotNil(t, captured)
	assert.LessOrEqual(t, len(captured.Details), domain.MaxAuditDetailBytes)

	var marker map[string]any
	require.NoError(t, json.Unmarshal([]byte(captured.Details), &marker))
	assert.Equal(t, true, marker["truncated"])
	assert.Greater(t, marker["original_bytes"], float64(domain.MaxAuditDetailBytes))
}

func TestAuditRecorder_Record_SwallowsRepoError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockAuditRepository(ctrl)
	rec := NewAuditRecorder(repo, zerolog.Nop())

	repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("audit table is gone"))

	// Must not panic and must not surface the failure.
	rec.Record(context.Background(), domain.SystemCaller(), domain.AuditActionDelete, "wallet", "w-3",
		map[string]any{"is_active": true}, nil)
}

func TestBuildDiff_RemovedField(t *testing.T) {
	details, err := buildDiff(
		map[string]any{"description": "launch promo"},
		map[string]any{},
	)
	require.NoError(t, err)

	var diff map[string]domain.FieldChange
	require.NoError(t, json.Unmarshal([]byte(details), &diff))
	require.Len(t, diff, 1)
	assert.Equal(t, "launch promo", diff["description"].Old)
	assert.Nil(t, diff["description"].New)
}
