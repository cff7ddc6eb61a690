package postgres

import (
	"context"
	"testing"
	"time"

	"gamecafe-wallet/internal/core/domain"
	"gamecafe-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuditLog() *domain.AuditLog {
	actor := uuid.New()
	entityID := uuid.NewString()
	return &domain.AuditLog{
		ID:         uuid.New(),
		Action:     domain.AuditActionUpdate,
		ActorID:    &actor,
		EntityType: "Wallet",
		EntityID:   &entityID,
		Details:    `{"balance":{"old":"100.00","new":"150.00"}}`,
		RequestID:  "req-abc",
		IPAddress:  "10.0.0.7",
		UserAgent:  "admin-console/2.1",
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
}

func auditColumns() []string {
	return []string{"id", "action", "user_id", "entity_type", "entity_id", "details", "request_id", "ip_address", "user_agent", "timestamp"}
}

func TestAuditRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepo(mock)
	entry := newTestAuditLog()

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(entry.ID, entry.Action, entry.ActorID, entry.EntityType, entry.EntityID,
			entry.Details, entry.RequestID, entry.IPAddress, entry.UserAgent, entry.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), entry)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_List_ByEntity(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepo(mock)
	entry := newTestAuditLog()

	params := ports.AuditListParams{
		EntityType: "Wallet",
		EntityID:   entry.EntityID,
		Page:       1,
		PageSize:   50,
	}

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("Wallet", *entry.EntityID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT .+ FROM audit_logs .+ ORDER BY timestamp DESC").
		WithArgs("Wallet", *entry.EntityID, 50, 0).
		WillReturnRows(pgxmock.NewRows(auditColumns()).AddRow(
			entry.ID, entry.Action, entry.ActorID, entry.EntityType, entry.EntityID,
			entry.Details, entry.RequestID, entry.IPAddress, entry.UserAgent, entry.CreatedAt,
		))

	entries, total, err := repo.List(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	assert.Equal(t, entry.ID, entries[0].ID)
	assert.Equal(t, entry.Details, entries[0].Details)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_List_NoFilters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepo(mock)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery("SELECT .+ FROM audit_logs").
		WithArgs(25, 0).
		WillReturnRows(pgxmock.NewRows(auditColumns()))

	entries, total, err := repo.List(context.Background(), ports.AuditListParams{Page: 1, PageSize: 25})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, entries)
}
