package postgres

import (
	"context"
	"fmt"
	"strings"

	"gamecafe-wallet/internal/core/domain"
	"gamecafe-wallet/internal/core/ports"
)

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	pool Pool
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(pool Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// Create inserts an audit log row.
func (r *AuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	query := `INSERT INTO audit_logs (id, action, user_id, entity_type, entity_id, details, request_id, ip_address, user_agent, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		entry.ID, entry.Action, entry.ActorID, entry.EntityType, entry.EntityID,
		entry.Details, entry.RequestID, entry.IPAddress, entry.UserAgent, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// List fetches audit entries with filtering and pagination, newest first.
func (r *AuditRepo) List(ctx context.Context, params ports.AuditListParams) ([]domain.AuditLog, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if params.EntityType != "" {
		conditions = append(conditions, fmt.Sprintf("entity_type = $%d", argIdx))
		args = append(args, params.EntityType)
		argIdx++
	}
	if params.EntityID != nil {
		conditions = append(conditions, fmt.Sprintf("entity_id = $%d", argIdx))
		args = append(args, *params.EntityID)
		argIdx++
	}
	if params.ActorID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIdx))
		args = append(args, *params.ActorID)
		argIdx++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("timestamp >= $%d", argIdx))
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("timestamp <= $%d", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := strings.TrimSpace(fmt.Sprintf("SELECT COUNT(*) FROM audit_logs %s", where))
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := strings.TrimSpace(fmt.Sprintf(`SELECT id, action, user_id, entity_type, entity_id, details, request_id, ip_address, user_agent, timestamp
		FROM audit_logs %s ORDER BY timestamp DESC LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1))
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditLog
	for rows.Next() {
		e := domain.AuditLog{}
		err := rows.Scan(
			&e.ID, &e.Action, &e.ActorID, &e.EntityType, &e.EntityID,
			&e.Details, &e.RequestID, &e.IPAddress, &e.UserAgent, &e.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan audit row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate audit rows: %w", err)
	}
	return entries, total, nil
}
