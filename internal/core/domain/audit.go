package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the kind of persisted change being audited.
type AuditAction string

const (
	AuditActionCreate AuditAction = "CREATE"
	AuditActionUpdate AuditAction = "UPDATE"
	AuditActionDelete AuditAction = "DELETE"
)

// MaxAuditDetailBytes caps the serialized size of an audit diff payload.
const MaxAuditDetailBytes = 8 * 1024

// FieldChange captures one field's value before and after a persisted change.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// AuditLog records a single persisted change: who did it, which entity, and a
// JSON diff of the modified fields. ActorID is nil for system-initiated
// changes. Rows are immutable and live independently of the entities they
// describe.
type AuditLog struct {
	ID         uuid.UUID   `json:"id"`
	Action     AuditAction `json:"action"`
	ActorID    *uuid.UUID  `json:"actor_id,omitempty"`
	EntityType string      `json:"entity_type"`
	EntityID   *string     `json:"entity_id,omitempty"`
	Details    string      `json:"details"` // JSON map of field -> FieldChange
	RequestID  string      `json:"request_id"`
	IPAddress  string      `json:"ip_address"`
	UserAgent  string      `json:"user_agent"`
	CreatedAt  time.Time   `json:"created_at"`
}
