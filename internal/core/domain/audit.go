package domain

import "time"

// AuditAction is the kind of write recorded in the audit trail.
type AuditAction string

const (
	AuditCreate AuditAction = "create"
	AuditUpdate AuditAction = "update"
	AuditDelete AuditAction = "delete"
	AuditUpload AuditAction = "upload"
)

// AuditEntry records one write to a fleet resource.
type AuditEntry struct {
	Resource string
	EntityID string
	Action   AuditAction
	UserID   string
	Role     string
	At       time.Time
}
