package models

import "time"

// AuditEntry is an immutable audit log record.
type AuditEntry struct {
	ID string
	// ActorID is empty for system actions.
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	// TargetName is denormalised at read time for display.
	TargetName string
	Detail     string
	CreatedAt  time.Time
}
