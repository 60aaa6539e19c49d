package domain

import "context"

// Service records and lists audit entries. AuditLog never fails the calling
// business operation; persistence errors bubble up for the caller to log.
type Service interface {
	AuditLog(ctx context.Context, actorType string, actorID string, action string, targetType string, targetID *string, metadata map[string]any) error
	List(ctx context.Context, filter ListFilter) ([]*AuditLog, error)
}
