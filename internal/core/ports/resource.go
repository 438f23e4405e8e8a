package ports

import (
	"context"
	"time"

	"github.com/rideops/fleet-backoffice/internal/core/domain"
	fleet "github.com/rideops/fleet-backoffice/pkg/domain"
)

// ListFilter carries the query parameters of a list endpoint, already mapped
// to storage field names by the transport layer.
type ListFilter struct {
	Equals map[string]any // field = value
	Search string         // case-insensitive partial match on the resource's search fields
	From   time.Time      // optional: date field >= From
	To     time.Time      // optional: date field <= To
	Page   int            // 1-based
	Limit  int            // max rows per page (capped by the service)
}

// ResourceRepository is the persistence contract shared by every fleet
// collection.
type ResourceRepository[T any] interface {
	Insert(ctx context.Context, v *T) error
	FindByID(ctx context.Context, id fleet.ID) (*T, error)
	List(ctx context.Context, filter ListFilter) ([]T, int64, error)
	Replace(ctx context.Context, v *T) error
	Delete(ctx context.Context, id fleet.ID) error
	// SetWhere sets fields on every document matching equals and returns the
	// number modified.
	SetWhere(ctx context.Context, equals map[string]any, fields map[string]any) (int64, error)
}

// AuditRepository persists the audit trail.
type AuditRepository interface {
	Insert(ctx context.Context, entry domain.AuditEntry) error
}

// Actor identifies the caller of a write.
type Actor struct {
	UserID string
	Role   fleet.Role
}

// ResourceService defines the CRUD use cases of one collection.
type ResourceService[T any] interface {
	List(ctx context.Context, filter ListFilter) (*fleet.Page[T], error)
	Get(ctx context.Context, id fleet.ID) (*T, error)
	Create(ctx context.Context, actor Actor, v *T) (*T, error)
	// Update loads the entity, lets apply modify it, and stores the result.
	Update(ctx context.Context, actor Actor, id fleet.ID, apply func(*T) error) (*T, error)
	Delete(ctx context.Context, actor Actor, id fleet.ID) error
}
