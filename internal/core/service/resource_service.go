package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rideops/fleet-backoffice/internal/core/domain"
	"github.com/rideops/fleet-backoffice/internal/core/ports"
	"github.com/rideops/fleet-backoffice/internal/metrics"
	fleet "github.com/rideops/fleet-backoffice/pkg/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ResourceService implements CRUD for one collection and records every write
// in the audit trail.
type ResourceService[T any, PT fleet.Record[T]] struct {
	name  string
	repo  ports.ResourceRepository[T]
	audit ports.AuditRepository
	now   func() time.Time
	log   zerolog.Logger
}

// NewResourceService creates the service for the collection called name.
// audit may be nil.
func NewResourceService[T any, PT fleet.Record[T]](name string, repo ports.ResourceRepository[T], audit ports.AuditRepository, log zerolog.Logger) *ResourceService[T, PT] {
	return &ResourceService[T, PT]{
		name:  name,
		repo:  repo,
		audit: audit,
		now:   func() time.Time { return time.Now().UTC() },
		log:   log.With().Str("resource", name).Logger(),
	}
}

// List returns one page. Page defaults to 1 and Limit to 20, capped at 100.
func (s *ResourceService[T, PT]) List(ctx context.Context, filter ports.ListFilter) (*fleet.Page[T], error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	switch {
	case filter.Limit < 1:
		filter.Limit = defaultPageSize
	case filter.Limit > maxPageSize:
		filter.Limit = maxPageSize
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.From.After(filter.To) {
		return nil, fmt.Errorf("%w: from is after to", domain.ErrInvalidInput)
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.name, err)
	}
	if items == nil {
		items = []T{}
	}

	return &fleet.Page[T]{
		Data: items,
		Pagination: fleet.Pagination{
			Total:      total,
			Page:       filter.Page,
			Limit:      filter.Limit,
			TotalPages: int((total + int64(filter.Limit) - 1) / int64(filter.Limit)),
		},
	}, nil
}

func (s *ResourceService[T, PT]) Get(ctx context.Context, id fleet.ID) (*T, error) {
	return s.repo.FindByID(ctx, id)
}

// Create stores v with a fresh identifier.
func (s *ResourceService[T, PT]) Create(ctx context.Context, actor ports.Actor, v *T) (*T, error) {
	rec := PT(v)
	rec.SetID("")
	rec.SetCreated(time.Time{})
	rec.Stamp(s.now())

	if err := s.repo.Insert(ctx, v); err != nil {
		s.log.Error().Err(err).Msg("failed to create")
		return nil, err
	}

	s.record(ctx, actor, domain.AuditCreate, rec.EntityID())
	return v, nil
}

// Update applies a change to the stored entity. The identifier and creation
// time cannot be changed by apply.
func (s *ResourceService[T, PT]) Update(ctx context.Context, actor ports.Actor, id fleet.ID, apply func(*T) error) (*T, error) {
	v, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	created := PT(v).Created()
	if err := apply(v); err != nil {
		return nil, err
	}

	rec := PT(v)
	rec.SetID(id)
	rec.SetCreated(created)
	rec.Stamp(s.now())

	if err := s.repo.Replace(ctx, v); err != nil {
		s.log.Error().Err(err).Str("id", id.String()).Msg("failed to update")
		return nil, err
	}

	s.record(ctx, actor, domain.AuditUpdate, id)
	return v, nil
}

func (s *ResourceService[T, PT]) Delete(ctx context.Context, actor ports.Actor, id fleet.ID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, domain.AuditDelete, id)
	return nil
}

// record inserts an audit entry. Failures are logged, never returned.
func (s *ResourceService[T, PT]) record(ctx context.Context, actor ports.Actor, action domain.AuditAction, id fleet.ID) {
	metrics.ResourceWritesTotal.WithLabelValues(s.name, string(action)).Inc()
	if s.audit == nil {
		return
	}

	entry := domain.AuditEntry{
		Resource: s.name,
		EntityID: id.String(),
		Action:   action,
		UserID:   actor.UserID,
		Role:     string(actor.Role),
		At:       s.now(),
	}
	if err := s.audit.Insert(ctx, entry); err != nil {
		s.log.Warn().Err(err).Str("id", id.String()).Msg("failed to insert audit entry")
	}
}
