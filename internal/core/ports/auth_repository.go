package ports

import (
	"context"

	"github.com/rideops/fleet-backoffice/internal/core/domain"
)

// UserRepository defines the interface for user account persistence.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// Update replaces the stored account with user, matched by ID.
	Update(ctx context.Context, user *domain.User) error
}
