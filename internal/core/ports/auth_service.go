package ports

import (
	"context"
	"time"

	"github.com/rideops/fleet-backoffice/internal/core/domain"
	fleet "github.com/rideops/fleet-backoffice/pkg/domain"
)

// TokenClaims is what the API knows about a caller once its bearer token has
// been validated.
type TokenClaims struct {
	TokenID   string // jti, the revocation key
	UserID    string
	Username  string
	Role      fleet.Role
	ExpiresAt time.Time
}

// TokenValidator checks a raw bearer token.
type TokenValidator interface {
	ValidateToken(ctx context.Context, raw string) (*TokenClaims, error)
}

// TokenRevoker keeps the list of tokens that were logged out before expiry.
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RegisterInput carries a sign-up request.
type RegisterInput struct {
	Username      string
	Email         string
	Password      string
	FirstName     string
	LastName      string
	Phone         string
	Role          fleet.Role
	LicenseNumber string
}

// ProfileInput is a partial profile update; empty fields are unchanged.
type ProfileInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Phone     string
}

// AuthService defines the account and token use cases behind /users.
type AuthService interface {
	TokenValidator
	Register(ctx context.Context, in RegisterInput) (string, *domain.User, error)
	Login(ctx context.Context, username, password string) (string, *domain.User, error)
	Logout(ctx context.Context, claims *TokenClaims) error
	Me(ctx context.Context, userID string) (*domain.User, error)
	// UpdateProfile returns a new token when the change affects its claims.
	UpdateProfile(ctx context.Context, userID string, in ProfileInput) (string, *domain.User, error)
	ChangePassword(ctx context.Context, userID, current, next string) error
}
