package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rideops/fleet-backoffice/internal/core/domain"
	"github.com/rideops/fleet-backoffice/internal/core/ports"
	"github.com/rideops/fleet-backoffice/internal/metrics"
	fleet "github.com/rideops/fleet-backoffice/pkg/domain"
)

const defaultTokenTTL = 24 * time.Hour

type tokenClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Tokens issues and validates HS256 bearer tokens. Every token carries a
// unique jti so it can be revoked on logout.
type Tokens struct {
	secret  []byte
	ttl     time.Duration
	revoker ports.TokenRevoker
	now     func() time.Time
	log     zerolog.Logger
}

// NewTokens creates a token issuer. revoker may be nil, in which case logout
// cannot invalidate tokens before they expire.
func NewTokens(secret string, ttl time.Duration, revoker ports.TokenRevoker, log zerolog.Logger) *Tokens {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Tokens{
		secret:  []byte(secret),
		ttl:     ttl,
		revoker: revoker,
		now:     time.Now,
		log:     log,
	}
}

// Issue signs a new token for user.
func (t *Tokens) Issue(user *domain.User) (string, error) {
	now := t.now()
	claims := tokenClaims{
		Username: user.Username,
		Role:     string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken checks the signature, expiry and revocation of raw.
func (t *Tokens) ValidateToken(ctx context.Context, raw string) (*ports.TokenClaims, error) {
	var claims tokenClaims
	tkn, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil || !tkn.Valid {
		return nil, domain.ErrInvalidToken
	}
	if claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, domain.ErrInvalidToken
	}

	if t.revoker != nil && claims.ID != "" {
		revoked, err := t.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			t.log.Warn().Err(err).Msg("revocation check failed, accepting token")
		} else if revoked {
			return nil, domain.ErrTokenRevoked
		}
	}

	return &ports.TokenClaims{
		TokenID:   claims.ID,
		UserID:    claims.Subject,
		Username:  claims.Username,
		Role:      fleet.Role(claims.Role),
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Revoke adds the token to the revocation list until it would have expired.
func (t *Tokens) Revoke(ctx context.Context, claims *ports.TokenClaims) error {
	if t.revoker == nil {
		return errors.New("token revocation is not configured")
	}
	ttl := claims.ExpiresAt.Sub(t.now())
	if ttl <= 0 || claims.TokenID == "" {
		return nil
	}
	if err := t.revoker.Revoke(ctx, claims.TokenID, ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	metrics.TokensRevokedTotal.Inc()
	return nil
}
