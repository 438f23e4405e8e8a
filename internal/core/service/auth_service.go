package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/rideops/fleet-backoffice/internal/core/domain"
	"github.com/rideops/fleet-backoffice/internal/core/ports"
	"github.com/rideops/fleet-backoffice/internal/metrics"
	fleet "github.com/rideops/fleet-backoffice/pkg/domain"
)

const minPasswordLength = 6

// AuthService implements registration, login and profile management.
type AuthService struct {
	repo   ports.UserRepository
	tokens *Tokens
	log    zerolog.Logger
}

func NewAuthService(repo ports.UserRepository, tokens *Tokens, log zerolog.Logger) *AuthService {
	return &AuthService{repo: repo, tokens: tokens, log: log}
}

func (s *AuthService) ValidateToken(ctx context.Context, raw string) (*ports.TokenClaims, error) {
	return s.tokens.ValidateToken(ctx, raw)
}

func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (string, *domain.User, error) {
	token, user, err := s.register(ctx, in)
	metrics.AuthAttemptsTotal.WithLabelValues("register", attemptResult(err)).Inc()
	return token, user, err
}

func (s *AuthService) register(ctx context.Context, in ports.RegisterInput) (string, *domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" || in.Password == "" {
		return "", nil, fmt.Errorf("%w: username and password are required", domain.ErrInvalidInput)
	}
	if len(in.Password) < minPasswordLength {
		return "", nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLength)
	}
	if in.Role == "" {
		in.Role = fleet.RoleDriver
	}
	if !in.Role.Valid() {
		return "", nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, in.Role)
	}
	if in.Role == fleet.RoleDriver && in.LicenseNumber == "" {
		return "", nil, fmt.Errorf("%w: licenseNumber is required for drivers", domain.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		Username:      in.Username,
		Email:         strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash:  string(hash),
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		Phone:         in.Phone,
		Role:          in.Role,
		LicenseNumber: in.LicenseNumber,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return "", nil, err
	}

	token, err := s.tokens.Issue(created)
	if err != nil {
		return "", nil, err
	}
	s.log.Info().Str("username", created.Username).Str("role", string(created.Role)).Msg("user registered")
	return token, created, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (string, *domain.User, error) {
	token, user, err := s.login(ctx, username, password)
	metrics.AuthAttemptsTotal.WithLabelValues("login", attemptResult(err)).Inc()
	return token, user, err
}

func (s *AuthService) login(ctx context.Context, username, password string) (string, *domain.User, error) {
	if username == "" || password == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByUsername(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		return "", nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, domain.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *AuthService) Logout(ctx context.Context, claims *ports.TokenClaims) error {
	if err := s.tokens.Revoke(ctx, claims); err != nil {
		return err
	}
	s.log.Info().Str("username", claims.Username).Msg("user logged out")
	return nil
}

func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.FindByID(ctx, userID)
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID string, in ports.ProfileInput) (string, *domain.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return "", nil, err
	}

	renamed := false
	if name := strings.TrimSpace(in.Username); name != "" && name != user.Username {
		other, err := s.repo.FindByUsername(ctx, name)
		switch {
		case err == nil && other.ID != user.ID:
			return "", nil, domain.ErrUserExists
		case err != nil && !errors.Is(err, domain.ErrUserNotFound):
			return "", nil, err
		}
		user.Username = name
		renamed = true
	}
	if in.Email != "" {
		user.Email = strings.ToLower(strings.TrimSpace(in.Email))
	}
	if in.FirstName != "" {
		user.FirstName = in.FirstName
	}
	if in.LastName != "" {
		user.LastName = in.LastName
	}
	if in.Phone != "" {
		user.Phone = in.Phone
	}
	user.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, user); err != nil {
		return "", nil, err
	}

	// The username is a token claim; hand out a token that matches.
	var token string
	if renamed {
		if token, err = s.tokens.Issue(user); err != nil {
			return "", nil, err
		}
	}
	return token, user, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	// Not ErrInvalidCredentials: a 401 here would sign the caller out.
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)) != nil {
		return fmt.Errorf("%w: current password is incorrect", domain.ErrInvalidInput)
	}
	if len(next) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.PasswordHash = string(hash)
	user.UpdatedAt = time.Now().UTC()
	return s.repo.Update(ctx, user)
}

func attemptResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrUserExists):
		return "user_exists"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	}
	return "error"
}
