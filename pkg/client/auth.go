package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rideops/fleet-backoffice/pkg/domain"
)

// AuthResult is the response of login, register and profile updates: the
// profile plus a bearer token. Token is empty when the server did not issue
// a new one.
type AuthResult struct {
	Token string
	User  domain.UserProfile
}

// AuthService talks to /users.
type AuthService struct {
	c *Client
}

// Login exchanges credentials for a token and the user's profile. A failed
// response is returned as the bare *HTTPError so the caller sees the server's
// answer as-is.
func (s *AuthService) Login(ctx context.Context, creds domain.Credentials) (*AuthResult, error) {
	return s.authCall(ctx, http.MethodPost, "/users/login", creds)
}

// Register creates an account and signs it in. Errors are returned like
// Login's.
func (s *AuthService) Register(ctx context.Context, reg domain.Registration) (*AuthResult, error) {
	return s.authCall(ctx, http.MethodPost, "/users/register", reg)
}

// Logout revokes token on the server. The token is passed explicitly since
// callers clear local state before the request goes out. Failures are
// returned but never notified, and a 401 does not reach the hook.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	err := s.c.do(ctx, request{method: http.MethodPost, path: "/users/logout", bearer: token, silent: true})
	if err != nil {
		return fmt.Errorf("client.Auth.Logout: %w", err)
	}
	return nil
}

// Me returns the profile of the token's owner.
func (s *AuthService) Me(ctx context.Context) (*domain.UserProfile, error) {
	var u domain.UserProfile
	if err := s.c.get(ctx, "/users/me", nil, &u); err != nil {
		return nil, fmt.Errorf("client.Auth.Me: %w", err)
	}
	return &u, nil
}

// VerifyToken reports whether the server still accepts the current token.
func (s *AuthService) VerifyToken(ctx context.Context) (bool, error) {
	var v domain.TokenValidity
	if err := s.c.get(ctx, "/users/verify-token", nil, &v); err != nil {
		return false, fmt.Errorf("client.Auth.VerifyToken: %w", err)
	}
	return v.Valid, nil
}

// UpdateMe applies a profile update.
func (s *AuthService) UpdateMe(ctx context.Context, upd domain.ProfileUpdate) (*AuthResult, error) {
	res, err := s.authCall(ctx, http.MethodPut, "/users/me", upd)
	if err != nil {
		return nil, fmt.Errorf("client.Auth.UpdateMe: %w", err)
	}
	return res, nil
}

// ChangePassword replaces the caller's password.
func (s *AuthService) ChangePassword(ctx context.Context, pc domain.PasswordChange) error {
	if err := s.c.post(ctx, "/users/change-password", pc, nil); err != nil {
		return fmt.Errorf("client.Auth.ChangePassword: %w", err)
	}
	return nil
}

// authCall decodes a flat {token, ...profile} body. The profile may also be
// nested under "user".
func (s *AuthService) authCall(ctx context.Context, method, path string, body any) (*AuthResult, error) {
	var raw json.RawMessage
	if err := s.c.do(ctx, request{method: method, path: path, body: body, raw: &raw}); err != nil {
		return nil, err
	}

	var envelope struct {
		Token string          `json:"token"`
		User  json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	profile := raw
	if len(envelope.User) > 0 && string(envelope.User) != "null" {
		profile = envelope.User
	}
	res := &AuthResult{Token: envelope.Token}
	if err := json.Unmarshal(profile, &res.User); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return res, nil
}
