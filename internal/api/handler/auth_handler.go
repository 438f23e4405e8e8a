package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rideops/fleet-backoffice/internal/api/middleware"
	"github.com/rideops/fleet-backoffice/internal/core/ports"
	fleet "github.com/rideops/fleet-backoffice/pkg/domain"
)

type AuthHandler struct {
	authService ports.AuthService
}

func NewAuthHandler(authService ports.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type registerRequest struct {
	Username      string `json:"username" validate:"required"`
	Password      string `json:"password" validate:"required,min=6"`
	Email         string `json:"email" validate:"omitempty,email"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Phone         string `json:"phone"`
	Role          string `json:"role" validate:"omitempty,oneof=driver manager admin"`
	LicenseNumber string `json:"licenseNumber" validate:"required_if=Role driver"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type profileRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email" validate:"omitempty,email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

// authResponse is the profile with the token alongside its fields.
type authResponse struct {
	Token string `json:"token,omitempty"`
	fleet.UserProfile
}

type messageResponse struct {
	Message string `json:"message"`
}

// Register creates a new user account.
//
// @Summary      Register a new user
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "User registration details"
// @Success      201   {object}  authResponse
// @Failure      409   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Router       /users/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	token, user, err := h.authService.Register(c.Request().Context(), ports.RegisterInput{
		Username:      req.Username,
		Email:         req.Email,
		Password:      req.Password,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Phone:         req.Phone,
		Role:          fleet.Role(req.Role),
		LicenseNumber: req.LicenseNumber,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, authResponse{Token: token, UserProfile: user.Profile()})
}

// Login authenticates a user and returns a JWT token.
//
// @Summary      Login
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  authResponse
// @Failure      401   {object}  map[string]string
// @Router       /users/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	token, user, err := h.authService.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, authResponse{Token: token, UserProfile: user.Profile()})
}

// Logout revokes the caller's token.
//
// @Summary      Logout
// @Tags         users
// @Security     BearerAuth
// @Success      200  {object}  messageResponse
// @Router       /users/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}
	if err := h.authService.Logout(c.Request().Context(), claims); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "logged out"})
}

// Me returns the caller's profile.
//
// @Summary      Current user
// @Tags         users
// @Security     BearerAuth
// @Success      200  {object}  fleet.UserProfile
// @Router       /users/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	user, err := h.authService.Me(c.Request().Context(), actor.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user.Profile())
}

// VerifyToken reports whether the bearer token is still accepted. It answers
// 200 in both cases; a missing or bad token is {"valid": false}, not a 401.
//
// @Summary      Verify token
// @Tags         users
// @Success      200  {object}  fleet.TokenValidity
// @Router       /users/verify-token [get]
func (h *AuthHandler) VerifyToken(c echo.Context) error {
	raw, ok := middleware.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
	if !ok {
		return c.JSON(http.StatusOK, fleet.TokenValidity{Valid: false})
	}
	_, err := h.authService.ValidateToken(c.Request().Context(), raw)
	return c.JSON(http.StatusOK, fleet.TokenValidity{Valid: err == nil})
}

// UpdateMe changes the caller's profile. When the username changes the
// response carries a replacement token.
//
// @Summary      Update profile
// @Tags         users
// @Security     BearerAuth
// @Param        body  body      profileRequest  true  "Fields to change"
// @Success      200   {object}  authResponse
// @Failure      409   {object}  map[string]string
// @Router       /users/me [put]
func (h *AuthHandler) UpdateMe(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	var req profileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	token, user, err := h.authService.UpdateProfile(c.Request().Context(), actor.UserID, ports.ProfileInput{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, authResponse{Token: token, UserProfile: user.Profile()})
}

// ChangePassword replaces the caller's password.
//
// @Summary      Change password
// @Tags         users
// @Security     BearerAuth
// @Param        body  body      changePasswordRequest  true  "Current and new password"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  map[string]string
// @Router       /users/change-password [post]
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	if err := h.authService.ChangePassword(c.Request().Context(), actor.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "password changed"})
}
