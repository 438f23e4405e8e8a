package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rideops/fleet-backoffice/internal/core/ports"
	fleet "github.com/rideops/fleet-backoffice/pkg/domain"
)

// NotificationHandler serves the caller's inbox.
type NotificationHandler struct {
	service ports.NotificationService
}

func NewNotificationHandler(service ports.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

var notificationFields = QueryFields{"read": "read", "type": "type"}

type markAllResponse struct {
	Updated int64 `json:"updated"`
}

func (h *NotificationHandler) List(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	filter, err := parseListFilter(c, notificationFields)
	if err != nil {
		return err
	}
	page, err := h.service.List(c.Request().Context(), actor.UserID, filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

// Create sends a notification to any user. Restricted to managers by the router.
func (h *NotificationHandler) Create(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	var n fleet.Notification
	if err := c.Bind(&n); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	n.Read = false
	if err := c.Validate(&n); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	created, err := h.service.Create(c.Request().Context(), actor, &n)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *NotificationHandler) MarkRead(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	n, err := h.service.MarkRead(c.Request().Context(), actor.UserID, fleet.ID(c.Param("id")))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	updated, err := h.service.MarkAllRead(c.Request().Context(), actor.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, markAllResponse{Updated: updated})
}
