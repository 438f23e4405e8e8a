package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rideops/fleet-backoffice/internal/core/ports"
	fleet "github.com/rideops/fleet-backoffice/pkg/domain"
)

const maxBodyBytes = 1 << 20

// QueryFields maps list query parameters to storage field names.
type QueryFields map[string]string

// ResourceHandler serves the CRUD routes of one fleet collection.
type ResourceHandler[T any] struct {
	service ports.ResourceService[T]
	fields  QueryFields
}

func NewResourceHandler[T any](service ports.ResourceService[T], fields QueryFields) *ResourceHandler[T] {
	return &ResourceHandler[T]{service: service, fields: fields}
}

// Register mounts the routes on g. Writes go through the write middleware.
func (h *ResourceHandler[T]) Register(g *echo.Group, write ...echo.MiddlewareFunc) {
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("", h.Create, write...)
	g.PUT("/:id", h.Update, write...)
	g.DELETE("/:id", h.Delete, write...)
}

// List returns one page: {data, pagination}.
func (h *ResourceHandler[T]) List(c echo.Context) error {
	filter, err := parseListFilter(c, h.fields)
	if err != nil {
		return err
	}
	page, err := h.service.List(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

func (h *ResourceHandler[T]) Get(c echo.Context) error {
	v, err := h.service.Get(c.Request().Context(), fleet.ID(c.Param("id")))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *ResourceHandler[T]) Create(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	v := new(T)
	if err := c.Bind(v); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(v); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	created, err := h.service.Create(c.Request().Context(), actor, v)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

// Update merges the JSON body into the stored entity and validates the
// result, so clients may send partial documents.
func (h *ResourceHandler[T]) Update(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil || !json.Valid(body) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}

	updated, err := h.service.Update(c.Request().Context(), actor, fleet.ID(c.Param("id")), func(v *T) error {
		if err := json.Unmarshal(body, v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
		}
		if err := c.Validate(v); err != nil {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		return nil
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *ResourceHandler[T]) Delete(c echo.Context) error {
	actor, err := ctxActor(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.Request().Context(), actor, fleet.ID(c.Param("id"))); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// parseListFilter reads page, limit, search, from, to and the mapped
// equality filters. "true" and "false" become booleans.
func parseListFilter(c echo.Context, fields QueryFields) (ports.ListFilter, error) {
	var filter ports.ListFilter
	var err error

	if filter.Page, err = queryInt(c, "page"); err != nil {
		return filter, err
	}
	if filter.Limit, err = queryInt(c, "limit"); err != nil {
		return filter, err
	}
	filter.Search = strings.TrimSpace(c.QueryParam("search"))
	if filter.From, err = queryTime(c, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = queryTime(c, "to"); err != nil {
		return filter, err
	}

	for param, field := range fields {
		raw := c.QueryParam(param)
		if raw == "" {
			continue
		}
		if filter.Equals == nil {
			filter.Equals = make(map[string]any, len(fields))
		}
		switch raw {
		case "true":
			filter.Equals[field] = true
		case "false":
			filter.Equals[field] = false
		default:
			filter.Equals[field] = raw
		}
	}
	return filter, nil
}

func queryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be a non-negative integer")
	}
	return n, nil
}

// queryTime accepts RFC 3339 timestamps and plain dates.
func queryTime(c echo.Context, name string) (time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, name+" must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
}
