package api

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rideops/fleet-backoffice/internal/api/handler"
	"github.com/rideops/fleet-backoffice/internal/api/middleware"
	"github.com/rideops/fleet-backoffice/internal/core/ports"
	"github.com/rideops/fleet-backoffice/internal/metrics"
	fleet "github.com/rideops/fleet-backoffice/pkg/domain"
)

// Deps are the services the router exposes.
type Deps struct {
	Log           zerolog.Logger
	Auth          ports.AuthService
	Vehicles      ports.ResourceService[fleet.Vehicle]
	Drivers       ports.ResourceService[fleet.Driver]
	Schedules     ports.ResourceService[fleet.Schedule]
	Payments      ports.ResourceService[fleet.Payment]
	Documents     ports.ResourceService[fleet.Document]
	Media         ports.ResourceService[fleet.Media]
	Notifications ports.NotificationService
	Uploads       ports.UploadService
	// UploadDir is served under /uploads when non-empty.
	UploadDir string
	// Health lists the dependencies checked by /health/ready.
	Health map[string]handler.Pinger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(requestMetrics())
	e.Use(echomiddleware.BodyLimit("12M"))

	auth := middleware.Auth(d.Auth)
	writes := middleware.RBAC(fleet.RoleManager, fleet.RoleAdmin)

	// --- Users ---
	authHandler := handler.NewAuthHandler(d.Auth)
	users := e.Group("/users")
	users.POST("/register", authHandler.Register)
	users.POST("/login", authHandler.Login)
	users.GET("/verify-token", authHandler.VerifyToken)
	users.POST("/logout", authHandler.Logout, auth)
	users.GET("/me", authHandler.Me, auth)
	users.PUT("/me", authHandler.UpdateMe, auth)
	users.POST("/change-password", authHandler.ChangePassword, auth)

	// --- Fleet resources ---
	uploads := handler.NewUploadHandler(d.Uploads)

	vehicles := e.Group("/vehicles", auth)
	handler.NewResourceHandler(d.Vehicles, handler.QueryFields{
		"status": "status",
		"type":   "type",
		"driver": "assigned_driver",
	}).Register(vehicles, writes)
	vehicles.POST("/:id/image", uploads.VehicleImage, writes)

	drivers := e.Group("/drivers", auth)
	handler.NewResourceHandler(d.Drivers, handler.QueryFields{
		"status": "status",
		"user":   "user_id",
	}).Register(drivers, writes)
	drivers.POST("/:id/photo", uploads.DriverPhoto, writes)

	handler.NewResourceHandler(d.Schedules, handler.QueryFields{
		"status":  "status",
		"shift":   "shift",
		"driver":  "driver_id",
		"vehicle": "vehicle_id",
	}).Register(e.Group("/schedules", auth), writes)

	handler.NewResourceHandler(d.Payments, handler.QueryFields{
		"status":   "status",
		"method":   "method",
		"driver":   "driver_id",
		"schedule": "schedule_id",
	}).Register(e.Group("/payments", auth), writes)

	documents := e.Group("/documents", auth)
	documents.POST("/upload", uploads.Document, writes)
	handler.NewResourceHandler(d.Documents, handler.QueryFields{
		"status":    "status",
		"type":      "type",
		"ownerType": "owner_type",
		"owner":     "owner_id",
	}).Register(documents, writes)

	media := e.Group("/media", auth)
	mediaHandler := handler.NewResourceHandler(d.Media, handler.QueryFields{"uploadedBy": "uploaded_by"})
	media.POST("/upload", uploads.Media)
	media.GET("", mediaHandler.List)
	media.GET("/:id", mediaHandler.Get)
	media.DELETE("/:id", mediaHandler.Delete, writes)

	notifications := handler.NewNotificationHandler(d.Notifications)
	inbox := e.Group("/notifications", auth)
	inbox.GET("", notifications.List)
	inbox.POST("", notifications.Create, writes)
	inbox.PUT("/read-all", notifications.MarkAllRead)
	inbox.PUT("/:id/read", notifications.MarkRead)

	if d.UploadDir != "" {
		e.Static("/uploads", d.UploadDir)
	}

	// --- Health probes and metrics (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(d.Health)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}

// requestMetrics records fleet_api_http_requests_total and the latency
// histogram. Errors are rendered here so the recorded status is final.
func requestMetrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			method := c.Request().Method
			metrics.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Response().Status)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
