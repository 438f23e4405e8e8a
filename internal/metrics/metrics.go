// Package metrics defines and registers every custom Prometheus metric of the
// fleet back-office: the API server, the request layer and the session core.
// It is the single source of truth for metric names, labels, and help strings.
//
// Metrics are registered with the default registry at package init through
// promauto; the API exposes them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fleet"

// ── Client / session metrics ─────────────────────────────────────────────────

// ClientRequestsTotal counts requests issued by the request layer.
// Labels:
//   - method: HTTP method
//   - code: response status code, or "error" for transport failures
var ClientRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "client",
		Name:      "requests_total",
		Help:      "Total number of API requests issued by the client, by method and status code.",
	},
	[]string{"method", "code"},
)

// VerificationsTotal counts Verify outcomes.
// Label:
//   - result: "debounced", "valid", "invalid", "error", "skipped"
var VerificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "verifications_total",
		Help:      "Total number of session verifications, by outcome.",
	},
	[]string{"result"},
)

// SessionTransitionsTotal counts state machine transitions.
// Labels:
//   - to: the new state ("authenticated", "anonymous")
//   - reason: what caused it (e.g. "login", "verify_failed")
var SessionTransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "transitions_total",
		Help:      "Total number of session state transitions.",
	},
	[]string{"to", "reason"},
)

// IdentityCacheTotal counts identity cache lookups.
// Labels:
//   - entry: "currentUser" or "tokenValid"
//   - result: "hit" or "miss"
var IdentityCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "identity_cache_total",
		Help:      "Total number of identity cache lookups, by entry and result.",
	},
	[]string{"entry", "result"},
)

// NotificationsTotal counts user-facing failure notifications.
// Label:
//   - result: "delivered" or "dropped" (queue full)
var NotificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "client",
		Name:      "notifications_total",
		Help:      "Total number of failure notifications, by delivery result.",
	},
	[]string{"result"},
)

// ── API metrics ──────────────────────────────────────────────────────────────

// AuthAttemptsTotal counts login and registration attempts on the API.
// Labels:
//   - op: "login" or "register"
//   - result: "ok" or a short failure reason
var AuthAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "auth_attempts_total",
		Help:      "Total number of login and registration attempts.",
	},
	[]string{"op", "result"},
)

// TokensRevokedTotal counts tokens added to the revocation list.
var TokensRevokedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "tokens_revoked_total",
		Help:      "Total number of tokens revoked by logout.",
	},
)

// ResourceWritesTotal counts writes to fleet resources.
// Labels:
//   - resource: collection name (e.g. "vehicles")
//   - op: "create", "update", "delete"
var ResourceWritesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "resource_writes_total",
		Help:      "Total number of resource writes, by resource and operation.",
	},
	[]string{"resource", "op"},
)

// UploadBytes measures the size of uploaded files.
// Label:
//   - kind: "media" or "document"
var UploadBytes = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "upload_bytes",
		Help:      "Size of uploaded files in bytes.",
		Buckets:   prometheus.ExponentialBuckets(1<<10, 4, 8), // 1KiB .. 16MiB
	},
	[]string{"kind"},
)

// HTTPRequestsTotal counts requests served by the API.
// Labels:
//   - method: HTTP method
//   - route: matched route pattern (e.g. "/vehicles/:id")
//   - code: response status code
var HTTPRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests served, by method, route and status code.",
	},
	[]string{"method", "route", "code"},
)

// HTTPRequestDuration measures request latency.
// Labels:
//   - method: HTTP method
//   - route: matched route pattern
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route"},
)
