package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rideops/fleet-backoffice/internal/metrics"
	"github.com/rideops/fleet-backoffice/pkg/domain"
)

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 1 << 20 // 1 MB

	networkErrorMessage = "Network error: unable to reach the server"
)

// Client is the fleet API client. It attaches the persisted bearer token to
// every request and reports every failure to its Notifier exactly once before
// returning the error to the caller.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	notifier   Notifier
	log        zerolog.Logger

	hookMu         sync.RWMutex
	onUnauthorized UnauthorizedHook

	Auth          *AuthService
	Vehicles      *VehicleService
	Drivers       *DriverService
	Schedules     *ScheduleService
	Payments      *PaymentService
	Documents     *DocumentService
	Media         *MediaService
	Notifications *NotificationService
}

// Option configures a Client.
type Option func(*Client)

// WithTokenSource sets where the bearer token is read from before each request.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithNotifier sets the user-facing failure notification surface.
func WithNotifier(n Notifier) Option {
	return func(c *Client) { c.notifier = n }
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default *http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithUnauthorizedHook sets the function called on every 401 response.
func WithUnauthorizedHook(h UnauthorizedHook) Option {
	return func(c *Client) { c.onUnauthorized = h }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New creates a new API client.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		tokens:     StaticToken(""),
		notifier:   NotifierFunc(func(Notification) {}),
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.Auth = &AuthService{c: c}
	c.Vehicles = &VehicleService{resource[domain.Vehicle]{c: c, path: "/vehicles", name: "Vehicles"}}
	c.Drivers = &DriverService{resource[domain.Driver]{c: c, path: "/drivers", name: "Drivers"}}
	c.Schedules = &ScheduleService{resource[domain.Schedule]{c: c, path: "/schedules", name: "Schedules"}}
	c.Payments = &PaymentService{resource[domain.Payment]{c: c, path: "/payments", name: "Payments"}}
	c.Documents = &DocumentService{resource[domain.Document]{c: c, path: "/documents", name: "Documents"}}
	c.Media = &MediaService{c: c}
	c.Notifications = &NotificationService{c: c}
	return c
}

// SetUnauthorizedHook replaces the 401 hook. It exists because the session
// core is built after the client it depends on.
func (c *Client) SetUnauthorizedHook(h UnauthorizedHook) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.onUnauthorized = h
}

// request describes one API call.
type request struct {
	method string
	path   string
	query  url.Values
	body   any              // JSON-encoded when non-nil
	form   *multipartBody   // takes precedence over body
	out    any              // decoded from a 2xx response when non-nil
	raw    *json.RawMessage // receives the raw 2xx body when non-nil
	bearer string           // overrides the token source when non-empty
	status *int             // receives the response status when non-nil
	silent bool             // skips the notifier and the 401 hook
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, request{method: http.MethodGet, path: path, query: query, out: out})
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, request{method: http.MethodPost, path: path, body: body, out: out})
}

func (c *Client) put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, request{method: http.MethodPut, path: path, body: body, out: out})
}

func (c *Client) delete(ctx context.Context, path string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: path})
}

// do sends r. On failure it notifies once, fires the 401 hook if relevant,
// and returns the original error.
func (c *Client) do(ctx context.Context, r request) error {
	status, err := c.send(ctx, r)
	if r.status != nil {
		*r.status = status
	}
	code := strconv.Itoa(status)
	if status == 0 {
		code = "error"
	}
	metrics.ClientRequestsTotal.WithLabelValues(r.method, code).Inc()

	if err == nil {
		return nil
	}

	// A caller abandoning its own request is not a failure worth surfacing.
	if r.silent || errors.Is(err, context.Canceled) {
		return err
	}

	n := Notification{Method: r.method, Path: r.path, StatusCode: status, Message: networkErrorMessage}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		n.Message = httpErr.Message
	}
	c.notifier.Notify(n)

	if status == http.StatusUnauthorized {
		c.hookMu.RLock()
		hook := c.onUnauthorized
		c.hookMu.RUnlock()
		if hook != nil {
			hook(r.method, r.path)
		}
	}
	return err
}

// send performs the round trip and returns the response status (0 when no
// response arrived).
func (c *Client) send(ctx context.Context, r request) (int, error) {
	var (
		reqBody     io.Reader
		contentType string
	)
	switch {
	case r.form != nil:
		reqBody = r.form.buf
		contentType = r.form.contentType
	case r.body != nil:
		data, err := json.Marshal(r.body)
		if err != nil {
			return 0, fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
		contentType = "application/json"
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, reqBody)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	token := r.bearer
	if token == "" {
		token, err = c.tokens.Token(ctx)
		if err != nil {
			c.log.Warn().Err(err).Msg("token source failed, sending unauthenticated")
			token = ""
		}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("method", r.method).Str("path", r.path).Msg("request failed")
		return 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	c.log.Debug().
		Str("method", r.method).
		Str("path", r.path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, readHTTPError(resp)
	}

	if r.raw != nil {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, fmt.Errorf("read response: %w", err)
		}
		*r.raw = data
		return resp.StatusCode, nil
	}

	if r.out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(r.out); err != nil && !errors.Is(err, io.EOF) {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func readHTTPError(resp *http.Response) error {
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if readErr != nil {
		return &HTTPError{StatusCode: resp.StatusCode, Message: fallbackMessage(resp.StatusCode)}
	}
	return &HTTPError{
		StatusCode: resp.StatusCode,
		Message:    extractMessage(body, resp.StatusCode),
		Body:       body,
	}
}

// extractMessage prefers "message", then "error", from a JSON error body.
func extractMessage(body []byte, status int) string {
	var apiErr struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &apiErr) == nil {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		if apiErr.Error != "" {
			return apiErr.Error
		}
	}
	return fallbackMessage(status)
}

func fallbackMessage(status int) string {
	return fmt.Sprintf("Request failed with status %d", status)
}
