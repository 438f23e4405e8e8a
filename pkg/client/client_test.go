package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rideops/fleet-backoffice/pkg/domain"
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []Notification
}

func (r *recordingNotifier) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, n)
}

func (r *recordingNotifier) all() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.msgs...)
}

func TestBearerHeader_SetOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Values("Authorization"); len(got) != 1 || got[0] != "Bearer tok-1" {
			t.Errorf("Authorization = %v, want exactly [Bearer tok-1]", got)
		}
		json.NewEncoder(w).Encode(map[string]any{"_id": "u1", "username": "ana", "role": "admin"}) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(srv.URL, WithTokenSource(StaticToken("tok-1")))
	me, err := c.Auth.Me(context.Background())
	if err != nil {
		t.Fatalf("Me() error: %v", err)
	}
	if me.ID != "u1" || me.Role != domain.RoleAdmin {
		t.Errorf("Me() = %+v", me)
	}
}

func TestBearerHeader_AbsentWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["Authorization"]; ok {
			t.Errorf("Authorization header sent without a token: %q", r.Header.Get("Authorization"))
		}
		json.NewEncoder(w).Encode(domain.Page[domain.Vehicle]{}) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(srv.URL)
	if _, err := c.Vehicles.List(context.Background(), ListParams{}); err != nil {
		t.Fatalf("List() error: %v", err)
	}
}

func TestTokenReadPerRequest(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(domain.TokenValidity{Valid: true}) //nolint:errcheck
	}))
	defer srv.Close()

	token := "first"
	c := New(srv.URL, WithTokenSource(TokenSourceFunc(func(context.Context) (string, error) {
		return token, nil
	})))
	if _, err := c.Auth.VerifyToken(context.Background()); err != nil {
		t.Fatal(err)
	}
	token = "second"
	if _, err := c.Auth.VerifyToken(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 2 || seen[0] != "Bearer first" || seen[1] != "Bearer second" {
		t.Errorf("headers = %v", seen)
	}
}

func TestFailureMessages(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"message wins", `{"message":"Vehicle not found","error":"not_found"}`, "Vehicle not found"},
		{"error field", `{"error":"invalid credentials"}`, "invalid credentials"},
		{"no message", `{"detail":"x"}`, "Request failed with status 404"},
		{"not json", `<html>oops</html>`, "Request failed with status 404"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(tt.body)) //nolint:errcheck
			}))
			defer srv.Close()

			n := &recordingNotifier{}
			c := New(srv.URL, WithNotifier(n))
			_, err := c.Vehicles.Get(context.Background(), "v1")
			if err == nil {
				t.Fatal("expected error")
			}
			if !IsStatus(err, http.StatusNotFound) {
				t.Errorf("IsStatus(err, 404) = false, err = %v", err)
			}
			var httpErr *HTTPError
			if !errors.As(err, &httpErr) || httpErr.Message != tt.want {
				t.Errorf("HTTPError = %+v, want message %q", httpErr, tt.want)
			}

			got := n.all()
			if len(got) != 1 {
				t.Fatalf("notifications = %d, want 1", len(got))
			}
			if got[0].Message != tt.want || got[0].StatusCode != http.StatusNotFound {
				t.Errorf("notification = %+v", got[0])
			}
		})
	}
}

func TestNetworkFailure_NotifiesOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	n := &recordingNotifier{}
	c := New(url, WithNotifier(n), WithTimeout(2*time.Second))
	_, err := c.Drivers.List(context.Background(), ListParams{})
	if err == nil {
		t.Fatal("expected error")
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		t.Errorf("transport failure returned HTTPError %v", httpErr)
	}

	got := n.all()
	if len(got) != 1 || got[0].Message != networkErrorMessage || got[0].StatusCode != 0 {
		t.Errorf("notifications = %+v", got)
	}
}

func TestCancelledContext_DoesNotNotify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(domain.Page[domain.Driver]{}) //nolint:errcheck
	}))
	defer srv.Close()

	n := &recordingNotifier{}
	c := New(srv.URL, WithNotifier(n))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Drivers.List(ctx, ListParams{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if got := n.all(); len(got) != 0 {
		t.Errorf("notifications = %+v, want none", got)
	}
}

func TestUnauthorizedHook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "token expired"}) //nolint:errcheck
	}))
	defer srv.Close()

	var calls []string
	c := New(srv.URL, WithUnauthorizedHook(func(method, path string) {
		calls = append(calls, method+" "+path)
	}))
	_, err := c.Schedules.List(context.Background(), ListParams{})
	if !IsUnauthorized(err) {
		t.Fatalf("IsUnauthorized(%v) = false", err)
	}
	if len(calls) != 1 || calls[0] != "GET /schedules" {
		t.Errorf("hook calls = %v", calls)
	}

	c.SetUnauthorizedHook(nil)
	_, _ = c.Schedules.List(context.Background(), ListParams{})
	if len(calls) != 1 {
		t.Errorf("hook called after removal: %v", calls)
	}
}

func TestListParams_Query(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		want := map[string]string{
			"page": "2", "limit": "25", "status": "overdue", "search": "ana",
			"from": "2026-03-01T00:00:00Z", "driver": "d1",
		}
		for k, v := range want {
			if q.Get(k) != v {
				t.Errorf("query %s = %q, want %q", k, q.Get(k), v)
			}
		}
		if q.Has("to") {
			t.Error("zero To must not be sent")
		}
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"data":       []map[string]any{{"id": "p1", "driver": map[string]any{"_id": "d1", "firstName": "Ana"}, "amount": 50}},
			"pagination": map[string]any{"total": 26, "page": 2, "limit": 25, "totalPages": 2},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	page, err := c.Payments.List(context.Background(), ListParams{
		Page: 2, Limit: 25, Status: "overdue", Search: "ana", From: from,
		Filters: map[string]string{"driver": "d1"},
	})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(page.Data) != 1 || page.Data[0].ID != "p1" || page.Data[0].DriverID != "d1" {
		t.Errorf("data = %+v", page.Data)
	}
	if page.Pagination.TotalPages != 2 {
		t.Errorf("pagination = %+v", page.Pagination)
	}
}

func TestCRUDPaths(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"_id": "v1", "plateNumber": "ABC-123"}) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()
	created, err := c.Vehicles.Create(ctx, &domain.Vehicle{PlateNumber: "ABC-123"})
	if err != nil {
		t.Fatal(err)
	}
	if created.ID != "v1" {
		t.Errorf("created.ID = %q", created.ID)
	}
	if _, err := c.Vehicles.Update(ctx, "v1", map[string]any{"status": "maintenance"}); err != nil {
		t.Fatal(err)
	}
	if err := c.Vehicles.Delete(ctx, "v1"); err != nil {
		t.Fatal(err)
	}

	want := []string{"POST /vehicles", "PUT /vehicles/v1", "DELETE /vehicles/v1"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("requests = %v, want %v", got, want)
	}
}

func TestAuthLogin_FlatAndNested(t *testing.T) {
	bodies := map[string]string{
		"flat":   `{"token":"t1","_id":"u1","username":"ana","role":"manager"}`,
		"nested": `{"token":"t1","user":{"id":"u1","username":"ana","role":"manager"}}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/users/login" || r.Method != http.MethodPost {
					http.NotFound(w, r)
					return
				}
				var creds domain.Credentials
				if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Username != "ana" {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				w.Write([]byte(body)) //nolint:errcheck
			}))
			defer srv.Close()

			c := New(srv.URL)
			res, err := c.Auth.Login(context.Background(), domain.Credentials{Username: "ana", Password: "pw"})
			if err != nil {
				t.Fatalf("Login() error: %v", err)
			}
			if res.Token != "t1" || res.User.ID != "u1" || res.User.Role != domain.RoleManager {
				t.Errorf("Login() = %+v", res)
			}
		})
	}
}

func TestAuthLogout_UsesExplicitToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer captured" {
			t.Errorf("Authorization = %q, want Bearer captured", got)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, WithTokenSource(StaticToken("")))
	if err := c.Auth.Logout(context.Background(), "captured"); err != nil {
		t.Fatalf("Logout() error: %v", err)
	}
}

func TestNotifications(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Method+" "+r.URL.RequestURI())
		switch r.URL.Path {
		case "/notifications":
			w.Write([]byte(`{"data":[{"_id":"n1","title":"t","message":"m"}],"pagination":{"total":1}}`)) //nolint:errcheck
		case "/notifications/n1/read":
			w.Write([]byte(`{"_id":"n1","read":true}`)) //nolint:errcheck
		case "/notifications/read-all":
			w.Write([]byte(`{"updated":3}`)) //nolint:errcheck
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	page, err := c.Notifications.List(ctx, ListParams{Filters: map[string]string{"read": "false"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Data) != 1 || page.Data[0].ID != "n1" {
		t.Errorf("List() = %+v", page.Data)
	}
	n, err := c.Notifications.MarkRead(ctx, "n1")
	if err != nil {
		t.Fatal(err)
	}
	if !n.Read {
		t.Error("MarkRead() returned an unread notification")
	}
	updated, err := c.Notifications.MarkAllRead(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if updated != 3 {
		t.Errorf("MarkAllRead() = %d, want 3", updated)
	}

	want := []string{"GET /notifications?read=false", "PUT /notifications/n1/read", "PUT /notifications/read-all"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("requests = %v, want %v", got, want)
	}
}
