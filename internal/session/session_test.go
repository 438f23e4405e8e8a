package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rideops/fleet-backoffice/pkg/client"
	"github.com/rideops/fleet-backoffice/pkg/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeAPI serves the /users endpoints. Tokens are "t-<username>".
type fakeAPI struct {
	mu       sync.Mutex
	calls    map[string]int
	lastAuth string

	valid         bool
	resource401   bool
	verifyEntered chan struct{} // signalled when verify-token is hit, if non-nil
	verifyRelease chan struct{} // verify-token waits on it, if non-nil
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{calls: map[string]int{}, valid: true}
}

func (f *fakeAPI) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeAPI) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func profileJSON(username string) map[string]any {
	return map[string]any{"_id": "u-" + username, "username": username, "role": "driver"}
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls[r.Method+" "+r.URL.Path]++
	f.lastAuth = r.Header.Get("Authorization")
	valid, resource401 := f.valid, f.resource401
	entered, release := f.verifyEntered, f.verifyRelease
	f.mu.Unlock()

	username, authed := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer t-")

	switch r.Method + " " + r.URL.Path {
	case "POST /users/login", "POST /users/register":
		var creds domain.Credentials
		json.NewDecoder(r.Body).Decode(&creds) //nolint:errcheck
		if creds.Password == "wrong" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
		body := profileJSON(creds.Username)
		body["token"] = "t-" + creds.Username
		writeJSON(w, http.StatusOK, body)
	case "GET /users/me":
		if !authed {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			return
		}
		writeJSON(w, http.StatusOK, profileJSON(username))
	case "PUT /users/me":
		var upd domain.ProfileUpdate
		json.NewDecoder(r.Body).Decode(&upd) //nolint:errcheck
		if upd.Email == "taken@example.com" {
			writeJSON(w, http.StatusConflict, map[string]string{"message": "email already in use"})
			return
		}
		body := profileJSON(username)
		body["email"] = upd.Email
		if upd.Username != "" {
			body = profileJSON(upd.Username)
			body["token"] = "t-" + upd.Username
		}
		writeJSON(w, http.StatusOK, body)
	case "GET /users/verify-token":
		if entered != nil {
			entered <- struct{}{}
		}
		if release != nil {
			<-release
		}
		writeJSON(w, http.StatusOK, map[string]bool{"valid": valid && authed})
	case "POST /users/logout":
		w.WriteHeader(http.StatusNoContent)
	case "POST /users/change-password":
		w.WriteHeader(http.StatusNoContent)
	case "GET /vehicles":
		if resource401 {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "token expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": []any{}, "pagination": map[string]int{"page": 1}})
	default:
		http.NotFound(w, r)
	}
}

type signOuts struct {
	mu      sync.Mutex
	reasons []Reason
}

func (s *signOuts) record(r Reason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reasons = append(s.reasons, r)
}

func (s *signOuts) all() []Reason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Reason(nil), s.reasons...)
}

type harness struct {
	api    *fakeAPI
	client *client.Client
	store  *MemoryTokenStore
	clock  *fakeClock
	out    *signOuts
	sess   *Session
}

func newHarness(t *testing.T, token string, tune ...func(*Options)) *harness {
	t.Helper()
	h := &harness{
		api:   newFakeAPI(),
		store: NewMemoryTokenStore(token),
		clock: newFakeClock(),
		out:   &signOuts{},
	}
	srv := httptest.NewServer(h.api)
	t.Cleanup(srv.Close)

	h.client = client.New(srv.URL, client.WithTokenSource(AsTokenSource(h.store)))
	opts := Options{
		Now:         h.clock.Now,
		OnSignedOut: h.out.record,
		Logger:      zerolog.Nop(),
	}
	for _, fn := range tune {
		fn(&opts)
	}
	h.sess = New(h.client.Auth, h.store, opts)
	h.client.SetUnauthorizedHook(h.sess.HandleUnauthorized)
	t.Cleanup(h.sess.Wait)
	return h
}

func (h *harness) login(t *testing.T, username string) {
	t.Helper()
	if _, err := h.sess.Login(context.Background(), domain.Credentials{Username: username, Password: "pw"}); err != nil {
		t.Fatalf("Login(%s): %v", username, err)
	}
}

func (h *harness) token(t *testing.T) string {
	t.Helper()
	tok, err := h.store.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestStart_NoTokenMakesNoCalls(t *testing.T) {
	h := newHarness(t, "")

	if got := h.sess.Start(context.Background()); got != StateAnonymous {
		t.Fatalf("Start() = %v, want anonymous", got)
	}
	if n := h.api.total(); n != 0 {
		t.Errorf("network calls = %d, want 0", n)
	}
	if got := h.out.all(); len(got) != 1 || got[0] != ReasonNoToken {
		t.Errorf("sign-outs = %v, want [no_token]", got)
	}
}

func TestStart_StaleTokenCleared(t *testing.T) {
	h := newHarness(t, "expired")

	if got := h.sess.Start(context.Background()); got != StateAnonymous {
		t.Fatalf("Start() = %v, want anonymous", got)
	}
	h.sess.Wait()
	if tok := h.token(t); tok != "" {
		t.Errorf("token = %q, want cleared", tok)
	}
	if n := h.api.total(); n != 1 {
		t.Errorf("network calls = %d, want exactly 1", n)
	}
	if got := h.out.all(); len(got) != 1 || got[0] != ReasonRestoreFailed {
		t.Errorf("sign-outs = %v, want [restore_failed]", got)
	}
}

func TestStart_RestoresSession(t *testing.T) {
	h := newHarness(t, "t-ana")

	if got := h.sess.Start(context.Background()); got != StateAuthenticated {
		t.Fatalf("Start() = %v, want authenticated", got)
	}
	if u := h.sess.User(); u == nil || u.Username != "ana" {
		t.Errorf("User() = %+v", u)
	}
	if !h.sess.Verify(context.Background()) {
		t.Error("Verify() right after restore = false")
	}
	if n := h.api.count("GET /users/verify-token"); n != 0 {
		t.Errorf("verify calls = %d, want 0", n)
	}
}

func TestLoginThenImmediateVerify(t *testing.T) {
	var calls int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		if r.URL.Path != "/users/login" {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": "t1", "id": "u1", "role": "driver"})
	}))
	defer srv.Close()

	store := NewMemoryTokenStore("")
	c := client.New(srv.URL, client.WithTokenSource(AsTokenSource(store)))
	s := New(c.Auth, store, Options{Logger: zerolog.Nop()})
	s.Start(context.Background())

	u, err := s.Login(context.Background(), domain.Credentials{Username: "a", Password: "b"})
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if u.ID != "u1" || u.Role != domain.RoleDriver {
		t.Errorf("profile = %+v", u)
	}
	if tok, _ := store.Load(context.Background()); tok != "t1" {
		t.Errorf("token = %q, want t1", tok)
	}
	if s.State() != StateAuthenticated {
		t.Errorf("state = %v", s.State())
	}

	if !s.Verify(context.Background()) {
		t.Error("Verify() = false, want still valid")
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("network calls = %d, want 1 (login only)", calls)
	}
}

func TestVerify_Debounce(t *testing.T) {
	h := newHarness(t, "")
	h.login(t, "ana")
	h.clock.Advance(11 * time.Second)

	if !h.sess.Verify(context.Background()) {
		t.Fatal("first Verify() = false")
	}
	h.clock.Advance(5 * time.Second)
	if !h.sess.Verify(context.Background()) {
		t.Fatal("second Verify() = false")
	}
	if n := h.api.count("GET /users/verify-token"); n != 1 {
		t.Errorf("verify calls = %d, want 1", n)
	}

	h.clock.Advance(10 * time.Second)
	h.sess.Verify(context.Background())
	if n := h.api.count("GET /users/verify-token"); n != 2 {
		t.Errorf("verify calls after window = %d, want 2", n)
	}
}

func TestVerify_ConcurrentCallersShareOneCall(t *testing.T) {
	h := newHarness(t, "")
	h.login(t, "ana")
	h.clock.Advance(time.Minute)

	var wg sync.WaitGroup
	results := make([]bool, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = h.sess.Verify(context.Background())
		}(i)
	}
	wg.Wait()

	for i, ok := range results {
		if !ok {
			t.Errorf("caller %d got invalid", i)
		}
	}
	if n := h.api.count("GET /users/verify-token"); n != 1 {
		t.Errorf("verify calls = %d, want 1", n)
	}
}

func TestVerify_InvalidSignsOut(t *testing.T) {
	h := newHarness(t, "")
	h.login(t, "ana")
	h.api.mu.Lock()
	h.api.valid = false
	h.api.mu.Unlock()
	h.clock.Advance(11 * time.Second)

	if h.sess.Verify(context.Background()) {
		t.Fatal("Verify() = true, want invalid")
	}
	h.sess.Wait()
	if h.sess.State() != StateAnonymous {
		t.Errorf("state = %v, want anonymous", h.sess.State())
	}
	if tok := h.token(t); tok != "" {
		t.Errorf("token = %q, want cleared", tok)
	}
	if got := h.out.all(); len(got) != 1 || got[0] != ReasonVerifyFailed {
		t.Errorf("sign-outs = %v", got)
	}
}

func TestVerify_StaleResultDiscardedAfterLogout(t *testing.T) {
	h := newHarness(t, "")
	h.login(t, "ana")
	h.api.mu.Lock()
	h.api.verifyEntered = make(chan struct{}, 1)
	h.api.verifyRelease = make(chan struct{})
	h.api.mu.Unlock()
	h.clock.Advance(11 * time.Second)

	done := make(chan bool)
	go func() { done <- h.sess.Verify(context.Background()) }()

	<-h.api.verifyEntered
	h.sess.Logout(context.Background())
	close(h.api.verifyRelease)

	if <-done {
		t.Error("Verify() = true after logout")
	}
	h.sess.Wait()
	if h.sess.State() != StateAnonymous || h.sess.User() != nil {
		t.Errorf("stale verify re-authenticated: state=%v user=%+v", h.sess.State(), h.sess.User())
	}
	if got := h.out.all(); len(got) != 1 || got[0] != ReasonLogout {
		t.Errorf("sign-outs = %v, want [logout]", got)
	}
}

func TestVerify_StaleResultIgnoredAfterRelogin(t *testing.T) {
	h := newHarness(t, "")
	h.login(t, "ana")
	h.api.mu.Lock()
	h.api.valid = false
	h.api.verifyEntered = make(chan struct{}, 1)
	h.api.verifyRelease = make(chan struct{})
	h.api.mu.Unlock()
	h.clock.Advance(11 * time.Second)

	done := make(chan bool)
	go func() { done <- h.sess.Verify(context.Background()) }()

	<-h.api.verifyEntered
	h.sess.Logout(context.Background())
	h.login(t, "bea")
	h.clock.Advance(time.Second)

	h.api.mu.Lock()
	h.api.valid = true
	h.api.mu.Unlock()
	close(h.api.verifyRelease)
	<-done

	if _, ok := h.sess.cache.Get(KeyTokenValid); ok {
		t.Fatal("answer for the old token was cached for the new sign-in")
	}

	h.clock.Advance(9500 * time.Millisecond)
	if !h.sess.Verify(context.Background()) {
		t.Fatal("Verify() for the new sign-in = false")
	}
	if n := h.api.count("GET /users/verify-token"); n != 2 {
		t.Errorf("verify calls = %d, want 2", n)
	}
	if h.sess.State() != StateAuthenticated || h.sess.User().Username != "bea" {
		t.Errorf("state = %v, user = %+v", h.sess.State(), h.sess.User())
	}
	if tok := h.token(t); tok != "t-bea" {
		t.Errorf("token = %q, want t-bea", tok)
	}
}

func TestVerify_CacheTTLLongerThanInterval(t *testing.T) {
	h := newHarness(t, "", func(o *Options) {
		o.VerifyInterval = 10 * time.Second
		o.CacheTTL = time.Minute
	})
	h.login(t, "ana")

	for i := 1; i <= 3; i++ {
		h.clock.Advance(11 * time.Second)
		if !h.sess.Verify(context.Background()) {
			t.Fatalf("Verify() #%d = false", i)
		}
		if n := h.api.count("GET /users/verify-token"); n != i {
			t.Fatalf("verify calls after #%d = %d, want %d", i, n, i)
		}
	}
}

func TestVerify_NotAuthenticated(t *testing.T) {
	h := newHarness(t, "")
	h.sess.Start(context.Background())

	if h.sess.Verify(context.Background()) {
		t.Error("Verify() while anonymous = true")
	}
	if n := h.api.total(); n != 0 {
		t.Errorf("network calls = %d, want 0", n)
	}
}

func TestLogout_Idempotent(t *testing.T) {
	h := newHarness(t, "")
	h.login(t, "ana")

	h.sess.Logout(context.Background())
	h.sess.Logout(context.Background())
	h.sess.Wait()

	if h.sess.State() != StateAnonymous {
		t.Errorf("state = %v", h.sess.State())
	}
	if h.sess.User() != nil {
		t.Errorf("User() = %+v, want nil", h.sess.User())
	}
	if tok := h.token(t); tok != "" {
		t.Errorf("token = %q", tok)
	}
	if got := h.out.all(); len(got) != 1 || got[0] != ReasonLogout {
		t.Errorf("sign-outs = %v, want [logout]", got)
	}
	if n := h.api.count("POST /users/logout"); n != 1 {
		t.Errorf("remote logouts = %d, want 1", n)
	}
}

func TestLogout_RemoteFailureIsLocalSuccess(t *testing.T) {
	var notified int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "boom"})
	}))
	defer srv.Close()

	store := NewMemoryTokenStore("t-ana")
	c := client.New(srv.URL,
		client.WithTokenSource(AsTokenSource(store)),
		client.WithNotifier(client.NotifierFunc(func(client.Notification) { notified++ })),
	)
	s := New(c.Auth, store, Options{Logger: zerolog.Nop()})

	s.Logout(context.Background())
	s.Wait()

	if s.State() != StateAnonymous {
		t.Errorf("state = %v", s.State())
	}
	if tok, _ := store.Load(context.Background()); tok != "" {
		t.Errorf("token = %q", tok)
	}
	if notified != 0 {
		t.Errorf("remote logout failure notified %d times", notified)
	}
}

func TestLogin_InvalidatesIdentityCache(t *testing.T) {
	h := newHarness(t, "")
	h.login(t, "ana")

	u, err := h.sess.CurrentUser(context.Background())
	if err != nil || u.Username != "ana" {
		t.Fatalf("CurrentUser() = %+v, %v", u, err)
	}

	h.login(t, "bob")
	u, err = h.sess.CurrentUser(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if u.Username != "bob" {
		t.Errorf("CurrentUser() after second login = %q, want bob", u.Username)
	}
}

func TestLogin_FailurePropagatesAndKeepsState(t *testing.T) {
	h := newHarness(t, "")
	h.login(t, "ana")

	_, err := h.sess.Login(context.Background(), domain.Credentials{Username: "ana", Password: "wrong"})
	httpErr, ok := err.(*client.HTTPError)
	if !ok {
		t.Fatalf("err = %T %v, want *client.HTTPError", err, err)
	}
	if httpErr.StatusCode != http.StatusUnauthorized || httpErr.Message != "invalid credentials" {
		t.Errorf("err = %+v", httpErr)
	}
	if !h.sess.Authenticated() {
		t.Error("failed login signed the session out")
	}
	if tok := h.token(t); tok != "t-ana" {
		t.Errorf("token = %q, want t-ana", tok)
	}
}

func TestCurrentUser_CachedWithinTTL(t *testing.T) {
	h := newHarness(t, "")
	h.login(t, "ana")
	h.clock.Advance(11 * time.Second)

	for i := 0; i < 3; i++ {
		if _, err := h.sess.CurrentUser(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if n := h.api.count("GET /users/me"); n != 1 {
		t.Errorf("me calls = %d, want 1", n)
	}

	h.clock.Advance(10 * time.Second)
	h.sess.CurrentUser(context.Background()) //nolint:errcheck
	if n := h.api.count("GET /users/me"); n != 2 {
		t.Errorf("me calls after TTL = %d, want 2", n)
	}
}

func TestUnauthorizedResponse_SignsOutOnce(t *testing.T) {
	h := newHarness(t, "")
	h.login(t, "ana")
	h.api.mu.Lock()
	h.api.resource401 = true
	h.api.mu.Unlock()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.client.Vehicles.List(context.Background(), client.ListParams{}) //nolint:errcheck
		}()
	}
	wg.Wait()
	h.sess.Wait()

	if h.sess.State() != StateAnonymous {
		t.Errorf("state = %v", h.sess.State())
	}
	var unauthorized int
	for _, r := range h.out.all() {
		if r == ReasonUnauthorized {
			unauthorized++
		}
	}
	if unauthorized != 1 {
		t.Errorf("unauthorized sign-outs = %d, want 1", unauthorized)
	}
}

func TestBearerFollowsPersistedToken(t *testing.T) {
	h := newHarness(t, "")
	h.sess.Start(context.Background())

	h.client.Vehicles.List(context.Background(), client.ListParams{}) //nolint:errcheck
	if h.api.lastAuth != "" {
		t.Errorf("Authorization before login = %q", h.api.lastAuth)
	}

	h.login(t, "ana")
	h.client.Vehicles.List(context.Background(), client.ListParams{}) //nolint:errcheck
	if h.api.lastAuth != "Bearer t-ana" {
		t.Errorf("Authorization after login = %q", h.api.lastAuth)
	}
}

func TestUpdateProfile(t *testing.T) {
	h := newHarness(t, "")
	h.login(t, "ana")

	u, err := h.sess.UpdateProfile(context.Background(), domain.ProfileUpdate{Username: "ana2"})
	if err != nil {
		t.Fatalf("UpdateProfile() error: %v", err)
	}
	if u.Username != "ana2" || h.sess.User().Username != "ana2" {
		t.Errorf("profile = %+v", h.sess.User())
	}
	if tok := h.token(t); tok != "t-ana2" {
		t.Errorf("token = %q, want t-ana2", tok)
	}

	before := h.sess.User()
	if _, err := h.sess.UpdateProfile(context.Background(), domain.ProfileUpdate{Email: "taken@example.com"}); err == nil {
		t.Fatal("expected conflict")
	}
	if after := h.sess.User(); *after != *before {
		t.Errorf("failed update changed profile: %+v", after)
	}
}

func TestChangePassword_RequiresSession(t *testing.T) {
	h := newHarness(t, "")
	h.sess.Start(context.Background())

	if err := h.sess.ChangePassword(context.Background(), "a", "b"); err != ErrNotAuthenticated {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
	h.login(t, "ana")
	if err := h.sess.ChangePassword(context.Background(), "a", "b"); err != nil {
		t.Fatalf("ChangePassword() error: %v", err)
	}
}

func TestRunVerifier_StopsOnSignOut(t *testing.T) {
	api := newFakeAPI()
	api.valid = false
	srv := httptest.NewServer(api)
	defer srv.Close()

	store := NewMemoryTokenStore("t-ana")
	c := client.New(srv.URL, client.WithTokenSource(AsTokenSource(store)))
	s := New(c.Auth, store, Options{VerifyInterval: time.Millisecond, Logger: zerolog.Nop()})
	if s.Start(context.Background()) != StateAuthenticated {
		t.Fatal("restore failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		s.RunVerifier(ctx, 5*time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("RunVerifier did not stop after the token was rejected")
	}
	s.Wait()
	if s.State() != StateAnonymous {
		t.Errorf("state = %v", s.State())
	}
}
