// Package session is the client-side record of who is signed in. It owns the
// persisted token, re-verifies it against the API, and funnels every way of
// losing authentication (logout, failed verification, 401 responses) into
// one sign-out sequence.
package session

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/rideops/fleet-backoffice/internal/metrics"
	"github.com/rideops/fleet-backoffice/pkg/client"
	"github.com/rideops/fleet-backoffice/pkg/domain"
)

const (
	DefaultVerifyInterval = 10 * time.Second
	DefaultCacheTTL       = 10 * time.Second

	remoteLogoutTimeout = 10 * time.Second
)

// ErrNotAuthenticated is returned by operations that need a signed-in user.
var ErrNotAuthenticated = errors.New("session: not authenticated")

// State is the session lifecycle state.
type State int

const (
	StateInitializing State = iota
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	}
	return "unknown"
}

// Reason says why a session became anonymous.
type Reason string

const (
	ReasonNoToken       Reason = "no_token"
	ReasonRestoreFailed Reason = "restore_failed"
	ReasonLogout        Reason = "logout"
	ReasonVerifyFailed  Reason = "verify_failed"
	ReasonUnauthorized  Reason = "unauthorized"
)

// Authenticator is the subset of the API the session depends on.
// *client.AuthService implements it.
type Authenticator interface {
	Login(ctx context.Context, creds domain.Credentials) (*client.AuthResult, error)
	Register(ctx context.Context, reg domain.Registration) (*client.AuthResult, error)
	Logout(ctx context.Context, token string) error
	Me(ctx context.Context) (*domain.UserProfile, error)
	VerifyToken(ctx context.Context) (bool, error)
	UpdateMe(ctx context.Context, upd domain.ProfileUpdate) (*client.AuthResult, error)
	ChangePassword(ctx context.Context, pc domain.PasswordChange) error
}

// Options tunes a Session. Zero values select the defaults.
type Options struct {
	// VerifyInterval is the minimum time between two verification calls.
	// It is a client-side heuristic and is not tied to token lifetime.
	VerifyInterval time.Duration
	// CacheTTL is the freshness window of the identity cache.
	CacheTTL time.Duration
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
	// OnSignedOut is called once per transition into StateAnonymous, after
	// local state has been cleared. It is the "go to the login screen" hook.
	OnSignedOut func(Reason)
	Logger      zerolog.Logger
}

// Session is safe for concurrent use.
type Session struct {
	auth        Authenticator
	store       TokenStore
	cache       *IdentityCache
	interval    time.Duration
	now         func() time.Time
	onSignedOut func(Reason)
	log         zerolog.Logger

	mu           sync.RWMutex
	state        State
	user         *domain.UserProfile
	lastVerified time.Time
	// generation advances on every sign-in and sign-out. Asynchronous results
	// captured under an older generation are discarded.
	generation uint64

	loginMu sync.Mutex
	flight  singleflight.Group
	bg      sync.WaitGroup
}

// New creates a Session in StateInitializing. Call Start to resolve it.
func New(auth Authenticator, store TokenStore, opts Options) *Session {
	if opts.VerifyInterval <= 0 {
		opts.VerifyInterval = DefaultVerifyInterval
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.OnSignedOut == nil {
		opts.OnSignedOut = func(Reason) {}
	}

	return &Session{
		auth:        auth,
		store:       store,
		cache:       NewIdentityCache(opts.CacheTTL, opts.Now),
		interval:    opts.VerifyInterval,
		now:         opts.Now,
		onSignedOut: opts.OnSignedOut,
		log:         opts.Logger,
		state:       StateInitializing,
	}
}

// Start resolves StateInitializing. Without a persisted token the session
// becomes anonymous with no network call. Otherwise the current user is
// fetched once; any failure clears the token.
func (s *Session) Start(ctx context.Context) State {
	s.mu.RLock()
	if s.state != StateInitializing {
		defer s.mu.RUnlock()
		return s.state
	}
	gen := s.generation
	s.mu.RUnlock()

	token, err := s.store.Load(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to load persisted token")
	}
	if token == "" {
		s.resolveAnonymous(ctx, gen, ReasonNoToken, err != nil)
		return s.State()
	}

	user, err := s.auth.Me(ctx)
	if err != nil {
		s.log.Info().Err(err).Msg("persisted token rejected, signing out")
		s.resolveAnonymous(ctx, gen, ReasonRestoreFailed, true)
		return s.State()
	}

	s.mu.Lock()
	if s.generation != gen || s.state != StateInitializing {
		// a login finished first
		defer s.mu.Unlock()
		return s.state
	}
	s.generation++
	s.user = user
	s.lastVerified = s.now()
	s.state = StateAuthenticated
	s.cache.Put(KeyCurrentUser, user)
	s.mu.Unlock()

	metrics.SessionTransitionsTotal.WithLabelValues(StateAuthenticated.String(), "restore").Inc()
	s.log.Info().Str("user", user.Username).Msg("session restored")
	return StateAuthenticated
}

// resolveAnonymous leaves StateInitializing without a remote logout.
func (s *Session) resolveAnonymous(ctx context.Context, gen uint64, reason Reason, clearToken bool) {
	s.mu.Lock()
	if s.generation != gen || s.state != StateInitializing {
		s.mu.Unlock()
		return
	}
	if clearToken {
		if err := s.store.Clear(ctx); err != nil {
			s.log.Error().Err(err).Msg("failed to clear persisted token")
		}
	}
	changed := s.signOutLocked(reason)
	s.mu.Unlock()

	if changed {
		s.onSignedOut(reason)
	}
}

// Verify reports whether the session is still valid. Within VerifyInterval
// of the last successful verification it answers without I/O; past it the
// API is always asked, and concurrent callers of the same sign-in share a
// single call. A denial or a failed call signs the session out.
func (s *Session) Verify(ctx context.Context) bool {
	s.mu.RLock()
	if s.state != StateAuthenticated {
		s.mu.RUnlock()
		metrics.VerificationsTotal.WithLabelValues("skipped").Inc()
		return false
	}
	if s.now().Sub(s.lastVerified) < s.interval {
		s.mu.RUnlock()
		metrics.VerificationsTotal.WithLabelValues("debounced").Inc()
		return true
	}
	gen := s.generation
	s.mu.RUnlock()

	v, _, _ := s.flight.Do("verify:"+strconv.FormatUint(gen, 10), func() (any, error) {
		return s.verify(ctx), nil
	})
	return v.(bool)
}

func (s *Session) verify(ctx context.Context) bool {
	// Re-check under the flight: a caller that just finished may have
	// refreshed lastVerified.
	s.mu.RLock()
	if s.state != StateAuthenticated {
		s.mu.RUnlock()
		return false
	}
	if s.now().Sub(s.lastVerified) < s.interval {
		s.mu.RUnlock()
		return true
	}
	gen := s.generation
	s.mu.RUnlock()

	valid, err := s.auth.VerifyToken(ctx)

	if err != nil && ctx.Err() != nil {
		// The caller gave up; that says nothing about the token.
		metrics.VerificationsTotal.WithLabelValues("cancelled").Inc()
		return s.Authenticated()
	}

	s.mu.Lock()
	if s.generation != gen {
		authed := s.state == StateAuthenticated
		s.mu.Unlock()
		metrics.VerificationsTotal.WithLabelValues("stale").Inc()
		return authed
	}
	// only the generation that asked may record the answer
	if err == nil {
		s.cache.Put(KeyTokenValid, valid)
	}
	if err == nil && valid {
		s.lastVerified = s.now()
		s.mu.Unlock()
		metrics.VerificationsTotal.WithLabelValues("valid").Inc()
		return true
	}
	s.mu.Unlock()

	if err != nil {
		metrics.VerificationsTotal.WithLabelValues("error").Inc()
		s.log.Info().Err(err).Msg("verification failed, signing out")
	} else {
		metrics.VerificationsTotal.WithLabelValues("invalid").Inc()
		s.log.Info().Msg("token no longer valid, signing out")
	}
	s.logout(ctx, ReasonVerifyFailed, &gen)
	return false
}

// Login signs in with creds. Concurrent logins run one at a time. API
// errors are returned as received.
func (s *Session) Login(ctx context.Context, creds domain.Credentials) (*domain.UserProfile, error) {
	s.loginMu.Lock()
	defer s.loginMu.Unlock()

	s.cache.Invalidate()
	res, err := s.auth.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	return s.establish(ctx, res, "login")
}

// Register creates an account and signs it in, like Login.
func (s *Session) Register(ctx context.Context, reg domain.Registration) (*domain.UserProfile, error) {
	s.loginMu.Lock()
	defer s.loginMu.Unlock()

	s.cache.Invalidate()
	res, err := s.auth.Register(ctx, reg)
	if err != nil {
		return nil, err
	}
	return s.establish(ctx, res, "register")
}

func (s *Session) establish(ctx context.Context, res *client.AuthResult, reason string) (*domain.UserProfile, error) {
	user := res.User

	s.mu.Lock()
	if err := s.store.Save(ctx, res.Token); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.generation++
	s.user = &user
	s.lastVerified = s.now()
	s.state = StateAuthenticated
	s.cache.Invalidate()
	s.cache.Put(KeyCurrentUser, &user)
	s.mu.Unlock()

	metrics.SessionTransitionsTotal.WithLabelValues(StateAuthenticated.String(), reason).Inc()
	s.log.Info().Str("user", user.Username).Str("role", string(user.Role)).Msg("signed in")
	return &user, nil
}

// Logout signs out locally right away and revokes the token on the server
// in the background. It never fails.
func (s *Session) Logout(ctx context.Context) {
	s.logout(ctx, ReasonLogout, nil)
}

// Wait blocks until background logout calls have finished.
func (s *Session) Wait() {
	s.bg.Wait()
}

// logout is the single sign-out sequence. When gen is non-nil it only runs
// if the session is still in that generation.
func (s *Session) logout(ctx context.Context, reason Reason, gen *uint64) {
	s.mu.Lock()
	if gen != nil && *gen != s.generation {
		s.mu.Unlock()
		return
	}
	token, err := s.store.Load(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to read token for remote logout")
	}
	if err := s.store.Clear(ctx); err != nil {
		s.log.Error().Err(err).Msg("failed to clear persisted token")
	}
	changed := s.signOutLocked(reason)
	s.mu.Unlock()

	if token != "" {
		s.bg.Add(1)
		go s.remoteLogout(context.WithoutCancel(ctx), token)
	}
	if changed {
		s.onSignedOut(reason)
	}
}

// signOutLocked clears in-memory state and reports whether the session
// actually changed state. Callers hold s.mu.
func (s *Session) signOutLocked(reason Reason) bool {
	s.generation++
	s.user = nil
	s.lastVerified = time.Time{}
	s.cache.Invalidate()

	if s.state == StateAnonymous {
		return false
	}
	s.state = StateAnonymous
	metrics.SessionTransitionsTotal.WithLabelValues(StateAnonymous.String(), string(reason)).Inc()
	s.log.Info().Str("reason", string(reason)).Msg("signed out")
	return true
}

func (s *Session) remoteLogout(ctx context.Context, token string) {
	defer s.bg.Done()

	ctx, cancel := context.WithTimeout(ctx, remoteLogoutTimeout)
	defer cancel()
	if err := s.auth.Logout(ctx, token); err != nil {
		s.log.Warn().Err(err).Msg("remote logout failed")
	}
}

// UpdateProfile applies upd and replaces the in-memory profile with the
// server's answer. A returned token replaces the persisted one. On error the
// session is left untouched.
func (s *Session) UpdateProfile(ctx context.Context, upd domain.ProfileUpdate) (*domain.UserProfile, error) {
	s.mu.RLock()
	if s.state != StateAuthenticated {
		s.mu.RUnlock()
		return nil, ErrNotAuthenticated
	}
	gen := s.generation
	s.mu.RUnlock()

	res, err := s.auth.UpdateMe(ctx, upd)
	if err != nil {
		return nil, err
	}
	user := res.User

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return &user, nil
	}
	if res.Token != "" {
		if err := s.store.Save(ctx, res.Token); err != nil {
			return nil, err
		}
	}
	s.user = &user
	s.cache.Invalidate()
	return &user, nil
}

// ChangePassword replaces the signed-in user's password.
func (s *Session) ChangePassword(ctx context.Context, current, next string) error {
	if !s.Authenticated() {
		return ErrNotAuthenticated
	}
	return s.auth.ChangePassword(ctx, domain.PasswordChange{CurrentPassword: current, NewPassword: next})
}

// CurrentUser fetches the signed-in user's profile, answering from the
// identity cache while it is fresh.
func (s *Session) CurrentUser(ctx context.Context) (*domain.UserProfile, error) {
	s.mu.RLock()
	if s.state != StateAuthenticated {
		s.mu.RUnlock()
		return nil, ErrNotAuthenticated
	}
	gen := s.generation
	s.mu.RUnlock()

	if v, ok := s.cache.Get(KeyCurrentUser); ok {
		return v.(*domain.UserProfile), nil
	}

	v, err, _ := s.flight.Do("me", func() (any, error) {
		return s.auth.Me(ctx)
	})
	if err != nil {
		return nil, err
	}
	user := v.(*domain.UserProfile)

	s.mu.Lock()
	if s.generation == gen {
		s.user = user
		s.cache.Put(KeyCurrentUser, user)
	}
	s.mu.Unlock()
	return user, nil
}

// HandleUnauthorized is installed as the request layer's 401 hook. A 401 on
// anything but login or register signs an authenticated session out.
func (s *Session) HandleUnauthorized(_, path string) {
	switch path {
	case "/users/login", "/users/register":
		return
	}

	s.mu.RLock()
	if s.state != StateAuthenticated {
		s.mu.RUnlock()
		return
	}
	gen := s.generation
	s.mu.RUnlock()

	s.logout(context.Background(), ReasonUnauthorized, &gen)
}

// RunVerifier calls Verify every interval until ctx is done or the session
// is signed out. A non-positive every uses the verify interval.
func (s *Session) RunVerifier(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = s.interval
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.Verify(ctx) {
				return
			}
		}
	}
}

// User returns the latest known profile, or nil when signed out.
func (s *Session) User() *domain.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Authenticated reports whether a user is signed in.
func (s *Session) Authenticated() bool {
	return s.State() == StateAuthenticated
}
