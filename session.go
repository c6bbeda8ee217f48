package authkit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wolfej94/authkit/authorize"
	"github.com/wolfej94/authkit/store"
)

// State is the session's position in the credential lifecycle.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config configures a Session.
type Config struct {
	// Endpoint is the base URL of the authentication service. Its host is
	// also the scope for injected Authorization headers.
	Endpoint string
	// Method is the initial authentication method.
	Method Method
	// Store persists credentials across both tiers.
	Store store.Store
	// LoginPath is the path of the login endpoint, e.g. "/oauth/token".
	LoginPath string
	// RefreshPath is the path of the refresh endpoint. Defaults to
	// LoginPath when empty; only consulted for refresh-capable methods.
	RefreshPath string
}

// Option tweaks optional session collaborators.
type Option func(*Session)

// WithHTTPClient sets the client used for login and refresh calls. The
// default has a 30 second timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) { s.httpClient = c }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithBroker injects a shared event broker instead of a session-owned one.
func WithBroker(b *Broker) Option {
	return func(s *Session) { s.broker = b }
}

// WithAuthorizer injects a shared request authorizer.
func WithAuthorizer(a *authorize.Authorizer) Option {
	return func(s *Session) { s.auth = a }
}

// Session orchestrates the credential lifecycle: it owns the active method,
// coordinates the secure store and the request-authorization pipeline, and
// publishes lifecycle events. Safe for concurrent use; overlapping login or
// refresh calls are coalesced rather than interleaved.
type Session struct {
	endpoint   *url.URL
	loginURL   string
	refreshURL string
	store      store.Store
	auth       *authorize.Authorizer
	broker     *Broker
	httpClient *http.Client
	logger     *slog.Logger

	mu     sync.Mutex
	method Method
	state  State

	group singleflight.Group
	// opMu serializes the mutating lifecycle operations end to end so a
	// login and a refresh can never interleave their store writes.
	opMu sync.Mutex
}

// New creates a Session.
func New(cfg Config, opts ...Option) (*Session, error) {
	if cfg.Method == nil {
		return nil, fmt.Errorf("authkit: config requires a method")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("authkit: config requires a store")
	}
	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil || endpoint.Host == "" {
		return nil, fmt.Errorf("authkit: invalid endpoint %q", cfg.Endpoint)
	}

	refreshPath := cfg.RefreshPath
	if refreshPath == "" {
		refreshPath = cfg.LoginPath
	}

	s := &Session{
		endpoint:   endpoint,
		loginURL:   endpoint.JoinPath(cfg.LoginPath).String(),
		refreshURL: endpoint.JoinPath(refreshPath).String(),
		store:      cfg.Store,
		method:     cfg.Method,
		state:      StateUnauthenticated,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.auth == nil {
		s.auth = authorize.New()
	}
	if s.broker == nil {
		s.broker = NewBroker()
	}
	if s.httpClient == nil {
		s.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.rehydrate(context.Background())
	return s, nil
}

// rehydrate adopts credentials persisted by an earlier session over the same
// store: a stored bearer token reinstalls its authorization rule, and a
// basic-mode marker carries the method across processes. Basic credentials
// themselves are never persisted, so basic mode needs a fresh login. Only
// the standard tier is read; rehydration never prompts.
func (s *Session) rehydrate(ctx context.Context) {
	if _, err := s.store.Get(ctx, store.TierStandard, store.KeyBasicMode); err == nil {
		s.method = Basic{}
		return
	}
	if token, err := s.store.Get(ctx, store.TierStandard, store.KeyBearerToken); err == nil {
		s.installBearer(string(token))
		s.state = StateAuthenticated
	}
}

// Method returns the currently active authentication method.
func (s *Session) Method() Method {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.method
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Events returns the session's event broker.
func (s *Session) Events() *Broker {
	return s.broker
}

// Authorizer returns the request-authorization pipeline.
func (s *Session) Authorizer() *authorize.Authorizer {
	return s.auth
}

// Client returns an HTTP client whose transport injects Authorization
// headers for requests to the session's endpoint host.
func (s *Session) Client() *http.Client {
	return &http.Client{
		Transport: authorize.NewTransport(s.auth, nil),
		Timeout:   30 * time.Second,
	}
}

// IsAuthenticated reports whether credentials are in place. For token-based
// methods this means the standard tier holds a bearer token; for basic mode
// it means an active basic rule with non-empty credentials.
func (s *Session) IsAuthenticated(ctx context.Context) bool {
	if _, ok := s.Method().(Basic); ok {
		rule := s.auth.ActiveBasic()
		return rule != nil && rule.Email != "" && rule.Password != ""
	}
	_, err := s.store.Get(ctx, store.TierStandard, store.KeyBearerToken)
	return err == nil
}

// Authenticate logs in with the active method and persists the resulting
// credentials. For the Basic method no network call is made; the credentials
// are recorded directly into the authorization pipeline.
func (s *Session) Authenticate(ctx context.Context, email, password string) error {
	method := s.Method()
	if _, ok := method.(Basic); ok {
		return s.SwitchToBasic(ctx, email, password)
	}

	key := "login:" + method.Name() + ":" + email
	_, err, _ := s.group.Do(key, func() (any, error) {
		return nil, s.authenticate(ctx, method, email, password)
	})
	return err
}

func (s *Session) authenticate(ctx context.Context, method Method, email, password string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.setState(StateAuthenticating)

	req, err := method.LoginRequest(ctx, s.loginURL, email, password)
	if err != nil {
		s.setState(StateUnauthenticated)
		return err
	}

	body, err := s.execute(req)
	if err != nil {
		s.setState(StateUnauthenticated)
		return err
	}

	cred, err := method.ParseLogin(body)
	if err != nil {
		s.setState(StateUnauthenticated)
		return err
	}

	if err := s.persist(ctx, method, cred); err != nil {
		s.setState(StateUnauthenticated)
		return err
	}

	s.installBearer(cred.AccessToken)
	s.setState(StateAuthenticated)
	s.broker.Publish(EventAuthenticated)
	s.logger.Debug("authenticated", "method", method.Name())
	return nil
}

// SwitchToBasic performs the one-way transition from a token-based method to
// basic authentication. No network request is issued; subsequent requests to
// the endpoint host carry a Basic Authorization header.
func (s *Session) SwitchToBasic(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return AuthError(http.StatusBadRequest)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	// Mode marker in the standard tier so the basic-mode switch survives the
	// process; rehydrate consults it. The password is never persisted.
	if err := s.store.Set(ctx, store.TierStandard, store.KeyBasicMode, []byte(email)); err != nil {
		return err
	}
	// One-way transition: the stored bearer token must not resurrect a
	// bearer rule in a later session.
	if err := s.store.Delete(ctx, store.TierStandard, store.KeyBearerToken); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("stale bearer token removal failed", "error", err)
	}

	s.mu.Lock()
	s.method = Basic{}
	s.mu.Unlock()

	s.auth.RemoveBearer()
	s.auth.Install(authorize.BasicRule{
		ScopeHost: s.endpoint.Hostname(),
		Email:     email,
		Password:  password,
	})
	s.setState(StateAuthenticated)
	s.broker.Publish(EventAuthenticated)
	s.logger.Debug("authenticated", "method", "basic")
	return nil
}

// Reauthenticate exchanges the stored refresh token for a fresh credential
// pair. Only refresh-capable methods support it. A missing refresh token
// deauthenticates and returns nil ("nothing to refresh"); any failure while
// talking to the server deauthenticates before the error is surfaced, so the
// session never stays half refreshed.
func (s *Session) Reauthenticate(ctx context.Context) error {
	method := s.Method()
	refresher, ok := method.(Refresher)
	if !ok {
		return errUnsupported("refresh")
	}

	_, err, _ := s.group.Do("refresh", func() (any, error) {
		return nil, s.reauthenticate(ctx, refresher)
	})
	return err
}

func (s *Session) reauthenticate(ctx context.Context, method Refresher) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.setState(StateRefreshing)

	refreshToken, err := s.store.Get(ctx, store.TierProtected, store.KeyRefreshToken)
	if errors.Is(err, store.ErrNotFound) {
		// Nothing to refresh. Designed no-op: clear out and report success.
		return s.deauthenticateLocked(ctx)
	}
	if err != nil {
		// Presence denied or storage failure: credentials may still be
		// intact, so surface the error without wiping.
		s.setState(StateAuthenticated)
		return err
	}

	req, err := method.RefreshRequest(ctx, s.refreshURL, string(refreshToken))
	if err != nil {
		s.setState(StateAuthenticated)
		return err
	}

	body, err := s.execute(req)
	if err != nil {
		if derr := s.deauthenticateLocked(ctx); derr != nil {
			s.logger.Warn("deauthentication after failed refresh", "error", derr)
		}
		return err
	}

	cred, err := method.ParseRefresh(body)
	if err != nil {
		if derr := s.deauthenticateLocked(ctx); derr != nil {
			s.logger.Warn("deauthentication after failed refresh", "error", derr)
		}
		return err
	}

	if err := s.persist(ctx, method, cred); err != nil {
		if derr := s.deauthenticateLocked(ctx); derr != nil {
			s.logger.Warn("deauthentication after failed refresh", "error", derr)
		}
		return err
	}

	s.installBearer(cred.AccessToken)
	s.setState(StateAuthenticated)
	s.logger.Debug("reauthenticated", "method", method.Name())
	return nil
}

// Deauthenticate wipes both storage tiers (including the signing key and its
// id pointer), removes the active authorization rules, and publishes the
// unauthenticated event. Idempotent.
func (s *Session) Deauthenticate(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.deauthenticateLocked(ctx)
}

func (s *Session) deauthenticateLocked(ctx context.Context) error {
	if err := s.store.Wipe(ctx, store.TierProtected); err != nil && !errors.Is(err, store.ErrEnclaveUnavailable) {
		s.setState(StateUnauthenticated)
		return err
	}
	if err := s.store.Wipe(ctx, store.TierStandard); err != nil {
		s.setState(StateUnauthenticated)
		return err
	}
	s.auth.RemoveAll()
	s.setState(StateUnauthenticated)
	s.broker.Publish(EventUnauthenticated)
	s.logger.Debug("deauthenticated")
	return nil
}

// execute sends the login/refresh request. 2xx returns the body; transport
// failures and other statuses come back as typed errors.
func (s *Session) execute(req *http.Request) ([]byte, error) {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errTransport(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Debug("authentication rejected", "status", resp.StatusCode)
		return nil, AuthError(resp.StatusCode)
	}
	return body, nil
}

// persist writes the credential to storage. The bearer token is rolled back
// if the refresh-token write fails, so a cancelled or denied write never
// leaves partial state behind.
func (s *Session) persist(ctx context.Context, method Method, cred Credential) error {
	if err := ctx.Err(); err != nil {
		return errTransport(err)
	}

	if err := s.store.Set(ctx, store.TierStandard, store.KeyBearerToken, []byte(cred.AccessToken)); err != nil {
		return err
	}

	_, refreshCapable := method.(Refresher)
	switch {
	case refreshCapable && cred.RefreshToken != "":
		if err := s.store.Set(ctx, store.TierProtected, store.KeyRefreshToken, []byte(cred.RefreshToken)); err != nil {
			if derr := s.store.Delete(ctx, store.TierStandard, store.KeyBearerToken); derr != nil {
				s.logger.Warn("bearer token rollback failed", "error", derr)
			}
			return err
		}
	case refreshCapable:
		// Server omitted the refresh token: keep whatever is stored.
	default:
		// The method cannot use a refresh token; drop any stale one.
		if err := s.store.Delete(ctx, store.TierProtected, store.KeyRefreshToken); err != nil && !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("stale refresh token removal failed", "error", err)
		}
	}
	return nil
}

// installBearer replaces the bearer rule only after the store write has
// succeeded, so requests observe the new token as soon as the rule exists.
func (s *Session) installBearer(token string) {
	s.auth.Install(authorize.BearerRule{
		ScopeHost: s.endpoint.Hostname(),
		Token:     token,
	})
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}
