// Package session holds the client's identity and credential pair. Manager renews the access credential
// transparently around outbound calls and terminates the session when renewal is impossible.
package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/tcriess/neowatch/api"
	"github.com/tcriess/neowatch/credentials"
	"github.com/tcriess/neowatch/globals"
	"github.com/tcriess/neowatch/metrics"
	"github.com/tcriess/neowatch/types"
)

const (
	defaultAccessTTL      = 15 * time.Minute
	defaultRefreshTTL     = 7 * 24 * time.Hour
	defaultRefreshTimeout = 10 * time.Second

	loginFallbackMessage    = "login failed"
	registerFallbackMessage = "registration failed"
)

// Disconnecter is the part of the chat client the manager tears down on logout.
type Disconnecter interface {
	Disconnect()
}

type Options struct {
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	RefreshTimeout time.Duration
	// Secure marks the stored credentials as bound to an encrypted transport.
	Secure  bool
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// refreshCall is the shared in-flight refresh. done is closed after token/err are set. epoch is the session
// epoch the refresh was started in.
type refreshCall struct {
	done  chan struct{}
	epoch uint64
	token string
	err   error
}

type Manager struct {
	api   *api.Client
	store credentials.Store
	opts  Options

	mu          sync.Mutex
	user        *types.User
	chat        Disconnecter
	refreshing  *refreshCall
	unreadCount int
	// epoch changes whenever the credential pair is replaced by login or cleared by logout
	epoch uint64
}

func NewManager(apiClient *api.Client, store credentials.Store, opts Options) *Manager {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = defaultAccessTTL
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = defaultRefreshTTL
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = defaultRefreshTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		api:   apiClient,
		store: store,
		opts:  opts,
	}
}

// AttachChat registers the chat connection which has to be closed before the credentials are cleared.
func (m *Manager) AttachChat(chat Disconnecter) {
	m.mu.Lock()
	m.chat = chat
	m.mu.Unlock()
}

// Session returns a snapshot. Expiry of the access token is evaluated at call time.
func (m *Manager) Session() types.Session {
	m.mu.Lock()
	user := m.user
	m.mu.Unlock()
	access, hasAccess := m.store.Get(credentials.AccessTokenName)
	refresh, _ := m.store.Get(credentials.RefreshTokenName)
	s := types.Session{AccessToken: access, RefreshToken: refresh}
	if user == nil || !hasAccess || tokenExpired(access, m.opts.Now()) {
		return s
	}
	u := *user
	s.User = &u
	s.IsAuthenticated = true
	return s
}

// Hydrate restores the session from a persisted access credential. Failure of any kind ends in the logged-out
// state, Hydrate itself never fails.
func (m *Manager) Hydrate(ctx context.Context) types.Session {
	if _, ok := m.store.Get(credentials.AccessTokenName); !ok {
		m.setUser(nil)
		return m.Session()
	}
	user, err := m.Profile(ctx)
	if err != nil {
		globals.AppLogger.Info("could not restore session", "error", err)
		m.terminate("hydrate")
		return m.Session()
	}
	m.setUser(user)
	return m.Session()
}

// Profile fetches the identity for the current access credential.
func (m *Manager) Profile(ctx context.Context) (*types.User, error) {
	user := &types.User{}
	err := m.Call(ctx, api.Request{Method: http.MethodGet, Path: api.PathProfile}, user)
	if err != nil {
		return nil, err
	}
	return user, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

func (m *Manager) Login(ctx context.Context, email, password string) (types.Session, error) {
	return m.authenticate(ctx, api.PathLogin, loginRequest{Email: email, Password: password}, loginFallbackMessage)
}

// Register creates an account and logs in. role may be empty to let the server decide.
func (m *Manager) Register(ctx context.Context, name, email, password, role string) (types.Session, error) {
	req := registerRequest{Name: name, Email: email, Password: password, Role: role}
	return m.authenticate(ctx, api.PathRegister, req, registerFallbackMessage)
}

func (m *Manager) authenticate(ctx context.Context, path string, body interface{}, fallback string) (types.Session, error) {
	env, err := m.api.Do(ctx, api.Request{Method: http.MethodPost, Path: path, Body: body})
	if err != nil {
		msg := fallback
		var statusErr *api.StatusError
		if errors.As(err, &statusErr) && statusErr.Message != "" {
			msg = statusErr.Message
		}
		return m.Session(), &AuthError{Message: msg, Err: err}
	}
	res := types.AuthResult{}
	err = env.Decode(&res)
	if err != nil || res.User == nil || res.AccessToken == "" || res.RefreshToken == "" {
		if err == nil {
			err = errors.New("incomplete authentication response")
		}
		return m.Session(), &AuthError{Message: fallback, Err: err}
	}
	m.mu.Lock()
	m.epoch++
	m.refreshing = nil
	m.storeTokens(res.TokenPair)
	m.user = res.User
	m.mu.Unlock()
	globals.AppLogger.Info("authenticated", "user", res.User.Id, "role", res.User.Role.String())
	return m.Session(), nil
}

// Logout closes the chat connection, clears both credentials and resets the session. It is safe to call when
// already logged out.
func (m *Manager) Logout() {
	m.terminate("explicit")
}

func (m *Manager) terminate(reason string) {
	m.mu.Lock()
	epoch := m.epoch
	m.mu.Unlock()
	m.terminateEpoch(reason, epoch)
}

// terminateEpoch ends the session unless it has been replaced or ended since epoch. A refresh still in flight
// is abandoned: its result is never stored.
func (m *Manager) terminateEpoch(reason string, epoch uint64) bool {
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return false
	}
	m.epoch++
	epoch = m.epoch
	m.refreshing = nil
	chat := m.chat
	m.mu.Unlock()

	// the chat connection is authenticated with the access credential, so it goes first
	if chat != nil {
		chat.Disconnect()
	}

	m.mu.Lock()
	if m.epoch != epoch {
		// logged in again while the chat was torn down
		m.mu.Unlock()
		return true
	}
	hadUser := m.user != nil
	_, hadAccess := m.store.Get(credentials.AccessTokenName)
	_, hadRefresh := m.store.Get(credentials.RefreshTokenName)
	m.store.Remove(credentials.AccessTokenName)
	m.store.Remove(credentials.RefreshTokenName)
	m.user = nil
	m.unreadCount = 0
	m.mu.Unlock()

	if hadUser || hadAccess || hadRefresh {
		m.opts.Metrics.Logout(reason)
		globals.AppLogger.Info("session terminated", "reason", reason)
	}
	return true
}

func (m *Manager) setUser(user *types.User) {
	m.mu.Lock()
	m.user = user
	m.mu.Unlock()
}

func (m *Manager) storeTokens(pair types.TokenPair) {
	m.store.Set(credentials.AccessTokenName, pair.AccessToken, credentials.SetOptions{TTL: m.opts.AccessTTL, Secure: m.opts.Secure})
	if pair.RefreshToken != "" {
		m.store.Set(credentials.RefreshTokenName, pair.RefreshToken, credentials.SetOptions{TTL: m.opts.RefreshTTL, Secure: m.opts.Secure})
	}
}
