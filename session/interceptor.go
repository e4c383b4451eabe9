package session

import (
	"context"
	"errors"
	"net/http"

	"github.com/tcriess/neowatch/api"
	"github.com/tcriess/neowatch/credentials"
	"github.com/tcriess/neowatch/globals"
	"github.com/tcriess/neowatch/types"
)

// paths that never go through the refresh protocol
var noRefreshPaths = map[string]struct{}{
	api.PathLogin:    {},
	api.PathRegister: {},
	api.PathRefresh:  {},
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Call performs r with the current access credential and decodes the data part of the response into out.
//
// An authentication failure is answered with at most one refresh and one retry. Concurrent failing calls share a
// single refresh. When no refresh credential exists or the refresh fails the session is terminated and a
// *SessionExpiredError wrapping the original failure is returned. A failure of the retried call is returned as
// is. Failures other than authentication are returned untouched.
func (m *Manager) Call(ctx context.Context, r api.Request, out interface{}) error {
	m.mu.Lock()
	epoch := m.epoch
	m.mu.Unlock()
	token, _ := m.store.Get(credentials.AccessTokenName)
	r.Token = token
	env, err := m.api.Do(ctx, r)
	if err == nil {
		return env.Decode(out)
	}
	if !refreshable(r, err) {
		return err
	}

	newToken, refreshErr := m.renew(ctx, token, epoch)
	if refreshErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if refreshErr != errSessionTerminated {
			globals.AppLogger.Info("could not renew session", "path", r.Path, "error", refreshErr)
			m.terminateEpoch("refresh_failed", epoch)
		}
		return &SessionExpiredError{Err: err}
	}

	m.mu.Lock()
	current := m.epoch
	m.mu.Unlock()
	if current != epoch {
		return &SessionExpiredError{Err: err}
	}
	r.Token = newToken
	env, err = m.api.Do(ctx, r)
	if err != nil {
		return err
	}
	return env.Decode(out)
}

func refreshable(r api.Request, err error) bool {
	var statusErr *api.StatusError
	if !errors.As(err, &statusErr) || !statusErr.IsAuthFailure() {
		return false
	}
	_, excluded := noRefreshPaths[r.Path]
	return !excluded
}

// renew returns an access token to retry with. usedToken is the token the failed call was sent with; if the
// store already holds a different one, another call has renewed the session in the meantime. epoch is the
// session epoch the call started in.
func (m *Manager) renew(ctx context.Context, usedToken string, epoch uint64) (string, error) {
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return "", errSessionTerminated
	}
	if current, ok := m.store.Get(credentials.AccessTokenName); ok && current != usedToken {
		m.mu.Unlock()
		return current, nil
	}
	if call := m.refreshing; call != nil {
		m.mu.Unlock()
		return waitRefresh(ctx, call)
	}
	refreshToken, ok := m.store.Get(credentials.RefreshTokenName)
	if !ok {
		m.mu.Unlock()
		return "", errNoRefreshToken
	}
	call := &refreshCall{done: make(chan struct{}), epoch: epoch}
	m.refreshing = call
	m.mu.Unlock()

	// detached from ctx: the result is shared with every waiter
	go m.runRefresh(call, refreshToken)
	return waitRefresh(ctx, call)
}

func waitRefresh(ctx context.Context, call *refreshCall) (string, error) {
	select {
	case <-call.done:
		return call.token, call.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *Manager) runRefresh(call *refreshCall, refreshToken string) {
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.RefreshTimeout)
	defer cancel()

	pair := types.TokenPair{}
	env, err := m.api.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   api.PathRefresh,
		Body:   refreshRequest{RefreshToken: refreshToken},
	})
	if err == nil {
		err = env.Decode(&pair)
	}
	if err == nil && pair.AccessToken == "" {
		err = errors.New("refresh response without access token")
	}

	m.mu.Lock()
	switch {
	case call.epoch != m.epoch:
		// logged out or logged in again meanwhile, the pair belongs to a dead session
		call.err = errSessionTerminated
		m.opts.Metrics.Refresh("abandoned")
	case err == nil:
		m.storeTokens(pair)
		call.token = pair.AccessToken
		m.opts.Metrics.Refresh("ok")
	default:
		call.err = err
		m.opts.Metrics.Refresh("failed")
	}
	if m.refreshing == call {
		m.refreshing = nil
	}
	m.mu.Unlock()
	close(call.done)
}
