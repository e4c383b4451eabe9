package session

import (
	"context"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tcriess/neowatch/api"
	"github.com/tcriess/neowatch/globals"
)

const backgroundTimeout = 10 * time.Second

type unreadCount struct {
	Count int `json:"count"`
}

// UnreadCount returns the last successfully fetched number of unread notifications.
func (m *Manager) UnreadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unreadCount
}

// RefreshUnreadCount is best-effort: a failure leaves the previous count in place and is not reported.
func (m *Manager) RefreshUnreadCount(ctx context.Context) {
	out := unreadCount{}
	err := m.Call(ctx, api.Request{Method: http.MethodGet, Path: api.PathUnreadCount}, &out)
	if err != nil {
		globals.AppLogger.Debug("unread count not refreshed", "error", err)
		return
	}
	m.mu.Lock()
	m.unreadCount = out.Count
	m.mu.Unlock()
}

// StartBackground schedules the best-effort jobs according to the cron spec. Ticks are skipped while logged
// out. The returned function stops the scheduler and waits for a running job.
func (m *Manager) StartBackground(spec string) (func(), error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if !m.Session().IsAuthenticated {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		m.RefreshUnreadCount(ctx)
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return func() {
		<-c.Stop().Done()
	}, nil
}
