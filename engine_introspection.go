package goSession

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/permission"
)

// SessionInfo is the safe introspection view of the current session.
// It never carries token material.
type SessionInfo struct {
	UserID          string
	Email           string
	Role            permission.Role
	IssuedAt        time.Time
	ExpiresAt       time.Time
	HasRefreshToken bool
}

// HealthStatus is an on-demand view of the engine's dependencies.
type HealthStatus struct {
	StorageAvailable bool
	StorageLatency   time.Duration
	SessionHydrated  bool
	RoleHydrated     bool
	Refreshing       bool
	// LoginRetryAfter is how long the next login attempt would be held back.
	LoginRetryAfter time.Duration
}

// pinger is implemented by storages with a remote backend, such as session.RedisStorage.
type pinger interface {
	Ping(ctx context.Context) error
}

// SessionInfo describes the current session, or returns nil when there is none.
func (e *Engine) SessionInfo() *SessionInfo {
	if e == nil || e.sessions == nil {
		return nil
	}
	snap := e.sessions.Snapshot()
	if !snap.IsAuthenticated || snap.User == nil {
		return nil
	}
	info := &SessionInfo{
		UserID:          snap.User.ID,
		Email:           snap.User.Email,
		Role:            e.roles.Role(),
		HasRefreshToken: snap.RefreshToken != "",
	}
	if ti := e.policy.Info(snap.AccessToken); ti != nil {
		info.IssuedAt = ti.IssuedAt
		info.ExpiresAt = ti.ExpiresAt
	}
	return info
}

// Health pings the durable storage when it has a remote backend and reports local
// readiness. In-memory storage is always available.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil || e.sessions == nil {
		return HealthStatus{}
	}

	h := HealthStatus{
		StorageAvailable: true,
		SessionHydrated:  e.sessions.HasHydrated(),
		RoleHydrated:     e.roles.HasHydrated(),
		Refreshing:       e.refresher.IsRefreshing(),
	}
	if e.loginLimiter != nil {
		h.LoginRetryAfter = e.loginLimiter.RetryAfter()
	}
	if p, ok := e.storage.(pinger); ok {
		start := time.Now()
		err := p.Ping(ctx)
		h.StorageLatency = time.Since(start)
		h.StorageAvailable = err == nil
	}
	return h
}
