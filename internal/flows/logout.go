package flows

import (
	"context"
	"errors"
	"time"
)

type LogoutSessionStore interface {
	Token() string
	Clear(ctx context.Context) error
}

type LogoutRoleStore interface {
	Clear(ctx context.Context) error
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Session LogoutSessionStore
	Roles   LogoutRoleStore
	// Revoke notifies the server. Optional and best effort.
	Revoke        func(ctx context.Context, accessToken string) error
	RevokeTimeout time.Duration
	Warn          func(string, ...any)
}

// LogoutResult reports what a logout did.
type LogoutResult struct {
	HadSession bool
	// RevokeErr is the server-side failure, if any. It never prevents the local logout.
	RevokeErr error
	// ClearErr reports durable-storage failures while clearing.
	ClearErr error
}

// RunLogout clears both stores first and then tells the server. Running it on an already
// empty session only repeats the clears.
func RunLogout(ctx context.Context, deps LogoutDeps) LogoutResult {
	token := deps.Session.Token()
	res := LogoutResult{HadSession: token != ""}

	res.ClearErr = errors.Join(deps.Session.Clear(ctx), deps.Roles.Clear(ctx))
	if res.ClearErr != nil && deps.Warn != nil {
		deps.Warn("goSession: logout clear incomplete", "error", res.ClearErr)
	}

	if token == "" || deps.Revoke == nil {
		return res
	}
	revokeCtx := context.WithoutCancel(ctx)
	if deps.RevokeTimeout > 0 {
		var cancel context.CancelFunc
		revokeCtx, cancel = context.WithTimeout(revokeCtx, deps.RevokeTimeout)
		defer cancel()
	}
	if err := deps.Revoke(revokeCtx, token); err != nil {
		res.RevokeErr = err
		if deps.Warn != nil {
			deps.Warn("goSession: server logout failed", "error", err)
		}
	}
	return res
}
