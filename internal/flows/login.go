package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/permission"
	"github.com/MrEthical07/goSession/session"
)

// LoginFailureKind classifies login flow failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureRateLimited
	LoginFailureRejected
	LoginFailureInvalidResponse
	LoginFailureTransport
	LoginFailureStore
)

// LoginResponse is the accepted login payload.
type LoginResponse struct {
	AccessToken  string
	RefreshToken string
	User         session.User
	Role         permission.Role
	IsFirstTime  bool
}

// LoginResult carries the accepted login payload or failure metadata.
type LoginResult struct {
	Failure  LoginFailureKind
	Err      error
	Response LoginResponse
}

type LoginSessionStore interface {
	SetSession(ctx context.Context, accessToken, refreshToken string, user session.User) error
}

type LoginRoleStore interface {
	SetRole(ctx context.Context, role permission.Role) error
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	Limiter      RenewalLimiter
	Login        func(ctx context.Context, email, password string) (LoginResponse, error)
	Classify     func(error) ErrorClass
	TokenIsValid func(string) bool
	Session      LoginSessionStore
	Roles        LoginRoleStore
	// OnSession runs after both stores accepted the new session.
	OnSession func()
	Warn      func(string, ...any)
}

var errInvalidLoginToken = errors.New("login returned an unusable access token")

// RunLogin authenticates against the server and installs the returned session.
// The role is written before the session so observers of the session store see a
// consistent role on the first authenticated notification.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) LoginResult {
	if deps.Limiter != nil && !deps.Limiter.Allow() {
		return LoginResult{Failure: LoginFailureRateLimited, Err: rate.ErrRateLimited}
	}

	resp, err := deps.Login(ctx, email, password)
	if err != nil {
		switch deps.Classify(err) {
		case ErrorUnauthorized:
			return LoginResult{Failure: LoginFailureRejected, Err: err}
		case ErrorInvalidResponse:
			return LoginResult{Failure: LoginFailureInvalidResponse, Err: err}
		default:
			return LoginResult{Failure: LoginFailureTransport, Err: err}
		}
	}
	if !deps.TokenIsValid(resp.AccessToken) {
		return LoginResult{Failure: LoginFailureInvalidResponse, Err: errInvalidLoginToken}
	}

	if err := deps.Roles.SetRole(ctx, resp.Role); err != nil {
		if !errors.Is(err, session.ErrPersist) {
			return LoginResult{Failure: LoginFailureStore, Err: err}
		}
		if deps.Warn != nil {
			deps.Warn("goSession: role not persisted", "error", err)
		}
	}
	if err := deps.Session.SetSession(ctx, resp.AccessToken, resp.RefreshToken, resp.User); err != nil {
		if !errors.Is(err, session.ErrPersist) {
			return LoginResult{Failure: LoginFailureStore, Err: err}
		}
		if deps.Warn != nil {
			deps.Warn("goSession: session not persisted", "error", err)
		}
	}
	if deps.OnSession != nil {
		deps.OnSession()
	}
	return LoginResult{Response: resp}
}
