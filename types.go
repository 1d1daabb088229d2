package goSession

import (
	"fmt"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/permission"
	"github.com/MrEthical07/goSession/session"
)

// State is the engine's position in the session lifecycle.
type State int

const (
	// StateInitializing lasts until both stores hydrated or the rehydration timeout fired.
	StateInitializing State = iota
	StateAuthenticated
	StateUnauthenticated
	// StateExpired is an authenticated session whose token is past its expiry.
	StateExpired
	// StateError follows an unrecoverable renewal until the redirect happens.
	StateError
	// StateLoggedOut is latched after the forced redirect. Only a new login leaves it.
	StateLoggedOut
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateExpired:
		return "expired"
	case StateError:
		return "error"
	case StateLoggedOut:
		return "logged_out"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Status is the derived view of the session the UI renders from. It is recomputed, never
// stored.
type Status struct {
	State           State
	IsAuthenticated bool
	IsLoading       bool
	IsTokenExpired  bool
	User            *session.User
	Role            permission.Role
	// Error is the user-facing message after an unrecoverable renewal.
	Error     string
	TokenInfo *jwt.TokenInfo
	// InGracePeriod is set while a session that only looks authenticated is trusted.
	InGracePeriod bool
}

func (s Status) equal(o Status) bool {
	if s.State != o.State || s.IsAuthenticated != o.IsAuthenticated || s.IsLoading != o.IsLoading ||
		s.IsTokenExpired != o.IsTokenExpired || s.Role != o.Role || s.Error != o.Error ||
		s.InGracePeriod != o.InGracePeriod {
		return false
	}
	if (s.User == nil) != (o.User == nil) || (s.User != nil && *s.User != *o.User) {
		return false
	}
	if (s.TokenInfo == nil) != (o.TokenInfo == nil) {
		return false
	}
	if s.TokenInfo == nil {
		return true
	}
	// ExpiresIn moves with the clock and is left out
	return s.TokenInfo.ExpiresAt.Equal(o.TokenInfo.ExpiresAt) &&
		s.TokenInfo.IssuedAt.Equal(o.TokenInfo.IssuedAt) &&
		s.TokenInfo.WillExpireSoon == o.TokenInfo.WillExpireSoon
}

// StartOptions tune [Engine.Start].
type StartOptions struct {
	// PageJustLoaded enables the grace period for a session that looks authenticated
	// before its token is confirmed.
	PageJustLoaded bool
}

// Navigator performs a navigation the engine decided on.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to [Navigator].
type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

// LoginResult is returned by [Engine.Login].
type LoginResult struct {
	User        session.User
	Role        permission.Role
	IsFirstTime bool
}
