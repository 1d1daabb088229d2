package session

import "github.com/MrEthical07/goSession/permission"

// User is the identity attached to an authenticated session.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	ImageURL  string `json:"imageUrl,omitempty"`
}

// State is a point-in-time copy of the session.
//
// IsAuthenticated implies User != nil. HasHydrated and Epoch are never persisted.
type State struct {
	User            *User  `json:"user"`
	AccessToken     string `json:"accessToken"`
	RefreshToken    string `json:"refreshToken,omitempty"`
	IsAuthenticated bool   `json:"isAuthenticated"`
	HasHydrated     bool   `json:"-"`
	// Epoch changes whenever a session is installed or cleared. Token renewals keep it.
	Epoch uint64 `json:"-"`
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

func (s State) empty() bool {
	return s.User == nil && s.AccessToken == "" && s.RefreshToken == "" && !s.IsAuthenticated
}

// healState enforces the persisted-session invariants. A user without a token, or an
// authenticated flag without a user, collapses to the empty session.
func healState(s State) (State, bool) {
	if s.User != nil && s.AccessToken == "" {
		return State{}, true
	}
	if s.IsAuthenticated && s.User == nil {
		return State{}, true
	}
	return s, false
}

// RoleState is a point-in-time copy of the role store.
type RoleState struct {
	Role        permission.Role `json:"role"`
	HasHydrated bool            `json:"-"`
}

func (r RoleState) empty() bool {
	return !r.Role.IsSet()
}
