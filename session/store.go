package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/MrEthical07/goSession/permission"
)

const (
	// DefaultSessionKey is the storage key of the persisted session.
	DefaultSessionKey = "session"
	// DefaultRoleKey is the storage key of the persisted role.
	DefaultRoleKey = "role"
)

var (
	// ErrNoSession is returned by [Store.UpdateToken] when there is no session to update.
	ErrNoSession = errors.New("no session")
	// ErrSessionSuperseded is returned by the epoch-checked mutations when the session
	// they were meant for has been cleared or replaced.
	ErrSessionSuperseded = errors.New("session superseded")
	// ErrEmptyToken is returned when a mutation supplies an empty access token.
	ErrEmptyToken = errors.New("access token is empty")
	// ErrInvalidUser is returned when a session is set without a user id.
	ErrInvalidUser = errors.New("user id is empty")
)

type options struct {
	key    string
	codec  *Codec
	logger *slog.Logger
}

// Option configures a [Store] or [RoleStore].
type Option func(*options)

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(o *options) {
		if key = strings.TrimSpace(key); key != "" {
			o.key = key
		}
	}
}

// WithCodec overrides the persisted-form codec, e.g. to register extra migrations.
func WithCodec(c *Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithLogger sets the logger used for persistence diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(key string, codec *Codec, opts []Option) options {
	o := options{key: key, codec: codec, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

/*
====================================================================================
SESSION STORE
====================================================================================
*/

// Store is the single source of truth for the access token and the authenticated user.
// It is safe for concurrent use.
type Store struct {
	c *cell[State]
}

// NewStore creates a Store persisting through storage. A nil storage keeps the session in
// memory only.
func NewStore(storage Storage, opts ...Option) *Store {
	o := buildOptions(DefaultSessionKey, NewSessionCodec(), opts)
	return &Store{c: &cell[State]{
		storage: storage,
		key:     o.key,
		codec:   o.codec,
		logger:  o.logger,
		clone:   State.Clone,
		isEmpty: State.empty,
		heal:    healState,
	}}
}

// SetSession installs a fresh authenticated session.
func (s *Store) SetSession(ctx context.Context, accessToken, refreshToken string, user User) error {
	if accessToken == "" {
		return ErrEmptyToken
	}
	if user.ID == "" {
		return ErrInvalidUser
	}
	return s.c.mutate(ctx, func(cur State) (State, error) {
		u := user
		return State{
			User:            &u,
			AccessToken:     accessToken,
			RefreshToken:    refreshToken,
			IsAuthenticated: true,
			Epoch:           cur.Epoch + 1,
		}, nil
	})
}

// UpdateToken replaces the access token, keeping the user. An empty refreshToken keeps the
// existing refresh token.
func (s *Store) UpdateToken(ctx context.Context, accessToken, refreshToken string) error {
	return s.updateToken(ctx, nil, accessToken, refreshToken)
}

// UpdateTokenFor is UpdateToken for the session identified by epoch. It fails with
// [ErrSessionSuperseded] when that session has since been cleared or replaced, so a
// renewal started for an earlier session never lands on a newer one.
func (s *Store) UpdateTokenFor(ctx context.Context, epoch uint64, accessToken, refreshToken string) error {
	return s.updateToken(ctx, &epoch, accessToken, refreshToken)
}

func (s *Store) updateToken(ctx context.Context, epoch *uint64, accessToken, refreshToken string) error {
	if accessToken == "" {
		return ErrEmptyToken
	}
	return s.c.mutate(ctx, func(cur State) (State, error) {
		if epoch != nil && cur.Epoch != *epoch {
			return cur, ErrSessionSuperseded
		}
		if cur.User == nil {
			return cur, ErrNoSession
		}
		cur.AccessToken = accessToken
		if refreshToken != "" {
			cur.RefreshToken = refreshToken
		}
		cur.IsAuthenticated = true
		return cur, nil
	})
}

// Clear removes the session. Clearing an empty store is a no-op apart from notification.
func (s *Store) Clear(ctx context.Context) error {
	return s.c.mutate(ctx, func(cur State) (State, error) {
		return State{Epoch: cur.Epoch + 1}, nil
	})
}

// ClearFor clears the session identified by epoch, or returns [ErrSessionSuperseded]
// leaving a newer session untouched.
func (s *Store) ClearFor(ctx context.Context, epoch uint64) error {
	return s.c.mutate(ctx, func(cur State) (State, error) {
		if cur.Epoch != epoch {
			return cur, ErrSessionSuperseded
		}
		return State{Epoch: cur.Epoch + 1}, nil
	})
}

// Epoch returns the identity of the current session. See [State.Epoch].
func (s *Store) Epoch() uint64 {
	v, _ := s.c.load()
	return v.Epoch
}

// Token returns the current access token, or "".
func (s *Store) Token() string {
	v, _ := s.c.load()
	return v.AccessToken
}

// RefreshToken returns the body-delivered refresh token, or "".
func (s *Store) RefreshToken() string {
	v, _ := s.c.load()
	return v.RefreshToken
}

// User returns a copy of the current user, or nil.
func (s *Store) User() *User {
	v, _ := s.c.load()
	return v.User
}

// Snapshot returns a copy of the whole session.
func (s *Store) Snapshot() State {
	v, hydrated := s.c.load()
	v.HasHydrated = hydrated
	return v
}

// HasHydrated reports whether the persisted snapshot has been loaded.
func (s *Store) HasHydrated() bool {
	return s.c.isHydrated()
}

// Subscribe registers fn for every change, including hydration. fn runs synchronously on
// the mutating goroutine and must not mutate the store. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(State)) func() {
	return s.c.subscribe(func(v State, hydrated bool) {
		v.HasHydrated = hydrated
		fn(v)
	})
}

// Hydrate loads the persisted session once. Later calls are no-ops.
func (s *Store) Hydrate(ctx context.Context) error {
	return s.c.hydrate(ctx)
}

/*
====================================================================================
ROLE STORE
====================================================================================
*/

// RoleStore holds the current user's role. It persists independently of [Store].
type RoleStore struct {
	c *cell[RoleState]
}

// NewRoleStore creates a RoleStore persisting through storage.
func NewRoleStore(storage Storage, opts ...Option) *RoleStore {
	o := buildOptions(DefaultRoleKey, NewRoleCodec(), opts)
	return &RoleStore{c: &cell[RoleState]{
		storage: storage,
		key:     o.key,
		codec:   o.codec,
		logger:  o.logger,
		clone:   func(r RoleState) RoleState { return r },
		isEmpty: RoleState.empty,
	}}
}

// SetRole replaces the role.
func (r *RoleStore) SetRole(ctx context.Context, role permission.Role) error {
	return r.c.mutate(ctx, func(RoleState) (RoleState, error) {
		return RoleState{Role: role}, nil
	})
}

// Role returns the current role, or [permission.RoleNone].
func (r *RoleStore) Role() permission.Role {
	v, _ := r.c.load()
	if !v.Role.IsSet() {
		return permission.RoleNone
	}
	return v.Role
}

// Snapshot returns a copy of the role state.
func (r *RoleStore) Snapshot() RoleState {
	v, hydrated := r.c.load()
	if !v.Role.IsSet() {
		v.Role = permission.RoleNone
	}
	v.HasHydrated = hydrated
	return v
}

// Clear resets the role to none.
func (r *RoleStore) Clear(ctx context.Context) error {
	return r.c.mutate(ctx, func(RoleState) (RoleState, error) {
		return RoleState{}, nil
	})
}

// HasHydrated reports whether the persisted role has been loaded.
func (r *RoleStore) HasHydrated() bool {
	return r.c.isHydrated()
}

// Subscribe registers fn for every change, including hydration.
func (r *RoleStore) Subscribe(fn func(RoleState)) func() {
	return r.c.subscribe(func(v RoleState, hydrated bool) {
		if !v.Role.IsSet() {
			v.Role = permission.RoleNone
		}
		v.HasHydrated = hydrated
		fn(v)
	})
}

// Hydrate loads the persisted role once.
func (r *RoleStore) Hydrate(ctx context.Context) error {
	return r.c.hydrate(ctx)
}
