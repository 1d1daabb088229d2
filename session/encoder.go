package session

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// SessionSchemaVersion is the current persisted session schema.
	SessionSchemaVersion = 2
	// RoleSchemaVersion is the current persisted role schema.
	RoleSchemaVersion = 1
)

var (
	// ErrCorrupt indicates a persisted blob that cannot be decoded.
	ErrCorrupt = errors.New("persisted state corrupt")
	// ErrUnsupportedVersion indicates a persisted blob this build cannot read.
	ErrUnsupportedVersion = errors.New("unsupported persisted schema version")
)

// Migration upgrades a decoded state object from one schema version to the next.
// It may modify and return state in place.
type Migration func(state map[string]any) (map[string]any, error)

type envelope struct {
	V     int             `json:"v"`
	State json.RawMessage `json:"state"`
}

// Codec encodes state into the versioned envelope and upgrades older envelopes on decode.
type Codec struct {
	current    int
	migrations map[int]Migration
}

// NewCodec returns a codec writing schema version current.
func NewCodec(current int) *Codec {
	if current < 1 {
		current = 1
	}
	return &Codec{current: current, migrations: make(map[int]Migration)}
}

// NewSessionCodec returns the session codec with the built-in migrations registered.
//
// v1 stored the access token as "token" and the user's first name as "user_name".
func NewSessionCodec() *Codec {
	c := NewCodec(SessionSchemaVersion)
	c.migrations[1] = migrateSessionV1
	return c
}

// NewRoleCodec returns the role codec.
func NewRoleCodec() *Codec {
	return NewCodec(RoleSchemaVersion)
}

// Version returns the schema version the codec writes.
func (c *Codec) Version() int {
	return c.current
}

// Register installs the migration that upgrades version from to from+1.
func (c *Codec) Register(from int, m Migration) error {
	if m == nil {
		return errors.New("migration is nil")
	}
	if from < 1 || from >= c.current {
		return fmt.Errorf("migration source v%d outside [1,%d)", from, c.current)
	}
	c.migrations[from] = m
	return nil
}

// Encode wraps v in an envelope stamped with the current version.
func (c *Codec) Encode(v any) ([]byte, error) {
	state, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{V: c.current, State: state})
}

// Decode reads an envelope into out, running migrations when the envelope is older than
// the current version.
func (c *Codec) Decode(data []byte, out any) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if env.V < 1 || len(env.State) == 0 {
		return fmt.Errorf("%w: missing version or state", ErrCorrupt)
	}
	if env.V > c.current {
		return fmt.Errorf("%w: v%d newer than v%d", ErrUnsupportedVersion, env.V, c.current)
	}
	if env.V == c.current {
		if err := json.Unmarshal(env.State, out); err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return nil
	}

	var state map[string]any
	if err := json.Unmarshal(env.State, &state); err != nil || state == nil {
		return fmt.Errorf("%w: state is not an object", ErrCorrupt)
	}
	for v := env.V; v < c.current; v++ {
		m, ok := c.migrations[v]
		if !ok {
			return fmt.Errorf("%w: no migration from v%d", ErrUnsupportedVersion, v)
		}
		next, err := m(state)
		if err != nil {
			return fmt.Errorf("%w: migrate v%d: %v", ErrCorrupt, v, err)
		}
		state = next
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return nil
}

func migrateSessionV1(state map[string]any) (map[string]any, error) {
	if tok, ok := state["token"]; ok {
		if _, exists := state["accessToken"]; !exists {
			state["accessToken"] = tok
		}
		delete(state, "token")
	}
	if user, ok := state["user"].(map[string]any); ok {
		if name, ok := user["user_name"]; ok {
			user["firstName"] = name
			delete(user, "user_name")
		}
	}
	return state, nil
}
