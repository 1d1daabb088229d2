package route

import (
	"fmt"
	"strings"
)

// ProtectionLevel is how a route is gated.
type ProtectionLevel int

const (
	// Public routes render for everyone.
	Public ProtectionLevel = iota
	// GuestOnly routes render only for anonymous sessions (login, sign-up).
	GuestOnly
	// Authenticated routes require a session, and optionally a role.
	Authenticated
)

func (l ProtectionLevel) String() string {
	switch l {
	case Public:
		return "PUBLIC"
	case GuestOnly:
		return "GUEST_ONLY"
	case Authenticated:
		return "AUTHENTICATED"
	default:
		return fmt.Sprintf("ProtectionLevel(%d)", int(l))
	}
}

func (l ProtectionLevel) valid() bool {
	return l >= Public && l <= Authenticated
}

// ParseProtectionLevel accepts the canonical names case-insensitively; "-" and "_" are
// interchangeable.
func ParseProtectionLevel(s string) (ProtectionLevel, error) {
	switch strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "-", "_") {
	case "PUBLIC":
		return Public, nil
	case "GUEST_ONLY", "GUEST":
		return GuestOnly, nil
	case "AUTHENTICATED", "AUTH":
		return Authenticated, nil
	default:
		return 0, fmt.Errorf("unknown protection level %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l ProtectionLevel) MarshalText() ([]byte, error) {
	if !l.valid() {
		return nil, fmt.Errorf("unknown protection level %d", int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, which yaml.v3 honours for scalars.
func (l *ProtectionLevel) UnmarshalText(text []byte) error {
	v, err := ParseProtectionLevel(string(text))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// UnknownRoutePolicy decides what happens to a path no entry matches.
type UnknownRoutePolicy int

const (
	// FailOpen allows unmatched paths.
	FailOpen UnknownRoutePolicy = iota
	// FailClosed treats unmatched paths as AUTHENTICATED.
	FailClosed
)

func (p UnknownRoutePolicy) String() string {
	if p == FailClosed {
		return "closed"
	}
	return "open"
}

// ParseUnknownRoutePolicy accepts "open" and "closed". Empty input is [FailOpen].
func ParseUnknownRoutePolicy(s string) (UnknownRoutePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "open", "fail_open", "fail-open":
		return FailOpen, nil
	case "closed", "fail_closed", "fail-closed":
		return FailClosed, nil
	default:
		return 0, fmt.Errorf("unknown route policy %q", s)
	}
}
