package jwt

import (
	"math"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultRenewalWindow is used when a token carries no usable iat claim.
const DefaultRenewalWindow = 3600 * time.Second

// Claims is the access-token payload the client cares about.
type Claims struct {
	UserID string `json:"userId,omitempty"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Validation is the outcome of [Policy.Validate].
//
// A malformed token is always IsValid=false and IsExpired=true; Payload is nil in that case.
type Validation struct {
	IsValid   bool
	IsExpired bool
	Payload   *Claims
}

// TokenInfo summarizes the temporal claims of a token for status reporting.
type TokenInfo struct {
	IssuedAt       time.Time
	ExpiresAt      time.Time
	ExpiresIn      time.Duration
	WillExpireSoon bool
}

// Option configures a [Policy].
type Option func(*Policy)

// WithClock replaces the wall clock used for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(p *Policy) {
		if now != nil {
			p.now = now
		}
	}
}

// WithExpiryThreshold sets the threshold used by [Policy.Info].
func WithExpiryThreshold(d time.Duration) Option {
	return func(p *Policy) {
		if d >= 0 {
			p.threshold = d
		}
	}
}

// Policy evaluates access tokens. It is stateless apart from its clock and safe for
// concurrent use.
type Policy struct {
	now       func() time.Time
	threshold time.Duration
	parser    *jwt.Parser
}

// NewPolicy creates a token policy. The default expiry threshold is five minutes.
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{
		now:       time.Now,
		threshold: 5 * time.Minute,
		parser:    jwt.NewParser(jwt.WithoutClaimsValidation()),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Now returns the policy clock's current time.
func (p *Policy) Now() time.Time {
	return p.now()
}

// Validate decodes token and reports structural and temporal validity.
// A well-formed token is expired iff exp < now.
func (p *Policy) Validate(token string) Validation {
	claims, ok := p.decode(token)
	if !ok {
		return Validation{IsValid: false, IsExpired: true}
	}
	return Validation{
		IsValid:   true,
		IsExpired: claims.ExpiresAt.Time.Before(p.now()),
		Payload:   claims,
	}
}

// WillExpireSoon reports whether token is invalid or expires within threshold.
// Invalid tokens count as expiring so callers never skip a renewal because decoding failed.
func (p *Policy) WillExpireSoon(token string, threshold time.Duration) bool {
	claims, ok := p.decode(token)
	if !ok {
		return true
	}
	return claims.ExpiresAt.Time.Sub(p.now()) <= threshold
}

// RenewalWindow returns the original lifetime of token (exp - iat), or
// [DefaultRenewalWindow] when iat is absent or the token cannot be decoded.
// The value sizes renewal requests; it is never used for local trust decisions.
func (p *Policy) RenewalWindow(token string) time.Duration {
	claims, ok := p.decode(token)
	if !ok || claims.IssuedAt == nil {
		return DefaultRenewalWindow
	}
	window := claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time)
	if window <= 0 {
		return DefaultRenewalWindow
	}
	return window
}

// Info returns the temporal claims of token, or nil when it cannot be decoded.
func (p *Policy) Info(token string) *TokenInfo {
	claims, ok := p.decode(token)
	if !ok {
		return nil
	}
	now := p.now()
	info := &TokenInfo{
		ExpiresAt:      claims.ExpiresAt.Time,
		ExpiresIn:      claims.ExpiresAt.Time.Sub(now),
		WillExpireSoon: claims.ExpiresAt.Time.Sub(now) <= p.threshold,
	}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if info.ExpiresIn < 0 {
		info.ExpiresIn = 0
	}
	return info
}

func (p *Policy) decode(token string) (*Claims, bool) {
	if token == "" {
		return nil, false
	}
	claims := &Claims{}
	if _, _, err := p.parser.ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	if claims.ExpiresAt == nil {
		return nil, false
	}
	return claims, true
}

// BackoffDelay returns base * 2^attempt, capped at ceiling when ceiling > 0.
// attempt is zero-based; negative attempts are treated as zero.
func BackoffDelay(attempt int, base, ceiling time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if base <= 0 {
		base = time.Second
	}
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if ceiling > 0 && delay >= ceiling {
			return ceiling
		}
		if delay <= 0 {
			return time.Duration(math.MaxInt64)
		}
	}
	if ceiling > 0 && delay > ceiling {
		return ceiling
	}
	return delay
}
