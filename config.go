package goSession

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/route"
)

// Config groups every tunable of an [Engine]. Obtain one from [DefaultConfig] and adjust it.
type Config struct {
	Auth        AuthConfig
	Session     SessionConfig
	Refresh     RefreshConfig
	Engine      EngineConfig
	Routes      RoutesConfig
	Interceptor InterceptorConfig
	Login       LoginConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
}

/*
====================================
AUTH API CONFIG
====================================
*/

// AuthConfig locates the authentication endpoints.
type AuthConfig struct {
	BaseURL     string
	LoginPath   string
	RefreshPath string
	LogoutPath  string
	Timeout     time.Duration
	// HTTPClient overrides the client used for auth calls. Its cookie jar, if any, is kept.
	HTTPClient *http.Client
	UserAgent  string
	// LogoutTimeout bounds the best-effort server logout call.
	LogoutTimeout time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig names the durable storage keys.
type SessionConfig struct {
	SessionKey string
	RoleKey    string
	// RedisPrefix and RedisTTL apply when the builder is given a Redis client.
	RedisPrefix string
	RedisTTL    time.Duration
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig tunes the refresh coordinator.
type RefreshConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// Cooldown is the minimum spacing between two renewal flights. Zero disables it.
	Cooldown time.Duration
	Timeout  time.Duration
}

/*
====================================
ENGINE CONFIG
====================================
*/

// Aggressiveness selects how often the engine re-validates the token.
type Aggressiveness int

const (
	AggressivenessNormal Aggressiveness = iota
	AggressivenessLow
	AggressivenessHigh
)

func (a Aggressiveness) String() string {
	switch a {
	case AggressivenessLow:
		return "low"
	case AggressivenessHigh:
		return "high"
	case AggressivenessNormal:
		return "normal"
	default:
		return fmt.Sprintf("Aggressiveness(%d)", int(a))
	}
}

// ParseAggressiveness accepts "low", "normal" and "high".
func ParseAggressiveness(s string) (Aggressiveness, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		return AggressivenessNormal, nil
	case "low":
		return AggressivenessLow, nil
	case "high":
		return AggressivenessHigh, nil
	default:
		return 0, fmt.Errorf("unknown aggressiveness %q", s)
	}
}

// Interval returns the periodic check interval for a.
func (a Aggressiveness) Interval() time.Duration {
	switch a {
	case AggressivenessLow:
		return 30 * time.Minute
	case AggressivenessHigh:
		return 30 * time.Second
	default:
		return 5 * time.Minute
	}
}

// EngineConfig tunes the session state machine.
type EngineConfig struct {
	Aggressiveness Aggressiveness
	// CheckInterval overrides the interval derived from Aggressiveness when > 0.
	CheckInterval time.Duration
	AutoRefresh   bool
	// ExpiryThreshold is how close to expiry a token is renewed proactively.
	ExpiryThreshold    time.Duration
	RehydrationTimeout time.Duration
	GracePeriod        time.Duration
	// Debounce collapses bursts of store notifications. Zero recomputes synchronously.
	Debounce      time.Duration
	RedirectDelay time.Duration
	// IdleTimeout stops proactive renewal after this long without RecordActivity. Zero
	// disables idle tracking.
	IdleTimeout time.Duration
	// RedirectOnLogout navigates to the login route after an explicit logout.
	RedirectOnLogout bool
}

func (c EngineConfig) checkInterval() time.Duration {
	if c.CheckInterval > 0 {
		return c.CheckInterval
	}
	return c.Aggressiveness.Interval()
}

/*
====================================
ROUTES CONFIG
====================================
*/

// RoutesConfig configures route evaluation.
type RoutesConfig struct {
	LoginRoute                string
	AuthenticatedDefaultRoute string
	// FailClosed treats unmatched paths as AUTHENTICATED.
	FailClosed bool
	// File, when set, is a YAML route table loaded at build time.
	File string
}

func (c RoutesConfig) options() route.Options {
	opts := route.Options{
		LoginRoute:                c.LoginRoute,
		AuthenticatedDefaultRoute: c.AuthenticatedDefaultRoute,
	}
	if c.FailClosed {
		opts.UnknownRoutePolicy = route.FailClosed
	}
	return opts
}

/*
====================================
INTERCEPTOR CONFIG
====================================
*/

// InterceptorConfig configures the HTTP client returned by [Engine.HTTPClient].
type InterceptorConfig struct {
	// NoAuthPaths never carry the bearer token. "/prefix/*" matches a subtree.
	NoAuthPaths     []string
	RequestIDHeader string
	// Base is the underlying transport. Defaults to http.DefaultTransport.
	Base http.RoundTripper
}

/*
====================================
LOGIN CONFIG
====================================
*/

// LoginConfig throttles login submissions locally.
type LoginConfig struct {
	// Window restores one attempt. Zero disables throttling.
	Window time.Duration
	Burst  int
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls lifecycle event dispatch.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the default configuration. Auth.BaseURL must still be set.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Auth: AuthConfig{
			LoginPath:     "/auth/login",
			RefreshPath:   "/auth/refresh",
			LogoutPath:    "/auth/logout",
			Timeout:       10 * time.Second,
			UserAgent:     "goSession",
			LogoutTimeout: 5 * time.Second,
		},
		Session: SessionConfig{
			SessionKey:  "session",
			RoleKey:     "role",
			RedisPrefix: "gs",
		},
		Refresh: RefreshConfig{
			MaxRetries: 3,
			BaseDelay:  time.Second,
			MaxDelay:   30 * time.Second,
			Cooldown:   30 * time.Second,
			Timeout:    30 * time.Second,
		},
		Engine: EngineConfig{
			Aggressiveness:     AggressivenessNormal,
			AutoRefresh:        true,
			ExpiryThreshold:    5 * time.Minute,
			RehydrationTimeout: 5 * time.Second,
			GracePeriod:        2 * time.Second,
			Debounce:           50 * time.Millisecond,
			RedirectDelay:      2 * time.Second,
			RedirectOnLogout:   true,
		},
		Routes: RoutesConfig{
			LoginRoute:                route.DefaultLoginRoute,
			AuthenticatedDefaultRoute: route.DefaultAuthenticatedDefaultRoute,
		},
		Interceptor: InterceptorConfig{
			NoAuthPaths: []string{"/auth/login", "/auth/refresh"},
		},
		Login: LoginConfig{
			Window: 2 * time.Second,
			Burst:  5,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Interceptor.NoAuthPaths = append([]string(nil), cfg.Interceptor.NoAuthPaths...)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Auth
	base := strings.TrimSpace(c.Auth.BaseURL)
	if base == "" {
		return errors.New("Auth BaseURL is required")
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return errors.New("Auth BaseURL must be http or https")
	}
	for name, p := range map[string]string{
		"LoginPath":   c.Auth.LoginPath,
		"RefreshPath": c.Auth.RefreshPath,
		"LogoutPath":  c.Auth.LogoutPath,
	} {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("Auth %s must start with /", name)
		}
	}
	if c.Auth.Timeout <= 0 {
		return errors.New("Auth Timeout must be > 0")
	}
	if c.Auth.LogoutTimeout < 0 {
		return errors.New("Auth LogoutTimeout must be >= 0")
	}

	// Session
	if strings.TrimSpace(c.Session.SessionKey) == "" || strings.TrimSpace(c.Session.RoleKey) == "" {
		return errors.New("Session keys must not be empty")
	}
	if c.Session.SessionKey == c.Session.RoleKey {
		return errors.New("Session SessionKey and RoleKey must differ")
	}
	if c.Session.RedisTTL < 0 {
		return errors.New("Session RedisTTL must be >= 0")
	}

	// Refresh
	if c.Refresh.MaxRetries < 0 {
		return errors.New("Refresh MaxRetries must be >= 0")
	}
	if c.Refresh.BaseDelay <= 0 || c.Refresh.MaxDelay < c.Refresh.BaseDelay {
		return errors.New("Refresh delays must satisfy 0 < BaseDelay <= MaxDelay")
	}
	if c.Refresh.Cooldown < 0 {
		return errors.New("Refresh Cooldown must be >= 0")
	}
	if c.Refresh.Timeout <= 0 {
		return errors.New("Refresh Timeout must be > 0")
	}

	// Engine
	if c.Engine.Aggressiveness < AggressivenessNormal || c.Engine.Aggressiveness > AggressivenessHigh {
		return errors.New("Engine Aggressiveness is invalid")
	}
	if c.Engine.CheckInterval < 0 {
		return errors.New("Engine CheckInterval must be >= 0")
	}
	if c.Engine.ExpiryThreshold < 0 {
		return errors.New("Engine ExpiryThreshold must be >= 0")
	}
	if c.Engine.RehydrationTimeout <= 0 {
		return errors.New("Engine RehydrationTimeout must be > 0")
	}
	if c.Engine.GracePeriod < 0 || c.Engine.Debounce < 0 || c.Engine.RedirectDelay < 0 || c.Engine.IdleTimeout < 0 {
		return errors.New("Engine durations must be >= 0")
	}

	// Routes
	if !strings.HasPrefix(c.Routes.LoginRoute, "/") || !strings.HasPrefix(c.Routes.AuthenticatedDefaultRoute, "/") {
		return errors.New("Routes LoginRoute and AuthenticatedDefaultRoute must be absolute")
	}
	if route.Normalize(c.Routes.LoginRoute) == route.Normalize(c.Routes.AuthenticatedDefaultRoute) {
		return errors.New("Routes LoginRoute and AuthenticatedDefaultRoute must differ")
	}

	// Login
	if c.Login.Window < 0 || c.Login.Burst < 0 {
		return errors.New("Login throttle must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}
	return nil
}

/*
====================================
LINT
====================================
*/

// LintWarning is a setting that is valid but probably unintended.
type LintWarning struct {
	Code    string
	Message string
}

// LintWarnings is the result of [Config.Lint].
type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Code
	}
	return out
}

// Lint returns warnings for risky but valid settings.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings
	add := func(code, msg string) {
		ws = append(ws, LintWarning{Code: code, Message: msg})
	}
	if !c.Routes.FailClosed {
		add("routes_fail_open", "paths missing from the route table are allowed for everyone")
	}
	if !c.Engine.AutoRefresh {
		add("auto_refresh_disabled", "expired sessions wait for a 401 or a manual Refresh")
	}
	if c.Refresh.Cooldown == 0 {
		add("refresh_cooldown_disabled", "renewal flights are not spaced")
	}
	if c.Engine.GracePeriod > c.Engine.RehydrationTimeout {
		add("grace_exceeds_rehydration", "grace period is longer than the rehydration timeout")
	}
	if c.Engine.ExpiryThreshold > 0 && c.Engine.checkInterval() > c.Engine.ExpiryThreshold {
		add("check_interval_exceeds_threshold", "tokens may expire between two periodic checks")
	}
	if strings.HasPrefix(c.Auth.BaseURL, "http://") {
		add("auth_plain_http", "credentials are sent without TLS")
	}
	return ws
}
