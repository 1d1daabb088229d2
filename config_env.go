package goSession

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// DefaultEnvPrefix is used by [ConfigFromEnv] when prefix is empty.
const DefaultEnvPrefix = "GOSESSION"

// envOverlay holds the variables ConfigFromEnv understands. Unset variables leave the
// default in place, so every scalar is a pointer.
type envOverlay struct {
	AuthBaseURL     *string        `envconfig:"AUTH_BASE_URL"`
	AuthLoginPath   *string        `envconfig:"AUTH_LOGIN_PATH"`
	AuthRefreshPath *string        `envconfig:"AUTH_REFRESH_PATH"`
	AuthLogoutPath  *string        `envconfig:"AUTH_LOGOUT_PATH"`
	AuthTimeout     *time.Duration `envconfig:"AUTH_TIMEOUT"`

	SessionKey  *string        `envconfig:"SESSION_KEY"`
	RoleKey     *string        `envconfig:"ROLE_KEY"`
	RedisPrefix *string        `envconfig:"REDIS_PREFIX"`
	RedisTTL    *time.Duration `envconfig:"REDIS_TTL"`

	RefreshMaxRetries *int           `envconfig:"REFRESH_MAX_RETRIES"`
	RefreshBaseDelay  *time.Duration `envconfig:"REFRESH_BASE_DELAY"`
	RefreshMaxDelay   *time.Duration `envconfig:"REFRESH_MAX_DELAY"`
	RefreshCooldown   *time.Duration `envconfig:"REFRESH_COOLDOWN"`
	RefreshTimeout    *time.Duration `envconfig:"REFRESH_TIMEOUT"`

	Aggressiveness     *string        `envconfig:"AGGRESSIVENESS"`
	CheckInterval      *time.Duration `envconfig:"CHECK_INTERVAL"`
	AutoRefresh        *bool          `envconfig:"AUTO_REFRESH"`
	ExpiryThreshold    *time.Duration `envconfig:"EXPIRY_THRESHOLD"`
	RehydrationTimeout *time.Duration `envconfig:"REHYDRATION_TIMEOUT"`
	GracePeriod        *time.Duration `envconfig:"GRACE_PERIOD"`
	Debounce           *time.Duration `envconfig:"DEBOUNCE"`
	RedirectDelay      *time.Duration `envconfig:"REDIRECT_DELAY"`
	IdleTimeout        *time.Duration `envconfig:"IDLE_TIMEOUT"`

	LoginRoute                *string  `envconfig:"LOGIN_ROUTE"`
	AuthenticatedDefaultRoute *string  `envconfig:"AUTHENTICATED_DEFAULT_ROUTE"`
	RoutesFailClosed          *bool    `envconfig:"ROUTES_FAIL_CLOSED"`
	RoutesFile                *string  `envconfig:"ROUTES_FILE"`
	NoAuthPaths               []string `envconfig:"NO_AUTH_PATHS"`

	AuditEnabled   *bool `envconfig:"AUDIT_ENABLED"`
	MetricsEnabled *bool `envconfig:"METRICS_ENABLED"`
}

// ConfigFromEnv returns [DefaultConfig] overlaid with PREFIX_* environment variables,
// e.g. GOSESSION_AUTH_BASE_URL or GOSESSION_REFRESH_COOLDOWN=45s. The result is not
// validated; Builder.Build does that.
func ConfigFromEnv(prefix string) (Config, error) {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	var env envOverlay
	if err := envconfig.Process(prefix, &env); err != nil {
		return Config{}, fmt.Errorf("goSession: read environment: %w", err)
	}

	cfg := defaultConfig()
	setValue(&cfg.Auth.BaseURL, env.AuthBaseURL)
	setValue(&cfg.Auth.LoginPath, env.AuthLoginPath)
	setValue(&cfg.Auth.RefreshPath, env.AuthRefreshPath)
	setValue(&cfg.Auth.LogoutPath, env.AuthLogoutPath)
	setValue(&cfg.Auth.Timeout, env.AuthTimeout)

	setValue(&cfg.Session.SessionKey, env.SessionKey)
	setValue(&cfg.Session.RoleKey, env.RoleKey)
	setValue(&cfg.Session.RedisPrefix, env.RedisPrefix)
	setValue(&cfg.Session.RedisTTL, env.RedisTTL)

	setValue(&cfg.Refresh.MaxRetries, env.RefreshMaxRetries)
	setValue(&cfg.Refresh.BaseDelay, env.RefreshBaseDelay)
	setValue(&cfg.Refresh.MaxDelay, env.RefreshMaxDelay)
	setValue(&cfg.Refresh.Cooldown, env.RefreshCooldown)
	setValue(&cfg.Refresh.Timeout, env.RefreshTimeout)

	if env.Aggressiveness != nil {
		a, err := ParseAggressiveness(*env.Aggressiveness)
		if err != nil {
			return Config{}, fmt.Errorf("goSession: %s_AGGRESSIVENESS: %w", prefix, err)
		}
		cfg.Engine.Aggressiveness = a
	}
	setValue(&cfg.Engine.CheckInterval, env.CheckInterval)
	setValue(&cfg.Engine.AutoRefresh, env.AutoRefresh)
	setValue(&cfg.Engine.ExpiryThreshold, env.ExpiryThreshold)
	setValue(&cfg.Engine.RehydrationTimeout, env.RehydrationTimeout)
	setValue(&cfg.Engine.GracePeriod, env.GracePeriod)
	setValue(&cfg.Engine.Debounce, env.Debounce)
	setValue(&cfg.Engine.RedirectDelay, env.RedirectDelay)
	setValue(&cfg.Engine.IdleTimeout, env.IdleTimeout)

	setValue(&cfg.Routes.LoginRoute, env.LoginRoute)
	setValue(&cfg.Routes.AuthenticatedDefaultRoute, env.AuthenticatedDefaultRoute)
	setValue(&cfg.Routes.FailClosed, env.RoutesFailClosed)
	setValue(&cfg.Routes.File, env.RoutesFile)
	if len(env.NoAuthPaths) > 0 {
		cfg.Interceptor.NoAuthPaths = env.NoAuthPaths
	}

	setValue(&cfg.Audit.Enabled, env.AuditEnabled)
	setValue(&cfg.Metrics.Enabled, env.MetricsEnabled)
	return cfg, nil
}

func setValue[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
