package goSession

import (
	"net/http"
	"testing"
	"time"
)

func validTestConfig() Config {
	cfg := DefaultConfig()
	cfg.Auth.BaseURL = "https://api.example.com"
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults with base url valid",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "missing base url invalid",
			mutate: func(c *Config) {
				c.Auth.BaseURL = "  "
			},
			wantValid: false,
		},
		{
			name: "non http base url invalid",
			mutate: func(c *Config) {
				c.Auth.BaseURL = "ftp://example.com"
			},
			wantValid: false,
		},
		{
			name: "relative refresh path invalid",
			mutate: func(c *Config) {
				c.Auth.RefreshPath = "auth/refresh"
			},
			wantValid: false,
		},
		{
			name: "zero auth timeout invalid",
			mutate: func(c *Config) {
				c.Auth.Timeout = 0
			},
			wantValid: false,
		},
		{
			name: "same storage keys invalid",
			mutate: func(c *Config) {
				c.Session.RoleKey = c.Session.SessionKey
			},
			wantValid: false,
		},
		{
			name: "zero retries valid",
			mutate: func(c *Config) {
				c.Refresh.MaxRetries = 0
			},
			wantValid: true,
		},
		{
			name: "negative retries invalid",
			mutate: func(c *Config) {
				c.Refresh.MaxRetries = -1
			},
			wantValid: false,
		},
		{
			name: "max delay below base invalid",
			mutate: func(c *Config) {
				c.Refresh.BaseDelay = 10 * time.Second
				c.Refresh.MaxDelay = time.Second
			},
			wantValid: false,
		},
		{
			name: "cooldown disabled valid",
			mutate: func(c *Config) {
				c.Refresh.Cooldown = 0
			},
			wantValid: true,
		},
		{
			name: "unknown aggressiveness invalid",
			mutate: func(c *Config) {
				c.Engine.Aggressiveness = Aggressiveness(9)
			},
			wantValid: false,
		},
		{
			name: "zero rehydration timeout invalid",
			mutate: func(c *Config) {
				c.Engine.RehydrationTimeout = 0
			},
			wantValid: false,
		},
		{
			name: "negative grace invalid",
			mutate: func(c *Config) {
				c.Engine.GracePeriod = -time.Second
			},
			wantValid: false,
		},
		{
			name: "zero debounce valid",
			mutate: func(c *Config) {
				c.Engine.Debounce = 0
			},
			wantValid: true,
		},
		{
			name: "relative login route invalid",
			mutate: func(c *Config) {
				c.Routes.LoginRoute = "login"
			},
			wantValid: false,
		},
		{
			name: "login equals default route invalid",
			mutate: func(c *Config) {
				c.Routes.AuthenticatedDefaultRoute = "/login/"
			},
			wantValid: false,
		},
		{
			name: "audit enabled without buffer invalid",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cfg := validTestConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestAggressivenessIntervals(t *testing.T) {
	tests := []struct {
		in   string
		want Aggressiveness
		tick time.Duration
	}{
		{"low", AggressivenessLow, 30 * time.Minute},
		{"", AggressivenessNormal, 5 * time.Minute},
		{"HIGH", AggressivenessHigh, 30 * time.Second},
	}
	for _, tc := range tests {
		got, err := ParseAggressiveness(tc.in)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.in, err)
		}
		if got != tc.want || got.Interval() != tc.tick {
			t.Fatalf("%q: got %s every %v", tc.in, got, got.Interval())
		}
	}
	if _, err := ParseAggressiveness("frantic"); err == nil {
		t.Fatal("expected error for unknown aggressiveness")
	}
}

func TestCheckIntervalOverride(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Engine.checkInterval() != 5*time.Minute {
		t.Fatalf("expected normal interval, got %v", cfg.Engine.checkInterval())
	}
	cfg.Engine.CheckInterval = 7 * time.Second
	if cfg.Engine.checkInterval() != 7*time.Second {
		t.Fatalf("expected override, got %v", cfg.Engine.checkInterval())
	}
}

func TestCloneConfigCopiesSlices(t *testing.T) {
	cfg := validTestConfig()
	cfg.Auth.HTTPClient = &http.Client{}
	clone := cloneConfig(cfg)
	clone.Interceptor.NoAuthPaths[0] = "/changed"
	if cfg.Interceptor.NoAuthPaths[0] == "/changed" {
		t.Fatal("clone shares NoAuthPaths with the original")
	}
	if clone.Auth.HTTPClient != cfg.Auth.HTTPClient {
		t.Fatal("clone should keep the same HTTP client")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("GOSESSION_AUTH_BASE_URL", "https://auth.example.com")
	t.Setenv("GOSESSION_REFRESH_COOLDOWN", "45s")
	t.Setenv("GOSESSION_AGGRESSIVENESS", "high")
	t.Setenv("GOSESSION_AUTO_REFRESH", "false")
	t.Setenv("GOSESSION_NO_AUTH_PATHS", "/auth/login,/public/*")
	t.Setenv("GOSESSION_ROUTES_FAIL_CLOSED", "true")

	cfg, err := ConfigFromEnv("")
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.Auth.BaseURL != "https://auth.example.com" {
		t.Fatalf("base url: %q", cfg.Auth.BaseURL)
	}
	if cfg.Refresh.Cooldown != 45*time.Second {
		t.Fatalf("cooldown: %v", cfg.Refresh.Cooldown)
	}
	if cfg.Engine.Aggressiveness != AggressivenessHigh || cfg.Engine.AutoRefresh {
		t.Fatalf("engine: %+v", cfg.Engine)
	}
	if len(cfg.Interceptor.NoAuthPaths) != 2 || cfg.Interceptor.NoAuthPaths[1] != "/public/*" {
		t.Fatalf("no auth paths: %v", cfg.Interceptor.NoAuthPaths)
	}
	if !cfg.Routes.FailClosed {
		t.Fatal("expected fail closed")
	}
	// untouched values keep their defaults
	if cfg.Session.SessionKey != "session" || cfg.Refresh.MaxRetries != 3 {
		t.Fatalf("defaults lost: %+v %+v", cfg.Session, cfg.Refresh)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("env config should validate: %v", err)
	}
}

func TestConfigFromEnvRejectsBadValues(t *testing.T) {
	t.Setenv("APP_AGGRESSIVENESS", "frantic")
	if _, err := ConfigFromEnv("APP"); err == nil {
		t.Fatal("expected aggressiveness error")
	}

	t.Setenv("APP_AGGRESSIVENESS", "low")
	t.Setenv("APP_REFRESH_TIMEOUT", "soon")
	if _, err := ConfigFromEnv("APP"); err == nil {
		t.Fatal("expected duration parse error")
	}
}
