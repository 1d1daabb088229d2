package goSession

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/goSession/authapi"
	"github.com/MrEthical07/goSession/interceptor"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/permission"
	"github.com/MrEthical07/goSession/refresh"
	"github.com/MrEthical07/goSession/route"
	"github.com/MrEthical07/goSession/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. Configure it during initialization and call Build once.
type Builder struct {
	config Config

	storage  session.Storage
	redis    redis.UniversalClient
	routes   []route.Entry
	registry *permission.Registry

	navigator Navigator
	auditSink AuditSink
	logger    *slog.Logger
	clock     func() time.Time

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStorage sets the durable storage shared by the session and role stores.
func (b *Builder) WithStorage(s session.Storage) *Builder {
	b.storage = s
	return b
}

// WithRedis persists both stores in Redis under Session.RedisPrefix. WithStorage wins when
// both are set.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithRoutes declares the route table. It cannot be combined with Routes.File.
func (b *Builder) WithRoutes(entries ...route.Entry) *Builder {
	b.routes = append(b.routes, entries...)
	return b
}

// WithRoleRegistry sets the roles route entries may require. Defaults to
// [permission.NewDefaultRegistry].
func (b *Builder) WithRoleRegistry(r *permission.Registry) *Builder {
	b.registry = r
	return b
}

// WithNavigator sets who performs forced and post-logout navigations.
func (b *Builder) WithNavigator(n Navigator) *Builder {
	b.navigator = n
	return b
}

// WithAuditSink enables audit dispatch to sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock replaces the wall clock used for token expiry decisions. Timers still use
// real time.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and route table and wires the engine. A broken route
// table is reported as a [*route.ConfigError].
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	// -------- ROUTES --------
	opts := cfg.Routes.options()
	opts.Registry = b.registry
	var table *route.Table
	var err error
	switch {
	case cfg.Routes.File != "" && len(b.routes) > 0:
		return nil, errors.New("routes given both inline and as Routes.File")
	case cfg.Routes.File != "":
		table, err = route.LoadFile(cfg.Routes.File, opts)
	default:
		table, err = route.NewTable(b.routes, opts)
	}
	if err != nil {
		return nil, err
	}

	// -------- STORES --------
	storage := b.storage
	if storage == nil && b.redis != nil {
		storage = session.NewRedisStorage(b.redis, cfg.Session.RedisPrefix, cfg.Session.RedisTTL)
	}
	if storage == nil {
		storage = session.NewMemoryStorage()
	}
	sessions := session.NewStore(storage, session.WithKey(cfg.Session.SessionKey), session.WithLogger(logger))
	roles := session.NewRoleStore(storage, session.WithKey(cfg.Session.RoleKey), session.WithLogger(logger))

	// -------- AUTH API --------
	api, err := authapi.New(authapi.Config{
		BaseURL:     cfg.Auth.BaseURL,
		LoginPath:   cfg.Auth.LoginPath,
		RefreshPath: cfg.Auth.RefreshPath,
		LogoutPath:  cfg.Auth.LogoutPath,
		Timeout:     cfg.Auth.Timeout,
		HTTPClient:  cfg.Auth.HTTPClient,
		UserAgent:   cfg.Auth.UserAgent,
	})
	if err != nil {
		return nil, err
	}

	policy := jwt.NewPolicy(jwt.WithClock(clock), jwt.WithExpiryThreshold(cfg.Engine.ExpiryThreshold))

	engine := &Engine{
		config:    cfg,
		logger:    logger,
		storage:   storage,
		sessions:  sessions,
		roles:     roles,
		policy:    policy,
		api:       api,
		routes:    table,
		navigator: b.navigator,
		metrics:   NewMetrics(cfg.Metrics),
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink, logger),
		now:       clock,
		initCh:    make(chan struct{}),
		status:    Status{State: StateInitializing, IsLoading: true, Role: permission.RoleNone},
	}
	engine.loginLimiter = rate.New(rate.Config{Window: cfg.Login.Window, Burst: cfg.Login.Burst, Now: clock})
	engine.ctx, engine.cancel = context.WithCancel(context.Background())
	engine.debounce = newDebouncer(cfg.Engine.Debounce, engine.recompute)

	// -------- REFRESH COORDINATOR --------
	maxRetries := cfg.Refresh.MaxRetries
	if maxRetries == 0 {
		// zero means no retries here, while the coordinator reads zero as its default
		maxRetries = -1
	}
	engine.refresher = refresh.New(sessions, policy, api, refresh.Config{
		MaxRetries:      maxRetries,
		BaseDelay:       cfg.Refresh.BaseDelay,
		MaxDelay:        cfg.Refresh.MaxDelay,
		Cooldown:        cfg.Refresh.Cooldown,
		Timeout:         cfg.Refresh.Timeout,
		ExpiryThreshold: cfg.Engine.ExpiryThreshold,
		Now:             clock,
		Logger:          logger,
	}, refresh.Hooks{
		OnUnrecoverable: engine.onUnrecoverable,
		OnComplete:      engine.onRefreshComplete,
		OnRetry: func(int, time.Duration, error) {
			engine.metricInc(MetricRefreshRetry)
		},
	})

	// -------- INTERCEPTOR --------
	engine.transport = interceptor.New(interceptor.Config{
		Base:            cfg.Interceptor.Base,
		Tokens:          sessions,
		Refresher:       interceptorRefresher{e: engine},
		NoAuthPaths:     cfg.Interceptor.NoAuthPaths,
		RequestIDHeader: cfg.Interceptor.RequestIDHeader,
		Logger:          logger,
		OnReplay: func() {
			engine.metricInc(MetricRequestReplayed)
		},
	})

	// -------- FLOWS --------
	engine.flows = flows.New(flows.Deps{
		Login: flows.LoginDeps{
			Limiter: engine.loginLimiter,
			Login: func(ctx context.Context, email, password string) (flows.LoginResponse, error) {
				data, err := api.Login(ctx, authapi.LoginRequest{Email: email, Password: password})
				if err != nil {
					return flows.LoginResponse{}, err
				}
				return flows.LoginResponse{
					AccessToken:  data.AccessToken,
					RefreshToken: data.RefreshToken,
					User: session.User{
						ID:        data.User.ID,
						Email:     data.User.Email,
						FirstName: data.User.FirstName,
						ImageURL:  data.User.ImageURL,
					},
					Role:        permission.ParseRole(data.Role),
					IsFirstTime: data.IsFirstTime,
				}, nil
			},
			Classify: refresh.Classify,
			TokenIsValid: func(token string) bool {
				return policy.Validate(token).IsValid
			},
			Session:   sessions,
			Roles:     roles,
			OnSession: engine.onSession,
			Warn:      logger.Warn,
		},
		Logout: flows.LogoutDeps{
			Session:       sessions,
			Roles:         roles,
			Revoke:        api.Logout,
			RevokeTimeout: cfg.Auth.LogoutTimeout,
			Warn:          logger.Warn,
		},
	})

	b.built = true

	return engine, nil
}
