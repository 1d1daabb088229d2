package refresh

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goSession/authapi"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/singleflight"
)

const flightKey = "renew"

// Sessions is the session store surface the coordinator needs.
type Sessions interface {
	Snapshot() session.State
	UpdateTokenFor(ctx context.Context, epoch uint64, accessToken, refreshToken string) error
}

// Renewer calls the renewal endpoint. *authapi.Client satisfies it.
type Renewer interface {
	Refresh(ctx context.Context, req authapi.RefreshRequest) (*authapi.RefreshData, error)
}

// Config holds coordinator tuning parameters.
type Config struct {
	// MaxRetries bounds retries of network-class failures after the first attempt.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// Cooldown is the minimum spacing between two full renewal attempts.
	Cooldown time.Duration
	// Timeout bounds one flight including retries.
	Timeout time.Duration
	// ExpiryThreshold decides whether a throttled flight may report success.
	ExpiryThreshold time.Duration
	Now             func() time.Time
	Logger          *slog.Logger
}

// DefaultConfig returns the default coordinator tuning.
func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		BaseDelay:       time.Second,
		MaxDelay:        30 * time.Second,
		Cooldown:        30 * time.Second,
		Timeout:         30 * time.Second,
		ExpiryThreshold: 5 * time.Minute,
	}
}

// Hooks observe flights. Every hook runs on the flight goroutine, once per flight. ctx
// carries the values of the caller that started the flight.
type Hooks struct {
	// OnUnrecoverable runs when a flight ends in must-logout, before any caller is released.
	OnUnrecoverable func(ctx context.Context, res Result)
	// OnComplete runs after every flight with its duration.
	OnComplete func(ctx context.Context, res Result, d time.Duration)
	OnRetry    func(attempt int, delay time.Duration, err error)
}

// Coordinator owns the single in-flight renewal.
type Coordinator struct {
	cfg      Config
	hooks    Hooks
	sessions Sessions
	policy   *jwt.Policy
	api      Renewer
	logger   *slog.Logger

	group      singleflight.Group
	cooldown   *rate.Limiter
	refreshing atomic.Bool
	joined     atomic.Uint64
}

// New creates a Coordinator. Zero-valued fields of cfg fall back to [DefaultConfig],
// except Cooldown where zero disables throttling. A negative MaxRetries disables retries.
func New(sessions Sessions, policy *jwt.Policy, api Renewer, cfg Config, hooks Hooks) *Coordinator {
	def := DefaultConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.Cooldown < 0 {
		cfg.Cooldown = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.ExpiryThreshold <= 0 {
		cfg.ExpiryThreshold = def.ExpiryThreshold
	}
	if cfg.Now == nil {
		cfg.Now = policy.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Coordinator{
		cfg:      cfg,
		hooks:    hooks,
		sessions: sessions,
		policy:   policy,
		api:      api,
		logger:   logger,
		cooldown: rate.NewCooldown(cfg.Cooldown, cfg.Now),
	}
}

// Refresh renews the access token, or joins the renewal already in flight.
// If ctx ends first the caller gets a retry-silently result; the flight continues.
func (c *Coordinator) Refresh(ctx context.Context) Result {
	ch := c.group.DoChan(flightKey, func() (any, error) {
		return c.flight(ctx), nil
	})
	select {
	case r := <-ch:
		res := r.Val.(Result)
		if r.Shared {
			c.joined.Add(1)
			res.Shared = true
		}
		return res
	case <-ctx.Done():
		return Result{Retryable: true, ErrorType: ErrorCanceled, Err: ctx.Err()}
	}
}

// IsRefreshing reports whether a flight is running.
func (c *Coordinator) IsRefreshing() bool {
	return c.refreshing.Load()
}

// Joined returns how many callers have shared another caller's flight.
func (c *Coordinator) Joined() uint64 {
	return c.joined.Load()
}

// ResetCooldown lets the next flight start immediately, e.g. after a fresh login.
func (c *Coordinator) ResetCooldown() {
	c.cooldown.Reset()
}

func (c *Coordinator) flight(parent context.Context) Result {
	c.refreshing.Store(true)
	defer c.refreshing.Store(false)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	out := flows.RunRenewal(ctx, c.deps())
	res := fromFlow(out)
	if res.Outcome() == OutcomeMustLogout && res.ErrorType != ErrorNoSession && c.sessions.Snapshot().Epoch != res.SessionEpoch {
		// the session this flight ran for is gone; a newer one must not be ended for it
		res.ErrorType = ErrorNoSession
		res.Err = errors.Join(session.ErrSessionSuperseded, res.Err)
	}

	switch res.Outcome() {
	case OutcomeMustLogout:
		c.logger.Warn("goSession: renewal unrecoverable", "error_type", string(res.ErrorType), "attempts", res.Attempts, "error", res.Err)
		if c.hooks.OnUnrecoverable != nil {
			c.hooks.OnUnrecoverable(ctx, res)
		}
	case OutcomeRetrySilently:
		c.logger.Info("goSession: renewal deferred", "error_type", string(res.ErrorType), "error", res.Err)
	}
	if c.hooks.OnComplete != nil {
		c.hooks.OnComplete(ctx, res, time.Since(start))
	}
	return res
}

func (c *Coordinator) deps() flows.RenewalDeps {
	return flows.RenewalDeps{
		Session: c.sessions,
		Limiter: c.cooldown,
		Renew: func(ctx context.Context, req flows.RenewalRequest) (flows.RenewalResponse, error) {
			data, err := c.api.Refresh(ctx, authapi.RefreshRequest{
				RefreshToken: req.RefreshToken,
				UserID:       req.UserID,
				ExpiresIn:    req.ExpiresIn,
			})
			if err != nil {
				return flows.RenewalResponse{}, err
			}
			return flows.RenewalResponse{AccessToken: data.AccessToken, RefreshToken: data.RefreshToken}, nil
		},
		Classify: Classify,
		TokenIsValid: func(token string) bool {
			return c.policy.Validate(token).IsValid
		},
		TokenIsFresh: func(token string) bool {
			v := c.policy.Validate(token)
			return v.IsValid && !v.IsExpired && !c.policy.WillExpireSoon(token, c.cfg.ExpiryThreshold)
		},
		RenewalWindow: c.policy.RenewalWindow,
		NewBackOff: func() backoff.BackOff {
			return &exponentialBackOff{base: c.cfg.BaseDelay, ceiling: c.cfg.MaxDelay}
		},
		MaxRetries: c.cfg.MaxRetries,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			c.logger.Info("goSession: renewal retry", "attempt", attempt, "delay", delay, "error", err)
			if c.hooks.OnRetry != nil {
				c.hooks.OnRetry(attempt, delay, err)
			}
		},
		Warn: c.logger.Warn,
	}
}

// Classify maps an auth API error to the renewal retry class.
func Classify(err error) flows.ErrorClass {
	switch {
	case authapi.IsUnauthorized(err):
		return flows.ErrorUnauthorized
	case errors.Is(err, authapi.ErrInvalidResponse), errors.Is(err, authapi.ErrInvalidRequest):
		return flows.ErrorInvalidResponse
	default:
		return flows.ErrorTransient
	}
}

func fromFlow(out flows.RenewalResult) Result {
	res := Result{
		Err:          out.Err,
		Attempts:     out.Attempts,
		AccessToken:  out.AccessToken,
		Throttled:    out.Throttled,
		SessionEpoch: out.Epoch,
	}
	switch out.Failure {
	case flows.RenewalFailureNone:
		res.Success = true
	case flows.RenewalFailureNoSession:
		res.ShouldLogout = true
		res.ErrorType = ErrorNoSession
	case flows.RenewalFailureUnauthorized:
		res.ShouldLogout = true
		res.ErrorType = ErrorUnauthorized
	case flows.RenewalFailureNetwork:
		res.ShouldLogout = true
		res.ErrorType = ErrorNetwork
	case flows.RenewalFailureInvalidResponse:
		res.ErrorType = ErrorInvalidResponse
	case flows.RenewalFailureRateLimited:
		res.Retryable = true
		res.ErrorType = ErrorRateLimited
	case flows.RenewalFailureCanceled:
		res.Retryable = true
		res.ErrorType = ErrorCanceled
	}
	return res
}

// exponentialBackOff adapts [jwt.BackoffDelay] to the backoff.BackOff interface.
type exponentialBackOff struct {
	attempt int
	base    time.Duration
	ceiling time.Duration
}

var _ backoff.BackOff = (*exponentialBackOff)(nil)

func (b *exponentialBackOff) NextBackOff() time.Duration {
	d := jwt.BackoffDelay(b.attempt, b.base, b.ceiling)
	b.attempt++
	return d
}

func (b *exponentialBackOff) Reset() {
	b.attempt = 0
}
