package goSession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/MrEthical07/goSession/authapi"
	"github.com/MrEthical07/goSession/interceptor"
	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/permission"
	"github.com/MrEthical07/goSession/refresh"
	"github.com/MrEthical07/goSession/route"
	"github.com/MrEthical07/goSession/session"
	"golang.org/x/sync/errgroup"
)

// Engine is the session state machine. Build one with [Builder], call [Engine.Start] once,
// and [Engine.Close] on teardown. All methods are safe for concurrent use.
type Engine struct {
	config    Config
	logger    *slog.Logger
	storage   session.Storage
	sessions  *session.Store
	roles     *session.RoleStore
	policy    *jwt.Policy
	api       *authapi.Client
	refresher *refresh.Coordinator
	transport *interceptor.Transport
	routes    *route.Table
	flows     flows.Service
	navigator Navigator
	// loginLimiter throttles Login before it reaches the server.
	loginLimiter *rate.Limiter
	audit        *audit.Dispatcher
	metrics      *Metrics
	now          func() time.Time

	// recomputeMu orders status derivation and subscriber notification.
	recomputeMu sync.Mutex
	debounce    *debouncer

	mu             sync.Mutex
	status         Status
	subs           map[uint64]func(Status)
	nextSub        uint64
	started        bool
	closed         bool
	initDone       bool
	initCh         chan struct{}
	pageJustLoaded bool
	inGrace        bool
	graceTimer     *time.Timer
	hydrationTimer *time.Timer
	errMsg         string
	loggedOut      bool
	hasRedirected  bool
	redirectTimer  *time.Timer
	lastActivity   time.Time
	unsubscribe    []func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

/*
====================================
LIFECYCLE
====================================
*/

// Start hydrates both stores and blocks until they are hydrated or the rehydration
// timeout elapses, whichever comes first. It then begins periodic checks. If ctx ends
// first Start returns its error; the engine still leaves Initializing on its own.
func (e *Engine) Start(ctx context.Context, opts StartOptions) (Status, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return Status{}, ErrEngineClosed
	}
	if e.started {
		e.mu.Unlock()
		return Status{}, ErrAlreadyStarted
	}
	e.started = true
	e.pageJustLoaded = opts.PageJustLoaded
	e.lastActivity = e.now()
	e.unsubscribe = append(e.unsubscribe,
		e.sessions.Subscribe(func(session.State) { e.debounce.Trigger() }),
		e.roles.Subscribe(func(session.RoleState) { e.debounce.Trigger() }),
	)
	e.hydrationTimer = time.AfterFunc(e.config.Engine.RehydrationTimeout, func() { e.finishInit(true) })
	e.wg.Add(1)
	e.mu.Unlock()

	go e.hydrate()

	select {
	case <-e.initCh:
		return e.Status(), nil
	case <-ctx.Done():
		return e.Status(), ctx.Err()
	}
}

func (e *Engine) hydrate() {
	defer e.wg.Done()

	var g errgroup.Group
	g.Go(func() error { return e.sessions.Hydrate(e.ctx) })
	g.Go(func() error { return e.roles.Hydrate(e.ctx) })
	if err := g.Wait(); err != nil {
		e.logger.Warn("goSession: rehydration incomplete, continuing with empty state", "error", err)
	}
	e.finishInit(false)
}

// finishInit leaves Initializing exactly once, from hydration or from the timeout.
func (e *Engine) finishInit(timedOut bool) {
	e.mu.Lock()
	if e.initDone || e.closed {
		e.mu.Unlock()
		return
	}
	e.initDone = true
	if e.hydrationTimer != nil {
		e.hydrationTimer.Stop()
	}
	if e.pageJustLoaded && e.config.Engine.GracePeriod > 0 {
		e.inGrace = true
		e.graceTimer = time.AfterFunc(e.config.Engine.GracePeriod, e.endGrace)
	}
	e.wg.Add(1)
	e.mu.Unlock()

	if timedOut {
		e.logger.Info("goSession: rehydration timed out, continuing",
			"timeout", e.config.Engine.RehydrationTimeout,
			"session_hydrated", e.sessions.HasHydrated(),
			"role_hydrated", e.roles.HasHydrated())
		e.metricInc(MetricRehydrationTimeout)
		e.emitAudit(e.ctx, auditEventRehydrationTimeout, false, nil, nil)
	}

	e.recompute()
	close(e.initCh)
	go e.loop()
}

func (e *Engine) endGrace() {
	e.mu.Lock()
	e.inGrace = false
	e.graceTimer = nil
	e.mu.Unlock()
	e.recompute()
}

func (e *Engine) loop() {
	defer e.wg.Done()

	ctx := WithTrigger(e.ctx, TriggerPeriodic)
	e.check(ctx)

	ticker := time.NewTicker(e.config.Engine.checkInterval())
	defer ticker.Stop()
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.check(ctx)
		}
	}
}

// Close cancels the rehydration timeout, the periodic check, pending debounce and redirect
// timers, and flushes the audit dispatcher. It is idempotent.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	for _, t := range []*time.Timer{e.hydrationTimer, e.graceTimer, e.redirectTimer} {
		if t != nil {
			t.Stop()
		}
	}
	e.redirectTimer = nil
	unsubs := e.unsubscribe
	e.unsubscribe = nil
	e.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
	e.debounce.Stop()
	e.cancel()
	e.wg.Wait()
	e.audit.Close()
}

/*
====================================
STATUS
====================================
*/

// Status returns the current derived status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.status
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}

// Subscribe registers fn for status changes and returns its cancel function. fn runs
// synchronously on the goroutine that caused the change and must not call Login, Logout,
// Refresh or Retry.
func (e *Engine) Subscribe(fn func(Status)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.subs == nil {
		e.subs = make(map[uint64]func(Status))
	}
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subs, id)
			e.mu.Unlock()
		})
	}
}

func (e *Engine) recompute() {
	e.recomputeMu.Lock()
	defer e.recomputeMu.Unlock()

	snap := e.sessions.Snapshot()
	role := e.roles.Snapshot()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	prev := e.status
	next := e.derive(snap, role)
	e.status = next
	var fns []func(Status)
	if !prev.equal(next) {
		fns = make([]func(Status), 0, len(e.subs))
		for _, fn := range e.subs {
			fns = append(fns, fn)
		}
	}
	e.mu.Unlock()

	if prev.State != next.State {
		e.metricInc(MetricStateTransition)
		e.logger.Debug("goSession: state changed", "from", prev.State.String(), "to", next.State.String())
	}
	for _, fn := range fns {
		fn(next)
	}
}

// derive computes the status from store snapshots. Caller holds e.mu.
func (e *Engine) derive(snap session.State, role session.RoleState) Status {
	st := Status{Role: role.Role}
	if !st.Role.IsSet() {
		st.Role = permission.RoleNone
	}
	if !e.initDone {
		st.State = StateInitializing
		st.IsLoading = true
		return st
	}

	token := snap.AccessToken
	if token != "" && e.inGrace {
		// a concrete token closes the grace window early
		e.inGrace = false
		if e.graceTimer != nil {
			e.graceTimer.Stop()
			e.graceTimer = nil
		}
	}

	if snap.IsAuthenticated && snap.User != nil && token != "" {
		v := e.policy.Validate(token)
		st.IsAuthenticated = true
		st.User = snap.User
		st.TokenInfo = e.policy.Info(token)
		st.IsTokenExpired = !v.IsValid || v.IsExpired
		if !st.IsTokenExpired && (e.errMsg != "" || e.loggedOut) {
			// a new session replaces the one that was forced out
			e.resetLatchesLocked()
		}
		st.Error = e.errMsg
		switch {
		case e.errMsg != "":
			st.State = StateError
		case st.IsTokenExpired:
			st.State = StateExpired
		default:
			st.State = StateAuthenticated
		}
		return st
	}

	if e.inGrace && (snap.IsAuthenticated || role.Role.IsSet()) {
		st.State = StateAuthenticated
		st.IsAuthenticated = true
		st.InGracePeriod = true
		st.User = snap.User
		return st
	}

	st.Error = e.errMsg
	switch {
	case e.loggedOut:
		st.State = StateLoggedOut
	case e.errMsg != "":
		st.State = StateError
	default:
		st.State = StateUnauthenticated
	}
	return st
}

func (e *Engine) resetLatchesLocked() {
	e.errMsg = ""
	e.loggedOut = false
	e.hasRedirected = false
	if e.redirectTimer != nil {
		e.redirectTimer.Stop()
		e.redirectTimer = nil
	}
}

// recomputeNow replaces any pending debounced recompute with an immediate one.
func (e *Engine) recomputeNow() {
	e.debounce.Cancel()
	e.recompute()
}

/*
====================================
RENEWAL
====================================
*/

// check is one periodic validation pass.
func (e *Engine) check(ctx context.Context) {
	snap := e.sessions.Snapshot()
	token := snap.AccessToken
	if !snap.IsAuthenticated || token == "" || !e.config.Engine.AutoRefresh {
		e.recomputeNow()
		return
	}
	v := e.policy.Validate(token)
	switch {
	case !v.IsValid || v.IsExpired:
		e.Refresh(ctx)
		return
	case e.policy.WillExpireSoon(token, e.config.Engine.ExpiryThreshold) && !e.idle():
		e.Refresh(ctx)
		return
	}
	e.recomputeNow()
}

func (e *Engine) idle() bool {
	if e.config.Engine.IdleTimeout <= 0 {
		return false
	}
	e.mu.Lock()
	last := e.lastActivity
	e.mu.Unlock()
	return e.now().Sub(last) > e.config.Engine.IdleTimeout
}

// Refresh renews the access token through the single-flight coordinator and returns the
// shared outcome. Unrecoverable outcomes clear the session and schedule the one redirect.
func (e *Engine) Refresh(ctx context.Context) refresh.Result {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return refresh.Result{Retryable: true, ErrorType: refresh.ErrorCanceled, Err: ErrEngineClosed}
	}

	res := e.refresher.Refresh(ctx)
	if res.Shared {
		e.metricInc(MetricRefreshJoined)
	}
	e.recomputeNow()
	return res
}

// Retry re-runs the full status check, renewing when needed.
func (e *Engine) Retry(ctx context.Context) Status {
	e.check(WithTrigger(ctx, TriggerManual))
	return e.Status()
}

// ClearError drops the user-facing error. Authentication state is unchanged.
func (e *Engine) ClearError() {
	e.mu.Lock()
	e.errMsg = ""
	e.mu.Unlock()
	e.recomputeNow()
}

func (e *Engine) onRefreshComplete(ctx context.Context, res refresh.Result, d time.Duration) {
	switch res.Outcome() {
	case refresh.OutcomeSuccess:
		e.metricInc(MetricRefreshSuccess)
	case refresh.OutcomeRetrySilently:
		e.metricInc(MetricRefreshDeferred)
	case refresh.OutcomeMustLogout:
		e.metricInc(MetricRefreshFailure)
	}
	if res.Throttled || res.ErrorType == refresh.ErrorRateLimited {
		e.metricInc(MetricRefreshRateLimited)
	}
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricRefreshLatency, d)
	}
	e.emitRefreshAudit(ctx, res)
}

// onUnrecoverable runs once per must-logout flight, before its callers are released.
func (e *Engine) onUnrecoverable(ctx context.Context, res refresh.Result) {
	if res.ErrorType == refresh.ErrorNoSession {
		// nothing left to end: logged out meanwhile, or never signed in
		return
	}
	clearCtx := context.WithoutCancel(ctx)
	err := e.sessions.ClearFor(clearCtx, res.SessionEpoch)
	if errors.Is(err, session.ErrSessionSuperseded) {
		e.logger.Info("goSession: failed renewal belongs to a replaced session", "error_type", string(res.ErrorType))
		return
	}
	e.emitAudit(ctx, auditEventSessionEnded, false, res.Err, func() map[string]string {
		return map[string]string{"error_type": string(res.ErrorType)}
	})
	if err := errors.Join(err, e.roles.Clear(clearCtx)); err != nil {
		e.logger.Warn("goSession: clearing ended session incomplete", "error", err)
	}

	e.mu.Lock()
	e.errMsg = userMessage(res.ErrorType)
	if !e.closed && !e.hasRedirected && e.redirectTimer == nil {
		e.redirectTimer = time.AfterFunc(e.config.Engine.RedirectDelay, e.redirect)
	}
	e.mu.Unlock()
	e.recomputeNow()
}

func userMessage(t refresh.ErrorType) string {
	if t == refresh.ErrorNetwork {
		return "We could not reach the server to keep you signed in. Please sign in again."
	}
	return "Your session has expired. Please sign in again."
}

// redirect performs the single forced navigation to the login route.
func (e *Engine) redirect() {
	snap := e.sessions.Snapshot()

	e.mu.Lock()
	e.redirectTimer = nil
	if e.closed || e.hasRedirected {
		e.mu.Unlock()
		return
	}
	if snap.IsAuthenticated && snap.AccessToken != "" {
		// signed in again while the notice was showing
		e.errMsg = ""
		e.mu.Unlock()
		e.recomputeNow()
		return
	}
	e.hasRedirected = true
	e.loggedOut = true
	nav := e.navigator
	e.mu.Unlock()

	target := e.config.Routes.LoginRoute
	e.metricInc(MetricRedirect)
	e.emitAudit(e.ctx, auditEventRedirect, true, nil, func() map[string]string {
		return map[string]string{"target": target}
	})
	e.logger.Info("goSession: redirecting to login", "target", target)
	if nav != nil {
		nav.Navigate(target)
	}
	e.recomputeNow()
}

/*
====================================
LOGIN / LOGOUT
====================================
*/

// Login exchanges credentials for a session and installs it in both stores.
func (e *Engine) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, ErrEngineClosed
	}
	if !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}

	res := e.flows.Login(ctx, email, password)
	if res.Failure != flows.LoginFailureNone {
		err := loginError(res)
		if res.Failure == flows.LoginFailureRateLimited {
			e.metricInc(MetricLoginRateLimited)
			e.emitAudit(ctx, auditEventLoginRateLimited, false, err, nil)
		} else {
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, err, nil)
		}
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, nil, nil)
	e.recomputeNow()
	return &LoginResult{
		User:        res.Response.User,
		Role:        res.Response.Role,
		IsFirstTime: res.Response.IsFirstTime,
	}, nil
}

func loginError(res flows.LoginResult) error {
	switch res.Failure {
	case flows.LoginFailureRateLimited:
		return ErrLoginRateLimited
	case flows.LoginFailureRejected:
		return fmt.Errorf("%w: %w", ErrInvalidCredentials, res.Err)
	case flows.LoginFailureInvalidResponse:
		return fmt.Errorf("%w: %w", ErrInvalidResponse, res.Err)
	case flows.LoginFailureStore:
		return fmt.Errorf("%w: %w", ErrSessionStore, res.Err)
	default:
		return fmt.Errorf("%w: %w", ErrAuthUnavailable, res.Err)
	}
}

// onSession runs after a login installed a new session.
func (e *Engine) onSession() {
	e.refresher.ResetCooldown()
	e.mu.Lock()
	e.resetLatchesLocked()
	e.lastActivity = e.now()
	e.mu.Unlock()
}

// Logout clears both stores and tells the server, best effort. A second call finds nothing
// to clear and neither navigates nor fails.
func (e *Engine) Logout(ctx context.Context) error {
	hadSession := e.sessions.Token() != ""
	if hadSession {
		e.emitAudit(ctx, auditEventLogout, true, nil, nil)
	}

	res := e.flows.Logout(ctx)

	e.mu.Lock()
	e.errMsg = ""
	e.loggedOut = false
	if e.redirectTimer != nil {
		e.redirectTimer.Stop()
		e.redirectTimer = nil
	}
	nav := e.navigator
	closed := e.closed
	e.mu.Unlock()
	e.recomputeNow()

	if res.HadSession {
		e.metricInc(MetricLogout)
		if e.config.Engine.RedirectOnLogout && nav != nil && !closed {
			nav.Navigate(e.config.Routes.LoginRoute)
		}
	}
	if res.ClearErr != nil {
		return fmt.Errorf("%w: %w", ErrSessionStore, res.ClearErr)
	}
	return nil
}

// RecordActivity marks the user as active. Idle sessions skip proactive renewal.
func (e *Engine) RecordActivity() {
	e.mu.Lock()
	e.lastActivity = e.now()
	e.mu.Unlock()
}

/*
====================================
ROUTES / TRANSPORT
====================================
*/

// Evaluate decides access to path for the current status.
func (e *Engine) Evaluate(path string) route.Decision {
	st := e.Status()
	return e.routes.Evaluate(path, st.IsAuthenticated, st.Role)
}

// Routes returns the validated route table.
func (e *Engine) Routes() *route.Table {
	return e.routes
}

// HTTPClient returns a client that attaches the bearer token and renews on 401.
func (e *Engine) HTTPClient() *http.Client {
	return e.transport.Client()
}

// interceptorRefresher labels renewals started by the HTTP client.
type interceptorRefresher struct {
	e *Engine
}

func (r interceptorRefresher) Refresh(ctx context.Context) refresh.Result {
	return r.e.Refresh(WithTrigger(ctx, TriggerInterceptor))
}

/*
====================================
OBSERVABILITY
====================================
*/

// AuditDropped returns how many audit events were dropped because the buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}
