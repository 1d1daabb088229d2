package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/session"
	"github.com/cenkalti/backoff/v5"
)

// RenewalFailureKind classifies renewal flow failures for coordinator-level mapping.
type RenewalFailureKind int

const (
	RenewalFailureNone RenewalFailureKind = iota
	RenewalFailureNoSession
	RenewalFailureRateLimited
	RenewalFailureUnauthorized
	RenewalFailureInvalidResponse
	RenewalFailureNetwork
	RenewalFailureCanceled
)

func (k RenewalFailureKind) String() string {
	switch k {
	case RenewalFailureNone:
		return "none"
	case RenewalFailureNoSession:
		return "no_session"
	case RenewalFailureRateLimited:
		return "rate_limited"
	case RenewalFailureUnauthorized:
		return "unauthorized"
	case RenewalFailureInvalidResponse:
		return "invalid_response"
	case RenewalFailureNetwork:
		return "network"
	case RenewalFailureCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// ErrorClass tells the renewal loop how to treat a failed call.
type ErrorClass int

const (
	// ErrorTransient failures are retried with backoff.
	ErrorTransient ErrorClass = iota
	// ErrorUnauthorized failures (401/403) end the session and are never retried.
	ErrorUnauthorized
	// ErrorInvalidResponse failures are schema violations and are never retried.
	ErrorInvalidResponse
)

// RenewalRequest is the body sent to the renewal endpoint.
type RenewalRequest struct {
	RefreshToken string
	UserID       string
	ExpiresIn    int
}

// RenewalResponse is the accepted renewal payload.
type RenewalResponse struct {
	AccessToken  string
	RefreshToken string
}

// RenewalResult carries either the new access token or failure metadata.
type RenewalResult struct {
	Failure     RenewalFailureKind
	Err         error
	AccessToken string
	Attempts    int
	// Epoch identifies the session the renewal ran for.
	Epoch uint64
	// Throttled is set when the cooldown refused the attempt but the current token was
	// still good enough to report success.
	Throttled bool
}

type RenewalSessionStore interface {
	Snapshot() session.State
	UpdateTokenFor(ctx context.Context, epoch uint64, accessToken, refreshToken string) error
}

type RenewalLimiter interface {
	Allow() bool
}

// RenewalDeps captures renewal flow dependencies.
type RenewalDeps struct {
	Session       RenewalSessionStore
	Limiter       RenewalLimiter
	Renew         func(context.Context, RenewalRequest) (RenewalResponse, error)
	Classify      func(error) ErrorClass
	TokenIsValid  func(string) bool
	TokenIsFresh  func(string) bool
	RenewalWindow func(string) time.Duration
	NewBackOff    func() backoff.BackOff
	MaxRetries    int
	OnRetry       func(attempt int, delay time.Duration, err error)
	Warn          func(string, ...any)
}

var errInvalidRenewalToken = errors.New("renewal returned an unusable access token")

// renewalFailure ends the retry loop with a known failure kind.
type renewalFailure struct {
	kind RenewalFailureKind
	err  error
}

func (f *renewalFailure) Error() string { return f.err.Error() }
func (f *renewalFailure) Unwrap() error { return f.err }

// RunRenewal performs one full renewal attempt: cooldown check, renewal call with
// retries, token validation, and the store update for the session it started with.
func RunRenewal(ctx context.Context, deps RenewalDeps) RenewalResult {
	snap := deps.Session.Snapshot()
	if snap.User == nil {
		return RenewalResult{Failure: RenewalFailureNoSession, Err: session.ErrNoSession, Epoch: snap.Epoch}
	}

	if deps.Limiter != nil && !deps.Limiter.Allow() {
		if snap.AccessToken != "" && deps.TokenIsFresh != nil && deps.TokenIsFresh(snap.AccessToken) {
			return RenewalResult{AccessToken: snap.AccessToken, Throttled: true, Epoch: snap.Epoch}
		}
		return RenewalResult{Failure: RenewalFailureRateLimited, Err: rate.ErrRateLimited, Epoch: snap.Epoch}
	}

	req := RenewalRequest{
		RefreshToken: snap.RefreshToken,
		UserID:       snap.User.ID,
		ExpiresIn:    int(deps.RenewalWindow(snap.AccessToken) / time.Second),
	}

	var (
		attempts int
		lastErr  error
	)
	op := func() (RenewalResponse, error) {
		attempts++
		resp, err := deps.Renew(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		switch deps.Classify(err) {
		case ErrorUnauthorized:
			return resp, backoff.Permanent(&renewalFailure{kind: RenewalFailureUnauthorized, err: err})
		case ErrorInvalidResponse:
			return resp, backoff.Permanent(&renewalFailure{kind: RenewalFailureInvalidResponse, err: err})
		}
		if ctx.Err() != nil {
			return resp, backoff.Permanent(&renewalFailure{kind: RenewalFailureCanceled, err: err})
		}
		return resp, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(deps.NewBackOff()),
		backoff.WithMaxTries(uint(max(deps.MaxRetries, 0) + 1)),
		// the flight context bounds the total time
		backoff.WithMaxElapsedTime(0),
	}
	if deps.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(func(err error, delay time.Duration) {
			deps.OnRetry(attempts, delay, err)
		}))
	}

	resp, err := backoff.Retry(ctx, op, opts...)
	if err != nil {
		res := RenewalResult{Failure: RenewalFailureNetwork, Err: err, Attempts: attempts, Epoch: snap.Epoch}
		var f *renewalFailure
		switch {
		case errors.As(err, &f):
			res.Failure, res.Err = f.kind, f.err
		case ctx.Err() != nil:
			res.Failure = RenewalFailureCanceled
			if lastErr != nil && !errors.Is(err, lastErr) {
				res.Err = errors.Join(lastErr, err)
			}
		}
		return res
	}

	if !deps.TokenIsValid(resp.AccessToken) {
		return RenewalResult{Failure: RenewalFailureInvalidResponse, Err: errInvalidRenewalToken, Attempts: attempts, Epoch: snap.Epoch}
	}
	if err := deps.Session.UpdateTokenFor(ctx, snap.Epoch, resp.AccessToken, resp.RefreshToken); err != nil {
		if errors.Is(err, session.ErrNoSession) || errors.Is(err, session.ErrSessionSuperseded) {
			// logged out, or signed in again, while the renewal was in flight
			return RenewalResult{Failure: RenewalFailureNoSession, Err: err, Attempts: attempts, Epoch: snap.Epoch}
		}
		if deps.Warn != nil {
			deps.Warn("goSession: renewed token not persisted", "error", err)
		}
	}
	return RenewalResult{AccessToken: resp.AccessToken, Attempts: attempts, Epoch: snap.Epoch}
}
