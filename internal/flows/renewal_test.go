package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/session"
	"github.com/cenkalti/backoff/v5"
)

type zeroBackOff struct{}

func (zeroBackOff) NextBackOff() time.Duration { return 0 }
func (zeroBackOff) Reset()                     {}

// stepBackOff waits step, 2*step, 3*step, ...
type stepBackOff struct {
	step time.Duration
	n    int
}

func (b *stepBackOff) NextBackOff() time.Duration {
	b.n++
	return time.Duration(b.n) * b.step
}

func (b *stepBackOff) Reset() { b.n = 0 }

var (
	errUnauthorized = errors.New("401")
	errSchema       = errors.New("schema")
	errNetwork      = errors.New("dial tcp: refused")
)

func classify(err error) ErrorClass {
	switch {
	case errors.Is(err, errUnauthorized):
		return ErrorUnauthorized
	case errors.Is(err, errSchema):
		return ErrorInvalidResponse
	default:
		return ErrorTransient
	}
}

type denyLimiter struct{}

func (denyLimiter) Allow() bool { return false }

func newRenewalDeps(t *testing.T, store *session.Store, renew func(context.Context, RenewalRequest) (RenewalResponse, error)) RenewalDeps {
	t.Helper()
	return RenewalDeps{
		Session:       store,
		Renew:         renew,
		Classify:      classify,
		TokenIsValid:  func(tok string) bool { return tok != "" && tok != "garbage" },
		TokenIsFresh:  func(tok string) bool { return tok == "fresh" },
		RenewalWindow: func(string) time.Duration { return 15 * time.Minute },
		NewBackOff:    func() backoff.BackOff { return zeroBackOff{} },
		MaxRetries:    3,
	}
}

func seededStore(t *testing.T, token string) *session.Store {
	t.Helper()
	store := session.NewStore(nil)
	if err := store.SetSession(context.Background(), token, "rt-1", session.User{ID: "u-1"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return store
}

func TestRunRenewalSuccessUpdatesStore(t *testing.T) {
	store := seededStore(t, "old")
	var got RenewalRequest
	deps := newRenewalDeps(t, store, func(_ context.Context, req RenewalRequest) (RenewalResponse, error) {
		got = req
		return RenewalResponse{AccessToken: "new", RefreshToken: "rt-2"}, nil
	})

	res := RunRenewal(context.Background(), deps)
	if res.Failure != RenewalFailureNone || res.AccessToken != "new" || res.Attempts != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if got.UserID != "u-1" || got.RefreshToken != "rt-1" || got.ExpiresIn != 900 {
		t.Fatalf("unexpected request %+v", got)
	}
	if store.Token() != "new" || store.RefreshToken() != "rt-2" {
		t.Fatalf("store not updated: %+v", store.Snapshot())
	}
}

func TestRunRenewalNoSession(t *testing.T) {
	calls := 0
	deps := newRenewalDeps(t, session.NewStore(nil), func(context.Context, RenewalRequest) (RenewalResponse, error) {
		calls++
		return RenewalResponse{}, nil
	})
	res := RunRenewal(context.Background(), deps)
	if res.Failure != RenewalFailureNoSession || calls != 0 {
		t.Fatalf("expected no-session without a call, got %+v calls=%d", res, calls)
	}
}

func TestRunRenewalUnauthorizedNeverRetried(t *testing.T) {
	calls := 0
	deps := newRenewalDeps(t, seededStore(t, "old"), func(context.Context, RenewalRequest) (RenewalResponse, error) {
		calls++
		return RenewalResponse{}, errUnauthorized
	})
	res := RunRenewal(context.Background(), deps)
	if res.Failure != RenewalFailureUnauthorized || calls != 1 {
		t.Fatalf("expected single unauthorized attempt, got %+v calls=%d", res, calls)
	}
}

func TestRunRenewalRetriesThenSucceeds(t *testing.T) {
	calls := 0
	var retried []int
	deps := newRenewalDeps(t, seededStore(t, "old"), func(context.Context, RenewalRequest) (RenewalResponse, error) {
		calls++
		if calls < 3 {
			return RenewalResponse{}, errNetwork
		}
		return RenewalResponse{AccessToken: "new"}, nil
	})
	deps.OnRetry = func(attempt int, _ time.Duration, _ error) { retried = append(retried, attempt) }

	res := RunRenewal(context.Background(), deps)
	if res.Failure != RenewalFailureNone || res.Attempts != 3 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(retried) != 2 {
		t.Fatalf("expected two retries, got %v", retried)
	}
}

func TestRunRenewalExhaustsRetries(t *testing.T) {
	calls := 0
	deps := newRenewalDeps(t, seededStore(t, "old"), func(context.Context, RenewalRequest) (RenewalResponse, error) {
		calls++
		return RenewalResponse{}, errNetwork
	})
	res := RunRenewal(context.Background(), deps)
	if res.Failure != RenewalFailureNetwork || calls != 4 {
		t.Fatalf("expected network failure after 1+3 attempts, got %+v calls=%d", res, calls)
	}
}

func TestRunRenewalInvalidResponse(t *testing.T) {
	store := seededStore(t, "old")
	deps := newRenewalDeps(t, store, func(context.Context, RenewalRequest) (RenewalResponse, error) {
		return RenewalResponse{AccessToken: "garbage"}, nil
	})
	res := RunRenewal(context.Background(), deps)
	if res.Failure != RenewalFailureInvalidResponse {
		t.Fatalf("expected invalid response, got %+v", res)
	}
	if store.Token() != "old" {
		t.Fatal("invalid token must not reach the store")
	}

	deps.Renew = func(context.Context, RenewalRequest) (RenewalResponse, error) {
		return RenewalResponse{}, errSchema
	}
	if res := RunRenewal(context.Background(), deps); res.Failure != RenewalFailureInvalidResponse || res.Attempts != 1 {
		t.Fatalf("expected schema error without retry, got %+v", res)
	}
}

func TestRunRenewalThrottled(t *testing.T) {
	deps := newRenewalDeps(t, seededStore(t, "fresh"), func(context.Context, RenewalRequest) (RenewalResponse, error) {
		t.Fatal("throttled renewal must not call the server")
		return RenewalResponse{}, nil
	})
	deps.Limiter = denyLimiter{}

	res := RunRenewal(context.Background(), deps)
	if res.Failure != RenewalFailureNone || !res.Throttled || res.AccessToken != "fresh" {
		t.Fatalf("expected throttled success, got %+v", res)
	}

	deps.Session = seededStore(t, "stale")
	res = RunRenewal(context.Background(), deps)
	if res.Failure != RenewalFailureRateLimited || !errors.Is(res.Err, rate.ErrRateLimited) {
		t.Fatalf("expected rate limited, got %+v", res)
	}
}

func TestRunRenewalCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	deps := newRenewalDeps(t, seededStore(t, "old"), func(context.Context, RenewalRequest) (RenewalResponse, error) {
		calls++
		return RenewalResponse{}, errNetwork
	})
	deps.NewBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Hour) }
	deps.OnRetry = func(int, time.Duration, error) { cancel() }

	done := make(chan RenewalResult, 1)
	go func() { done <- RunRenewal(ctx, deps) }()
	select {
	case res := <-done:
		if res.Failure != RenewalFailureCanceled || calls != 1 {
			t.Fatalf("expected canceled after one attempt, got %+v calls=%d", res, calls)
		}
		if !errors.Is(res.Err, errNetwork) {
			t.Fatalf("expected the last call error to be kept, got %v", res.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancellation did not interrupt the backoff wait")
	}
}

func TestRunRenewalBackOffDrivesDelays(t *testing.T) {
	var delays []time.Duration
	deps := newRenewalDeps(t, seededStore(t, "old"), func(context.Context, RenewalRequest) (RenewalResponse, error) {
		return RenewalResponse{}, errNetwork
	})
	deps.MaxRetries = 2
	deps.NewBackOff = func() backoff.BackOff { return &stepBackOff{step: time.Millisecond} }
	deps.OnRetry = func(attempt int, d time.Duration, _ error) {
		if attempt != len(delays)+1 {
			t.Errorf("retry %d reported attempt %d", len(delays)+1, attempt)
		}
		delays = append(delays, d)
	}

	res := RunRenewal(context.Background(), deps)
	if res.Failure != RenewalFailureNetwork || res.Attempts != 3 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(delays) != 2 || delays[0] != time.Millisecond || delays[1] != 2*time.Millisecond {
		t.Fatalf("unexpected delays %v", delays)
	}
}

func TestRunRenewalStopEndsRetries(t *testing.T) {
	calls := 0
	deps := newRenewalDeps(t, seededStore(t, "old"), func(context.Context, RenewalRequest) (RenewalResponse, error) {
		calls++
		return RenewalResponse{}, errNetwork
	})
	deps.NewBackOff = func() backoff.BackOff { return &backoff.StopBackOff{} }
	res := RunRenewal(context.Background(), deps)
	if res.Failure != RenewalFailureNetwork || calls != 1 {
		t.Fatalf("expected a stopped backoff to end after one call, got %+v calls=%d", res, calls)
	}
}

func TestRunRenewalZeroRetries(t *testing.T) {
	calls := 0
	deps := newRenewalDeps(t, seededStore(t, "old"), func(context.Context, RenewalRequest) (RenewalResponse, error) {
		calls++
		return RenewalResponse{}, errNetwork
	})
	deps.MaxRetries = 0
	if res := RunRenewal(context.Background(), deps); res.Failure != RenewalFailureNetwork || calls != 1 {
		t.Fatalf("expected a single attempt, got %+v calls=%d", res, calls)
	}
}

func TestRunRenewalLoggedOutMidFlight(t *testing.T) {
	store := seededStore(t, "old")
	deps := newRenewalDeps(t, store, func(ctx context.Context, _ RenewalRequest) (RenewalResponse, error) {
		if err := store.Clear(ctx); err != nil {
			t.Fatalf("clear: %v", err)
		}
		return RenewalResponse{AccessToken: "new"}, nil
	})
	res := RunRenewal(context.Background(), deps)
	if res.Failure != RenewalFailureNoSession {
		t.Fatalf("expected no-session after concurrent logout, got %+v", res)
	}
	if store.Token() != "" {
		t.Fatal("renewal must not resurrect a cleared session")
	}
}

func TestRunRenewalSessionReplacedMidFlight(t *testing.T) {
	store := seededStore(t, "old")
	deps := newRenewalDeps(t, store, func(ctx context.Context, _ RenewalRequest) (RenewalResponse, error) {
		if err := store.Clear(ctx); err != nil {
			t.Fatalf("clear: %v", err)
		}
		if err := store.SetSession(ctx, "second-login", "rt-9", session.User{ID: "u-1"}); err != nil {
			t.Fatalf("set: %v", err)
		}
		return RenewalResponse{AccessToken: "new", RefreshToken: "rt-2"}, nil
	})
	res := RunRenewal(context.Background(), deps)
	if res.Failure != RenewalFailureNoSession || !errors.Is(res.Err, session.ErrSessionSuperseded) {
		t.Fatalf("expected superseded no-session, got %+v", res)
	}
	if store.Token() != "second-login" || store.RefreshToken() != "rt-9" {
		t.Fatalf("renewal overwrote the newer session: %+v", store.Snapshot())
	}
}
