package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/MrEthical07/goSession/route"
)

type decisionContextKey struct{}

// DecisionFromContext returns the decision that let the request through [Guard.Handler].
func DecisionFromContext(ctx context.Context) (route.Decision, bool) {
	d, ok := ctx.Value(decisionContextKey{}).(route.Decision)
	return d, ok
}

// HandlerOptions customizes the non-allowed responses of [Guard.Handler].
type HandlerOptions struct {
	// Loading handles requests while the engine is initializing. Defaults to 503.
	Loading http.Handler
	// Denied handles denials without a redirect. Defaults to 403.
	Denied http.Handler
	// RetryAfter is advertised by the default loading response. Defaults to 1s.
	RetryAfter time.Duration
}

// Handler applies the guard to HTTP requests: loading answers 503 with Retry-After, a
// redirecting denial answers 302, any other denial 403, and allowed requests reach next
// with the decision in their context. The once-per-target latch of Resolve does not apply:
// every request is its own navigation.
func (g *Guard) Handler(next http.Handler, opts HandlerOptions) http.Handler {
	retryAfter := opts.RetryAfter
	if retryAfter <= 0 {
		retryAfter = time.Second
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st, d := g.decide(r.URL.Path)
		if st.IsLoading {
			if opts.Loading != nil {
				opts.Loading.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", strconv.Itoa(int((retryAfter+time.Second-1)/time.Second)))
			http.Error(w, "session initializing", http.StatusServiceUnavailable)
			return
		}

		switch {
		case d.IsAllowed:
			ctx := context.WithValue(r.Context(), decisionContextKey{}, d)
			next.ServeHTTP(w, r.WithContext(ctx))
		case g.redirect && d.ShouldRedirect:
			http.Redirect(w, r, d.RedirectTo, http.StatusFound)
		case opts.Denied != nil:
			ctx := context.WithValue(r.Context(), decisionContextKey{}, d)
			opts.Denied.ServeHTTP(w, r.WithContext(ctx))
		default:
			reason := d.Reason
			if reason == "" {
				reason = "forbidden"
			}
			http.Error(w, reason, http.StatusForbidden)
		}
	})
}
