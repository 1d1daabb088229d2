package middleware

import (
	"context"
	"log/slog"
	"sync"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/route"
)

// View is what the caller should render for a path.
type View int

const (
	// ViewLoading is rendered until the engine leaves Initializing.
	ViewLoading View = iota
	// ViewNothing means a navigation away was performed or is already underway.
	ViewNothing
	// ViewDenied is the caller's access denied view, used when redirects are disabled.
	ViewDenied
	// ViewChildren renders the protected content.
	ViewChildren
)

func (v View) String() string {
	switch v {
	case ViewLoading:
		return "loading"
	case ViewNothing:
		return "nothing"
	case ViewDenied:
		return "denied"
	case ViewChildren:
		return "children"
	default:
		return "unknown"
	}
}

// Outcome is the result of [Guard.Resolve].
type Outcome struct {
	View     View
	Decision route.Decision
}

// Source supplies the status and the route table. *goSession.Engine satisfies it.
type Source interface {
	Status() goSession.Status
	Routes() *route.Table
}

// maxRedirectLatches bounds the per-path latch map. Past it an arbitrary latch is dropped,
// which at worst repeats one navigation.
const maxRedirectLatches = 512

// Option configures a [Guard].
type Option func(*Guard)

// WithRedirect enables or disables navigation on denial. Enabled by default.
func WithRedirect(enabled bool) Option {
	return func(g *Guard) {
		g.redirect = enabled
	}
}

// WithNavigator sets who performs the navigation on denial.
func WithNavigator(n goSession.Navigator) Option {
	return func(g *Guard) {
		g.navigator = n
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) {
		if l != nil {
			g.logger = l
		}
	}
}

// Guard maps engine status and route decisions onto views. It is safe for concurrent use.
type Guard struct {
	source    Source
	navigator goSession.Navigator
	redirect  bool
	logger    *slog.Logger

	mu sync.Mutex
	// redirected holds the target already navigated to for each denied path.
	redirected map[string]string
}

// NewGuard returns a Guard over src.
func NewGuard(src Source, opts ...Option) *Guard {
	g := &Guard{
		source:     src,
		redirect:   true,
		logger:     slog.Default(),
		redirected: make(map[string]string),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Resolve decides what to render for path and navigates when a denial calls for it.
func (g *Guard) Resolve(ctx context.Context, path string) Outcome {
	st, d := g.decide(path)
	if st.IsLoading {
		return Outcome{View: ViewLoading}
	}

	key := route.Normalize(path)
	if d.IsAllowed {
		g.mu.Lock()
		delete(g.redirected, key)
		g.mu.Unlock()
		return Outcome{View: ViewChildren, Decision: d}
	}
	if !g.redirect || !d.ShouldRedirect {
		return Outcome{View: ViewDenied, Decision: d}
	}

	g.mu.Lock()
	prev, done := g.redirected[key]
	first := !done || prev != d.RedirectTo
	if first {
		if !done && len(g.redirected) >= maxRedirectLatches {
			for k := range g.redirected {
				delete(g.redirected, k)
				break
			}
		}
		g.redirected[key] = d.RedirectTo
	}
	g.mu.Unlock()

	if first && g.navigator != nil {
		g.logger.DebugContext(ctx, "goSession: guard redirect", "path", key, "target", d.RedirectTo, "reason", d.Reason)
		g.navigator.Navigate(d.RedirectTo)
	}
	return Outcome{View: ViewNothing, Decision: d}
}

// decide reads the status once and evaluates path against that same status.
func (g *Guard) decide(path string) (goSession.Status, route.Decision) {
	st := g.source.Status()
	if st.IsLoading {
		return st, route.Decision{}
	}
	return st, g.source.Routes().Evaluate(path, st.IsAuthenticated, st.Role)
}

// latches reports how many paths hold a redirect latch.
func (g *Guard) latches() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.redirected)
}
