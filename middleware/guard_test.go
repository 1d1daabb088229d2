package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/permission"
	"github.com/MrEthical07/goSession/route"
)

type fakeSource struct {
	mu     sync.Mutex
	status goSession.Status
	table  *route.Table
}

func newFakeSource(t *testing.T) *fakeSource {
	t.Helper()
	table, err := route.NewTable([]route.Entry{
		{Path: "/login", Protection: route.GuestOnly},
		{Path: "/explore", Protection: route.Public},
		{Path: "/upload", Protection: route.Authenticated, RequiredRoles: []permission.Role{permission.RoleArtist}},
		{Path: "/settings", Protection: route.Authenticated},
	}, route.Options{})
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	return &fakeSource{
		status: goSession.Status{State: goSession.StateUnauthenticated, Role: permission.RoleNone},
		table:  table,
	}
}

func (f *fakeSource) set(st goSession.Status) {
	f.mu.Lock()
	f.status = st
	f.mu.Unlock()
}

func (f *fakeSource) Status() goSession.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeSource) Routes() *route.Table {
	return f.table
}

type countingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *countingNavigator) Navigate(path string) {
	n.mu.Lock()
	n.paths = append(n.paths, path)
	n.mu.Unlock()
}

func (n *countingNavigator) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.paths)
}

func authenticated(role permission.Role) goSession.Status {
	return goSession.Status{State: goSession.StateAuthenticated, IsAuthenticated: true, Role: role}
}

func TestResolveLoadingWhileInitializing(t *testing.T) {
	src := newFakeSource(t)
	src.set(goSession.Status{State: goSession.StateInitializing, IsLoading: true})
	nav := &countingNavigator{}
	g := NewGuard(src, WithNavigator(nav))

	if out := g.Resolve(context.Background(), "/settings"); out.View != ViewLoading {
		t.Fatalf("expected loading, got %s", out.View)
	}
	if nav.count() != 0 {
		t.Fatal("loading must not navigate")
	}
}

func TestResolveRedirectsOncePerTarget(t *testing.T) {
	src := newFakeSource(t)
	nav := &countingNavigator{}
	g := NewGuard(src, WithNavigator(nav))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := g.Resolve(context.Background(), "/settings")
			if out.View != ViewNothing || out.Decision.RedirectTo != "/login" {
				t.Errorf("unexpected outcome %+v", out)
			}
		}()
	}
	wg.Wait()
	if nav.count() != 1 {
		t.Fatalf("expected one navigation, got %d", nav.count())
	}

	// a different target for the same path navigates again
	src.set(authenticated(permission.RoleBuyer))
	g.Resolve(context.Background(), "/settings/")
	if out := g.Resolve(context.Background(), "/upload"); out.Decision.Reason != route.ReasonInsufficientRole {
		t.Fatalf("expected role denial, got %+v", out.Decision)
	}
	if nav.count() != 2 || nav.paths[1] != "/explore" {
		t.Fatalf("expected navigation to /explore, got %v", nav.paths)
	}
}

func TestResolveRearmsAfterAllowed(t *testing.T) {
	src := newFakeSource(t)
	nav := &countingNavigator{}
	g := NewGuard(src, WithNavigator(nav))

	g.Resolve(context.Background(), "/settings")
	src.set(authenticated(permission.RoleArtist))
	if out := g.Resolve(context.Background(), "/settings"); out.View != ViewChildren {
		t.Fatalf("expected children, got %s", out.View)
	}
	src.set(goSession.Status{State: goSession.StateLoggedOut, Role: permission.RoleNone})
	g.Resolve(context.Background(), "/settings")
	if nav.count() != 2 {
		t.Fatalf("expected a second navigation after re-denial, got %d", nav.count())
	}
}

func TestResolveDeniedWithoutRedirect(t *testing.T) {
	src := newFakeSource(t)
	nav := &countingNavigator{}
	g := NewGuard(src, WithNavigator(nav), WithRedirect(false))

	out := g.Resolve(context.Background(), "/settings")
	if out.View != ViewDenied || out.Decision.Reason != route.ReasonAuthRequired {
		t.Fatalf("expected denied, got %+v", out)
	}
	if nav.count() != 0 {
		t.Fatal("redirect disabled must not navigate")
	}
}

func TestResolveScenarioA(t *testing.T) {
	src := newFakeSource(t)
	src.set(authenticated(permission.RoleArtist))
	nav := &countingNavigator{}
	g := NewGuard(src, WithNavigator(nav))

	out := g.Resolve(context.Background(), "/login")
	if out.View != ViewNothing || !out.Decision.ShouldRedirect || out.Decision.RedirectTo != "/explore" {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestHandlerResponses(t *testing.T) {
	src := newFakeSource(t)
	g := NewGuard(src)
	var seen route.Decision
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d, ok := DecisionFromContext(r.Context())
		if !ok {
			t.Error("decision missing from context")
		}
		seen = d
		w.WriteHeader(http.StatusNoContent)
	})
	h := g.Handler(next, HandlerOptions{})

	serve := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	src.set(goSession.Status{State: goSession.StateInitializing, IsLoading: true})
	if rec := serve("/settings"); rec.Code != http.StatusServiceUnavailable || rec.Header().Get("Retry-After") != "1" {
		t.Fatalf("loading: %d %q", rec.Code, rec.Header().Get("Retry-After"))
	}

	src.set(goSession.Status{State: goSession.StateUnauthenticated})
	if rec := serve("/settings"); rec.Code != http.StatusFound || rec.Header().Get("Location") != "/login" {
		t.Fatalf("redirect: %d %q", rec.Code, rec.Header().Get("Location"))
	}

	src.set(authenticated(permission.RoleArtist))
	if rec := serve("/upload?draft=1"); rec.Code != http.StatusNoContent || !seen.IsAllowed || seen.Matched != "/upload" {
		t.Fatalf("allowed: %d %+v", rec.Code, seen)
	}
}

func TestHandlerDeniedWithoutRedirect(t *testing.T) {
	src := newFakeSource(t)
	src.set(authenticated(permission.RoleBuyer))
	g := NewGuard(src, WithRedirect(false))
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("next must not run on denial")
	})

	rec := httptest.NewRecorder()
	g.Handler(next, HandlerOptions{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/upload", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	var denied route.Decision
	custom := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		denied, _ = DecisionFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})
	rec = httptest.NewRecorder()
	g.Handler(next, HandlerOptions{Denied: custom}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/upload", nil))
	if rec.Code != http.StatusTeapot || denied.Reason != route.ReasonInsufficientRole {
		t.Fatalf("custom denied: %d %+v", rec.Code, denied)
	}
}

// flippingSource reports a different session on every Status call.
type flippingSource struct {
	*fakeSource
	calls int
}

func (f *flippingSource) Status() goSession.Status {
	f.calls++
	if f.calls%2 == 1 {
		return authenticated(permission.RoleArtist)
	}
	return goSession.Status{State: goSession.StateLoggedOut, Role: permission.RoleNone}
}

func TestResolveUsesOneStatusRead(t *testing.T) {
	src := &flippingSource{fakeSource: newFakeSource(t)}
	nav := &countingNavigator{}
	g := NewGuard(src, WithNavigator(nav))

	if out := g.Resolve(context.Background(), "/settings"); out.View != ViewChildren {
		t.Fatalf("expected children for the authenticated read, got %+v", out)
	}
	if src.calls != 1 {
		t.Fatalf("expected a single status read, got %d", src.calls)
	}
	if nav.count() != 0 {
		t.Fatal("no navigation expected")
	}
}

func TestResolveLatchesAreBounded(t *testing.T) {
	table, err := route.NewTable([]route.Entry{
		{Path: "/login", Protection: route.GuestOnly},
		{Path: "/files/[...rest]", Protection: route.Authenticated},
	}, route.Options{})
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	src := &fakeSource{status: goSession.Status{State: goSession.StateUnauthenticated}, table: table}
	nav := &countingNavigator{}
	g := NewGuard(src, WithNavigator(nav))

	for i := range maxRedirectLatches * 2 {
		if out := g.Resolve(context.Background(), fmt.Sprintf("/files/%d", i)); out.View != ViewNothing {
			t.Fatalf("expected a redirecting denial, got %+v", out)
		}
	}
	if nav.count() != maxRedirectLatches*2 {
		t.Fatalf("every new path navigates once, got %d", nav.count())
	}
	if n := g.latches(); n > maxRedirectLatches {
		t.Fatalf("latch map grew to %d", n)
	}
}
