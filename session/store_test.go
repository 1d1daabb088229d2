package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/MrEthical07/goSession/permission"
)

type failingStorage struct {
	getErr error
	setErr error
}

func (f failingStorage) Get(context.Context, string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return nil, ErrNotFound
}

func (f failingStorage) Set(context.Context, string, []byte) error { return f.setErr }

func (f failingStorage) Remove(context.Context, string) error { return f.setErr }

func testUser() User {
	return User{ID: "u-1", Email: "ada@example.com", FirstName: "Ada"}
}

func TestSetSessionNotifiesBeforeReturn(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryStorage())

	var got []State
	unsub := store.Subscribe(func(s State) { got = append(got, s) })
	defer unsub()

	if err := store.SetSession(ctx, "tok-1", "", testUser()); err != nil {
		t.Fatalf("set session: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one synchronous notification, got %d", len(got))
	}
	if !got[0].IsAuthenticated || got[0].AccessToken != "tok-1" || got[0].User.ID != "u-1" {
		t.Fatalf("unexpected notified state %+v", got[0])
	}
	if store.Token() != "tok-1" {
		t.Fatalf("expected token to be readable after return, got %q", store.Token())
	}
}

func TestUpdateTokenKeepsUserAndRefreshToken(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)

	if err := store.UpdateToken(ctx, "tok", ""); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if err := store.SetSession(ctx, "tok-1", "rt-1", testUser()); err != nil {
		t.Fatalf("set session: %v", err)
	}
	if err := store.UpdateToken(ctx, "tok-2", ""); err != nil {
		t.Fatalf("update token: %v", err)
	}
	snap := store.Snapshot()
	if snap.AccessToken != "tok-2" || snap.RefreshToken != "rt-1" || snap.User == nil || snap.User.FirstName != "Ada" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if err := store.UpdateToken(ctx, "", ""); !errors.Is(err, ErrEmptyToken) {
		t.Fatalf("expected ErrEmptyToken, got %v", err)
	}
}

func TestEpochGuardsTokenUpdatesAndClears(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	store := NewStore(storage)

	if err := store.SetSession(ctx, "tok-1", "rt-1", testUser()); err != nil {
		t.Fatalf("set session: %v", err)
	}
	first := store.Epoch()
	if err := store.UpdateTokenFor(ctx, first, "tok-2", ""); err != nil {
		t.Fatalf("update for current session: %v", err)
	}
	if store.Epoch() != first {
		t.Fatal("a token swap must keep the session epoch")
	}

	tests := []struct {
		name   string
		mutate func() error
	}{
		{"cleared", func() error { return store.Clear(ctx) }},
		{"replaced", func() error { return store.SetSession(ctx, "tok-9", "rt-9", User{ID: "u-2"}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stale := store.Epoch()
			if err := tt.mutate(); err != nil {
				t.Fatalf("mutate: %v", err)
			}
			before := store.Snapshot()
			if err := store.UpdateTokenFor(ctx, stale, "stale", ""); !errors.Is(err, ErrSessionSuperseded) {
				t.Fatalf("expected ErrSessionSuperseded, got %v", err)
			}
			if err := store.ClearFor(ctx, stale); !errors.Is(err, ErrSessionSuperseded) {
				t.Fatalf("expected ErrSessionSuperseded from ClearFor, got %v", err)
			}
			if after := store.Snapshot(); after.AccessToken != before.AccessToken || after.Epoch != before.Epoch {
				t.Fatalf("stale mutation changed the store: %+v", after)
			}
		})
	}

	if err := store.ClearFor(ctx, store.Epoch()); err != nil {
		t.Fatalf("clear for current session: %v", err)
	}
	if store.User() != nil || storage.Len() != 0 {
		t.Fatal("expected the current session to be cleared and removed")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	if err := store.SetSession(ctx, "tok", "", testUser()); err != nil {
		t.Fatalf("set session: %v", err)
	}
	snap := store.Snapshot()
	snap.User.FirstName = "Mallory"
	if store.User().FirstName != "Ada" {
		t.Fatal("snapshot mutation leaked into the store")
	}
}

func TestClearRemovesPersistedSession(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	store := NewStore(storage)

	if err := store.SetSession(ctx, "tok", "", testUser()); err != nil {
		t.Fatalf("set session: %v", err)
	}
	if storage.Len() != 1 {
		t.Fatalf("expected persisted session, got %d keys", storage.Len())
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	if storage.Len() != 0 {
		t.Fatalf("expected storage to be empty, got %d keys", storage.Len())
	}
	if store.User() != nil || store.Token() != "" {
		t.Fatal("expected empty session after clear")
	}
}

func TestHydrateRestoresAndFlipsOnce(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()

	first := NewStore(storage)
	if err := first.SetSession(ctx, "tok", "rt", testUser()); err != nil {
		t.Fatalf("set session: %v", err)
	}

	second := NewStore(storage)
	if second.HasHydrated() {
		t.Fatal("new store must start unhydrated")
	}
	var hydratedEvents int
	second.Subscribe(func(s State) {
		if s.HasHydrated {
			hydratedEvents++
		}
	})
	if err := second.Hydrate(ctx); err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	if err := second.Hydrate(ctx); err != nil {
		t.Fatalf("second hydrate: %v", err)
	}
	if hydratedEvents != 1 {
		t.Fatalf("expected exactly one hydration notification, got %d", hydratedEvents)
	}
	snap := second.Snapshot()
	if !snap.HasHydrated || !snap.IsAuthenticated || snap.AccessToken != "tok" || snap.RefreshToken != "rt" {
		t.Fatalf("unexpected hydrated snapshot %+v", snap)
	}
}

func TestHydrateHealsDanglingSession(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	blob := []byte(`{"v":2,"state":{"user":{"id":"u-1","email":"a@b.c","firstName":"A"},"accessToken":"","isAuthenticated":true}}`)
	if err := storage.Set(ctx, DefaultSessionKey, blob); err != nil {
		t.Fatalf("seed: %v", err)
	}

	store := NewStore(storage)
	if err := store.Hydrate(ctx); err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	snap := store.Snapshot()
	if snap.User != nil || snap.IsAuthenticated {
		t.Fatalf("expected healed empty session, got %+v", snap)
	}
	if storage.Len() != 0 {
		t.Fatal("expected dangling snapshot to be removed from storage")
	}
}

func TestHydrateCorruptBlobStartsEmpty(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	for _, blob := range []string{`not json`, `{"v":99,"state":{}}`, `{"state":{}}`} {
		if err := storage.Set(ctx, DefaultSessionKey, []byte(blob)); err != nil {
			t.Fatalf("seed: %v", err)
		}
		store := NewStore(storage)
		if err := store.Hydrate(ctx); err != nil {
			t.Fatalf("hydrate %q: %v", blob, err)
		}
		if snap := store.Snapshot(); snap.IsAuthenticated || !snap.HasHydrated {
			t.Fatalf("blob %q: unexpected snapshot %+v", blob, snap)
		}
	}
}

func TestMutationBeforeHydrationWins(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	stale := NewStore(storage)
	if err := stale.SetSession(ctx, "old", "", User{ID: "u-old"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	store := NewStore(storage)
	if err := store.SetSession(ctx, "new", "", testUser()); err != nil {
		t.Fatalf("set session: %v", err)
	}
	if err := store.Hydrate(ctx); err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	if store.Token() != "new" || store.User().ID != "u-1" {
		t.Fatalf("expected pre-hydration mutation to win, got %+v", store.Snapshot())
	}
}

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	store := NewStore(failingStorage{setErr: boom})

	err := store.SetSession(ctx, "tok", "", testUser())
	if !errors.Is(err, ErrPersist) || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped persist error, got %v", err)
	}
	if store.Token() != "tok" {
		t.Fatal("in-memory state must stand after a failed write")
	}
}

func TestHydrateReadFailureStillHydrates(t *testing.T) {
	store := NewStore(failingStorage{getErr: errors.New("offline")})
	err := store.Hydrate(context.Background())
	if !errors.Is(err, ErrHydrate) {
		t.Fatalf("expected ErrHydrate, got %v", err)
	}
	if !store.HasHydrated() {
		t.Fatal("store must be hydrated even when storage is unreadable")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	var calls int
	unsub := store.Subscribe(func(State) { calls++ })
	unsub()
	unsub()
	if err := store.SetSession(ctx, "tok", "", testUser()); err != nil {
		t.Fatalf("set session: %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no deliveries after unsubscribe, got %d", calls)
	}
}

func TestConcurrentMutationsAreSerialized(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryStorage())
	if err := store.SetSession(ctx, "tok-0", "", testUser()); err != nil {
		t.Fatalf("set session: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.UpdateToken(ctx, "tok-n", "")
			_ = store.Snapshot()
		}()
	}
	wg.Wait()
	if store.Token() != "tok-n" {
		t.Fatalf("unexpected token %q", store.Token())
	}
}

func TestRoleStoreIndependentPersistence(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	roles := NewRoleStore(storage)
	sessions := NewStore(storage)

	if roles.Role() != permission.RoleNone {
		t.Fatalf("expected NONE before any role, got %q", roles.Role())
	}
	if err := roles.SetRole(ctx, permission.RoleArtist); err != nil {
		t.Fatalf("set role: %v", err)
	}
	if err := sessions.SetSession(ctx, "tok", "", testUser()); err != nil {
		t.Fatalf("set session: %v", err)
	}
	if err := sessions.UpdateToken(ctx, "tok-2", ""); err != nil {
		t.Fatalf("update token: %v", err)
	}

	restored := NewRoleStore(storage)
	if err := restored.Hydrate(ctx); err != nil {
		t.Fatalf("hydrate role: %v", err)
	}
	if got := restored.Snapshot(); got.Role != permission.RoleArtist || !got.HasHydrated {
		t.Fatalf("unexpected role snapshot %+v", got)
	}

	if err := restored.Clear(ctx); err != nil {
		t.Fatalf("clear role: %v", err)
	}
	if _, err := storage.Get(ctx, DefaultRoleKey); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected role key removed, got %v", err)
	}
	if _, err := storage.Get(ctx, DefaultSessionKey); err != nil {
		t.Fatalf("session key must survive role clear: %v", err)
	}
}
