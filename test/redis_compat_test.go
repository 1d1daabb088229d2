//go:build integration

package test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/permission"
	"github.com/MrEthical07/goSession/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// redisMode describes which Redis backend the compatibility suite is running against.
type redisMode struct {
	name  string
	setup func(t *testing.T) redis.UniversalClient
}

// redisModes returns the backends to test. miniredis always runs; a standalone server
// joins when REDIS_ADDR is set, a cluster when REDIS_CLUSTER_ADDRS is set.
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{{
		name: "miniredis",
		setup: func(t *testing.T) redis.UniversalClient {
			mr := miniredis.RunT(t)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = rdb.Close() })
			return rdb
		},
	}}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "standalone:" + addr,
			setup: func(t *testing.T) redis.UniversalClient {
				return dial(t, redis.NewClient(&redis.Options{Addr: addr}))
			},
		})
	}
	if addrs := os.Getenv("REDIS_CLUSTER_ADDRS"); addrs != "" {
		modes = append(modes, redisMode{
			name: "cluster",
			setup: func(t *testing.T) redis.UniversalClient {
				return dial(t, redis.NewClusterClient(&redis.ClusterOptions{Addrs: splitAddrs(addrs)}))
			},
		})
	}
	return modes
}

func dial(t *testing.T, rdb redis.UniversalClient) redis.UniversalClient {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		t.Skipf("cannot reach redis: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func splitAddrs(s string) []string {
	var addrs []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	return addrs
}

// testPrefix isolates each run on shared servers.
func testPrefix(t *testing.T) string {
	return "gs-it-" + strings.NewReplacer("/", "-", " ", "-").Replace(t.Name())
}

func TestRedisStorageCompat(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			ctx := context.Background()
			st := session.NewRedisStorage(mode.setup(t), testPrefix(t), time.Minute)
			t.Cleanup(func() { _ = st.Remove(context.Background(), "k") })

			if _, err := st.Get(ctx, "k"); !errors.Is(err, session.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			if err := st.Set(ctx, "k", []byte("v1")); err != nil {
				t.Fatalf("Set: %v", err)
			}
			got, err := st.Get(ctx, "k")
			if err != nil || string(got) != "v1" {
				t.Fatalf("Get = %q, %v", got, err)
			}
			if err := st.Remove(ctx, "k"); err != nil {
				t.Fatalf("Remove: %v", err)
			}
			if err := st.Remove(ctx, "k"); err != nil {
				t.Fatalf("second Remove: %v", err)
			}
			if err := st.Ping(ctx); err != nil {
				t.Fatalf("Ping: %v", err)
			}
		})
	}
}

// Two clients sharing a backend see each other's writes after hydrating, the way a
// second tab picks up a login from the first.
func TestSessionVisibleToSecondClient(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			ctx := context.Background()
			rdb := mode.setup(t)
			prefix := testPrefix(t)
			a := session.NewRedisStorage(rdb, prefix, 0)
			b := session.NewRedisStorage(rdb, prefix, 0)

			writer := session.NewStore(a)
			writerRoles := session.NewRoleStore(a)
			if err := writerRoles.SetRole(ctx, permission.RoleAdmin); err != nil {
				t.Fatalf("SetRole: %v", err)
			}
			if err := writer.SetSession(ctx, "tok", "ref", session.User{ID: "u-1", Email: "ada@example.com"}); err != nil {
				t.Fatalf("SetSession: %v", err)
			}

			reader := session.NewStore(b)
			readerRoles := session.NewRoleStore(b)
			if err := reader.Hydrate(ctx); err != nil {
				t.Fatalf("Hydrate: %v", err)
			}
			if err := readerRoles.Hydrate(ctx); err != nil {
				t.Fatalf("Hydrate roles: %v", err)
			}
			snap := reader.Snapshot()
			if !snap.IsAuthenticated || snap.AccessToken != "tok" || snap.RefreshToken != "ref" || snap.User.ID != "u-1" {
				t.Fatalf("unexpected snapshot %+v", snap)
			}
			if readerRoles.Role() != permission.RoleAdmin {
				t.Fatalf("expected ADMIN, got %s", readerRoles.Role())
			}

			if err := writer.Clear(ctx); err != nil {
				t.Fatalf("Clear: %v", err)
			}
			if err := writerRoles.Clear(ctx); err != nil {
				t.Fatalf("Clear roles: %v", err)
			}
			fresh := session.NewStore(b)
			if err := fresh.Hydrate(ctx); err != nil {
				t.Fatalf("Hydrate after clear: %v", err)
			}
			if fresh.Snapshot().IsAuthenticated {
				t.Fatal("cleared session still visible")
			}
		})
	}
}

func TestRedisTTLExpiresSession(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	st := session.NewRedisStorage(rdb, "gs", time.Minute)
	if err := session.NewStore(st).SetSession(ctx, "tok", "", session.User{ID: "u-1", Email: "ada@example.com"}); err != nil {
		t.Fatalf("SetSession: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	s := session.NewStore(st)
	if err := s.Hydrate(ctx); err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	if s.Snapshot().IsAuthenticated {
		t.Fatal("expected session to expire with the key ttl")
	}
}
