package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := New("redis://"+mr.Addr()+"/0", "test", time.Minute)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

type entry struct {
	Name string `json:"name"`
	N    int    `json:"n"`
}

func TestNilCache_IsNoOp(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	if c.Enabled() {
		t.Fatalf("nil cache should be disabled")
	}
	var dst entry
	if ok, err := c.GetJSON(ctx, "k", &dst); ok || err != nil {
		t.Fatalf("GetJSON on nil = (%v, %v)", ok, err)
	}
	if err := c.SetJSON(ctx, "k", entry{}, 0); err != nil {
		t.Fatalf("SetJSON on nil: %v", err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete on nil: %v", err)
	}
	if g, err := c.Generation(ctx, "ns"); g != 0 || err != nil {
		t.Fatalf("Generation on nil = (%d, %v)", g, err)
	}
	if err := c.Bump(ctx, "ns"); err != nil {
		t.Fatalf("Bump on nil: %v", err)
	}
	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping on nil: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close on nil: %v", err)
	}
}

func TestNew_EmptyAndInvalidURL(t *testing.T) {
	c, err := New("  ", "p", time.Second)
	if c != nil || err != nil {
		t.Fatalf("New(\"\") = (%v, %v); want (nil, nil)", c, err)
	}
	if _, err := New("http://not-redis", "p", time.Second); err == nil {
		t.Fatalf("expected error for non-redis scheme")
	}
}

func TestJSONRoundTripAndDelete(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	var miss entry
	if ok, err := c.GetJSON(ctx, "profile:1", &miss); ok || err != nil {
		t.Fatalf("expected miss, got (%v, %v)", ok, err)
	}

	if err := c.SetJSON(ctx, "profile:1", entry{Name: "Jane", N: 3}, 0); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	if !mr.Exists("test:profile:1") {
		t.Fatalf("key not stored under prefix")
	}
	if ttl := mr.TTL("test:profile:1"); ttl != time.Minute {
		t.Fatalf("default ttl = %v", ttl)
	}

	var got entry
	ok, err := c.GetJSON(ctx, "profile:1", &got)
	if err != nil || !ok || got.Name != "Jane" || got.N != 3 {
		t.Fatalf("GetJSON = (%v, %v, %+v)", ok, err, got)
	}

	if err := c.Delete(ctx, "profile:1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := c.GetJSON(ctx, "profile:1", &got); ok {
		t.Fatalf("expected miss after delete")
	}
}

func TestGetJSON_UndecodableValueIsEvicted(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if err := mr.Set("test:bad", "{not json"); err != nil {
		t.Fatal(err)
	}

	var dst entry
	if ok, err := c.GetJSON(ctx, "bad", &dst); ok || err != nil {
		t.Fatalf("GetJSON(bad) = (%v, %v)", ok, err)
	}
	if mr.Exists("test:bad") {
		t.Fatalf("undecodable value should be deleted")
	}
}

func TestGenerationBump(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	g0, err := c.Generation(ctx, "directory")
	if err != nil || g0 != 0 {
		t.Fatalf("Generation = (%d, %v)", g0, err)
	}
	if err := c.Bump(ctx, "directory"); err != nil {
		t.Fatalf("Bump: %v", err)
	}
	if g1, _ := c.Generation(ctx, "directory"); g1 != 1 {
		t.Fatalf("generation after bump = %d; want 1", g1)
	}
}

func TestSetJSON_ExplicitTTLExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if err := c.SetJSON(ctx, "directory:1:abc", entry{Name: "x"}, 5*time.Second); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	mr.FastForward(6 * time.Second)
	var dst entry
	if ok, err := c.GetJSON(ctx, "directory:1:abc", &dst); ok || err != nil {
		t.Fatalf("expired key = (%v, %v)", ok, err)
	}
}

func TestCache_ErrorsSurfaceWhenRedisIsDown(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	mr.Close()

	var dst entry
	if _, err := c.GetJSON(ctx, "k", &dst); err == nil {
		t.Fatal("GetJSON with redis down returned no error")
	}
	if err := c.Ping(ctx); err == nil {
		t.Fatal("Ping with redis down returned no error")
	}
}

func TestKeyPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	for _, prefix := range []string{"realty", "realty:"} {
		c := NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), prefix, time.Minute)
		if err := c.SetJSON(ctx, "profile:u1", entry{Name: prefix}, 0); err != nil {
			t.Fatalf("SetJSON: %v", err)
		}
		if !mr.Exists("realty:profile:u1") || mr.Exists("realty::profile:u1") {
			t.Fatalf("prefix %q stored keys %v", prefix, mr.Keys())
		}
		_ = c.Close()
	}
}

func TestNewWithClient_DefaultTTL(t *testing.T) {
	c := NewWithClient(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), "", 0)
	defer c.Close()
	if c.ttl != time.Minute || c.key("k") != "k" {
		t.Fatalf("unexpected defaults: ttl=%v key=%q", c.ttl, c.key("k"))
	}
}
