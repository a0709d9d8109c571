package utils

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type cachedThing struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func newTestCache(t *testing.T) (*RedisCache[cachedThing], *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache[cachedThing](client, time.Minute), mr
}

func TestRedisCacheGetSetDelete(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)

	got, err := cache.Get(ctx, 1)
	if err != nil || got != nil {
		t.Fatalf("expected miss, got %v %v", got, err)
	}

	if err := cache.Set(ctx, 1, &cachedThing{ID: 1, Name: "cemento"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !mr.Exists("cachedThing:1") {
		t.Fatalf("expected key cachedThing:1, keys=%v", mr.Keys())
	}
	if ttl := mr.TTL("cachedThing:1"); ttl != time.Minute {
		t.Fatalf("expected ttl 1m, got %s", ttl)
	}

	got, err = cache.Get(ctx, 1)
	if err != nil || got == nil || got.Name != "cemento" {
		t.Fatalf("expected hit, got %+v %v", got, err)
	}

	if err := cache.SetList(ctx, "ACERO|", []*cachedThing{{ID: 1}}); err != nil {
		t.Fatalf("SetList: %v", err)
	}
	list, err := cache.GetList(ctx, "ACERO|")
	if err != nil || len(list) != 1 {
		t.Fatalf("expected cached list, got %v %v", list, err)
	}

	if err := cache.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("expected every key removed, got %v", mr.Keys())
	}
}

func TestRedisCacheDeleteScansEveryListKey(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)

	// more list keys than one SCAN page, plus a key of another type
	for i := 0; i < 250; i++ {
		if err := cache.SetList(ctx, fmt.Sprintf("q%d", i), []*cachedThing{{ID: i}}); err != nil {
			t.Fatalf("SetList: %v", err)
		}
	}
	if err := mr.Set("otherThingList:x", "[]"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := cache.Delete(ctx); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	keys := mr.Keys()
	if len(keys) != 1 || keys[0] != "otherThingList:x" {
		t.Fatalf("expected only the foreign key to survive, got %d keys", len(keys))
	}
}

func TestRedisCacheNilClientIsNoop(t *testing.T) {
	ctx := context.Background()
	cache := NewRedisCache[cachedThing](nil, time.Minute)
	if err := cache.Set(ctx, 1, &cachedThing{ID: 1}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, err := cache.Get(ctx, 1); got != nil || err != nil {
		t.Fatalf("expected miss, got %v %v", got, err)
	}
	if err := cache.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if cache.Enabled() {
		t.Fatalf("cache without client reports enabled")
	}
	var nilCache *RedisCache[cachedThing]
	if nilCache.Enabled() {
		t.Fatalf("nil cache reports enabled")
	}
	if got, err := nilCache.Get(ctx, 1); got != nil || err != nil {
		t.Fatalf("expected miss on nil cache, got %v %v", got, err)
	}
}

func TestParseDecimal(t *testing.T) {
	if _, err := ParseDecimal("  "); err == nil {
		t.Fatalf("expected error for blank input")
	}
	if _, err := ParseDecimal("12,5"); err == nil {
		t.Fatalf("expected error for comma decimal")
	}
	d, err := ParseDecimal(" 12.50 ")
	if err != nil || d.String() != "12.5" {
		t.Fatalf("got %s %v", d, err)
	}
}
