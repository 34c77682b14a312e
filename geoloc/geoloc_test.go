package geoloc

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"verda/models"

	"github.com/redis/go-redis/v9"
)

type fakeStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeStore) Get(ctx context.Context, key string) *redis.StringCmd {
	if v, ok := f.data[key]; ok {
		return redis.NewStringResult(v, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (f *fakeStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = expiration
	return redis.NewStatusCmd(ctx)
}

func TestCacheRoundTrip(t *testing.T) {
	store := newFakeStore()
	cache := New(store)
	ctx := context.Background()

	pt := models.GeoPoint{Lat: 52.52, Lng: 13.405}
	if err := cache.Set(ctx, "u1", pt); err != nil {
		t.Fatal(err)
	}

	got, ok, err := cache.Get(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got != pt {
		t.Fatalf("got %+v, want %+v", got, pt)
	}
}

func TestCacheMiss(t *testing.T) {
	cache := New(newFakeStore())

	_, ok, err := cache.Get(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("miss must not be an error, got %v", err)
	}
	if ok {
		t.Fatal("expected cache miss")
	}
}

func TestCacheTTL(t *testing.T) {
	store := newFakeStore()
	cache := New(store)
	ctx := context.Background()

	if err := cache.Set(ctx, "u1", models.GeoPoint{Lat: 1, Lng: 2}); err != nil {
		t.Fatal(err)
	}
	if ttl := store.ttls["geoloc:last:u1"]; ttl != DefaultTTL {
		t.Fatalf("ttl = %v, want %v", ttl, DefaultTTL)
	}

	cache.TTL = time.Minute
	if err := cache.Set(ctx, "u2", models.GeoPoint{Lat: 1, Lng: 2}); err != nil {
		t.Fatal(err)
	}
	if ttl := store.ttls["geoloc:last:u2"]; ttl != time.Minute {
		t.Fatalf("ttl = %v, want overridden 1m", ttl)
	}
}

func TestCacheKeysAreScopedPerOwner(t *testing.T) {
	store := newFakeStore()
	cache := New(store)
	ctx := context.Background()

	if err := cache.Set(ctx, "a", models.GeoPoint{Lat: 1, Lng: 1}); err != nil {
		t.Fatal(err)
	}
	if err := cache.Set(ctx, "b", models.GeoPoint{Lat: 2, Lng: 2}); err != nil {
		t.Fatal(err)
	}

	got, ok, err := cache.Get(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("lookup a: ok=%v err=%v", ok, err)
	}
	if got.Lat != 1 {
		t.Fatalf("owner a got owner b's location: %+v", got)
	}
}

func TestCacheCorruptEntry(t *testing.T) {
	store := newFakeStore()
	store.data["geoloc:last:u1"] = "{not json"
	cache := New(store)

	_, ok, err := cache.Get(context.Background(), "u1")
	if err == nil {
		t.Fatal("expected decode error")
	}
	if ok {
		t.Fatal("corrupt entry must not read as a hit")
	}
}

func TestCacheStoresJSON(t *testing.T) {
	store := newFakeStore()
	cache := New(store)

	if err := cache.Set(context.Background(), "u1", models.GeoPoint{Lat: 52.52, Lng: 13.405}); err != nil {
		t.Fatal(err)
	}

	var pt models.GeoPoint
	if err := json.Unmarshal([]byte(store.data["geoloc:last:u1"]), &pt); err != nil {
		t.Fatalf("stored value is not json: %v", err)
	}
}
