package billingconfig

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute, nil), mr
}

// liveEntry is the key readers consult for the current generation.
func liveEntry(mr *miniredis.Miniredis) string {
	gen, err := mr.Get(cacheGenKey)
	if err != nil {
		return entryKey(0)
	}
	n, _ := strconv.ParseInt(gen, 10, 64)
	return entryKey(n)
}

func TestStoreGetServedFromCache(t *testing.T) {
	cache, mr := newTestCache(t)
	repo := newMemoryConfigRepo()
	store := NewStore(repo, cache, nil, nil)
	ctx := context.Background()

	cfg, err := store.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, repo.resolves)
	require.True(t, mr.Exists(liveEntry(mr)))

	raw, err := mr.Get(liveEntry(mr))
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	require.IsType(t, float64(0), payload["price_per_unit"])

	cached, err := store.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, repo.resolves)
	require.True(t, cached.PricePerUnit.Equal(cfg.PricePerUnit))
}

func TestStoreUpdateInvalidatesCache(t *testing.T) {
	cache, mr := newTestCache(t)
	repo := newMemoryConfigRepo()
	store := NewStore(repo, cache, nil, nil)
	ctx := context.Background()

	_, err := store.Get(ctx)
	require.NoError(t, err)
	stale := liveEntry(mr)
	require.True(t, mr.Exists(stale))

	_, err = store.Update(ctx, UpdateInput{PricePerUnit: decPtr("7.25")})
	require.NoError(t, err)
	require.False(t, mr.Exists(stale))
	require.NotEqual(t, stale, liveEntry(mr))
	require.False(t, mr.Exists(liveEntry(mr)))

	cfg, err := store.Get(ctx)
	require.NoError(t, err)
	require.True(t, cfg.PricePerUnit.Equal(decimal.RequireFromString("7.25")))
	require.Equal(t, 2, repo.resolves)
}

func TestCacheFallsBackWhenRedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()
	cache := NewCache(client, time.Minute, nil)
	repo := newMemoryConfigRepo()
	store := NewStore(repo, cache, nil, nil)

	cfg, err := store.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 15, cfg.DueDateOffsetDays)
}

func TestCacheDiscardsLoadStartedBeforeInvalidate(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = cache.Fetch(ctx, func(context.Context) (*Config, error) {
			close(started)
			<-release
			old := Defaults()
			return &old, nil
		})
	}()
	<-started
	require.NoError(t, cache.Invalidate(ctx))
	close(release)
	<-done

	fresh := Defaults()
	fresh.PricePerUnit = decimal.RequireFromString("7.25")
	cfg, err := cache.Fetch(ctx, func(context.Context) (*Config, error) { return &fresh, nil })
	require.NoError(t, err)
	require.True(t, cfg.PricePerUnit.Equal(fresh.PricePerUnit))

	cached, err := cache.Fetch(ctx, func(context.Context) (*Config, error) {
		t.Fatal("loader called on a warm cache")
		return nil, nil
	})
	require.NoError(t, err)
	require.True(t, cached.PricePerUnit.Equal(fresh.PricePerUnit))
}
