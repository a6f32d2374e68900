package querycache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listResult struct {
	Items []string `json:"items"`
}

func TestKey_RoundTrip(t *testing.T) {
	key := NewKey("products", "page", "2", "per_page", "10", "search", "tofu", "is_active", "")

	parsed, err := ParseKey(key.String())
	require.NoError(t, err)

	assert.Equal(t, "products", parsed.Entity)
	assert.Equal(t, "2", parsed.Params.Get("page"))
	assert.Equal(t, "tofu", parsed.Params.Get("search"))
	assert.False(t, parsed.Params.Has("is_active"))
	assert.Equal(t, key.String(), parsed.String())
}

func TestParseKey_RejectsForeignKeys(t *testing.T) {
	_, err := ParseKey("session:abc")
	assert.Error(t, err)
}

func TestMemoryStore_DropsOlderSequence(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	stored, err := store.SetIfNewer(ctx, "k", 5, []byte("five"), 0)
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = store.SetIfNewer(ctx, "k", 4, []byte("four"), 0)
	require.NoError(t, err)
	assert.False(t, stored)

	stored, err = store.SetIfNewer(ctx, "k", 5, []byte("five again"), 0)
	require.NoError(t, err)
	assert.True(t, stored)

	value, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "five again", string(value))
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }

	_, err := store.SetIfNewer(ctx, "k", 1, []byte("v"), time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestCache_FetchMissThenHit(t *testing.T) {
	ctx := context.Background()
	cache := New(NewMemoryStore(), time.Minute)
	key := NewKey("categories", "page", "1", "per_page", "10")

	var calls atomic.Int32
	fetch := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return listResult{Items: []string{"a", "b"}}, nil
	}

	var first, second listResult
	require.NoError(t, cache.Fetch(ctx, key, &first, fetch))
	require.NoError(t, cache.Fetch(ctx, key, &second, fetch))

	assert.Equal(t, []string{"a", "b"}, first.Items)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCache_FetchErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	cache := New(NewMemoryStore(), time.Minute)
	key := NewKey("categories", "page", "1")

	boom := errors.New("backend down")
	var out listResult
	err := cache.Fetch(ctx, key, &out, func(ctx context.Context) (any, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	keys, err := cache.Keys(ctx, "categories")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestCache_InvalidateServesStaleAndRefetches(t *testing.T) {
	ctx := context.Background()
	cache := New(NewMemoryStore(), time.Minute)
	key := NewKey("products", "page", "1", "per_page", "10")

	version := "old"
	fetch := func(ctx context.Context) (any, error) {
		return listResult{Items: []string{version}}, nil
	}

	var out listResult
	require.NoError(t, cache.Fetch(ctx, key, &out, fetch))
	require.NoError(t, cache.Invalidate(ctx, "products"))

	version = "new"
	require.NoError(t, cache.Fetch(ctx, key, &out, fetch))
	assert.Equal(t, []string{"old"}, out.Items, "stale data stays visible while refetching")

	cache.Wait()

	require.NoError(t, cache.Fetch(ctx, key, &out, fetch))
	assert.Equal(t, []string{"new"}, out.Items)
}

func TestCache_InvalidateOnlyTouchesEntity(t *testing.T) {
	ctx := context.Background()
	cache := New(NewMemoryStore(), time.Minute)

	var lookups []string
	cache.observe = func(entity, result string) { lookups = append(lookups, entity+":"+result) }

	fetch := func(ctx context.Context) (any, error) { return listResult{}, nil }
	var out listResult
	require.NoError(t, cache.Fetch(ctx, NewKey("products", "page", "1"), &out, fetch))
	require.NoError(t, cache.Fetch(ctx, NewKey("categories", "page", "1"), &out, fetch))

	require.NoError(t, cache.Invalidate(ctx, "products"))

	require.NoError(t, cache.Fetch(ctx, NewKey("categories", "page", "1"), &out, fetch))
	require.NoError(t, cache.Fetch(ctx, NewKey("products", "page", "1"), &out, fetch))
	cache.Wait()

	assert.Equal(t, []string{
		"products:miss",
		"categories:miss",
		"categories:hit",
		"products:stale",
	}, lookups)
}

func TestCache_SupersededResponseIsDiscarded(t *testing.T) {
	ctx := context.Background()
	cache := New(NewMemoryStore(), time.Minute)
	key := NewKey("products", "page", "1")

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		var out listResult
		done <- cache.Fetch(ctx, key, &out, func(ctx context.Context) (any, error) {
			close(started)
			<-release
			return listResult{Items: []string{"late"}}, nil
		})
	}()

	<-started

	var out listResult
	require.NoError(t, cache.Fetch(ctx, key, &out, func(ctx context.Context) (any, error) {
		return listResult{Items: []string{"fresh"}}, nil
	}))

	close(release)
	require.NoError(t, <-done)

	require.NoError(t, cache.Fetch(ctx, key, &out, func(ctx context.Context) (any, error) {
		t.Fatal("cached entry expected")
		return nil, nil
	}))
	assert.Equal(t, []string{"fresh"}, out.Items)
}

func TestCache_InvalidateDuringRefetchIsNotLost(t *testing.T) {
	ctx := context.Background()
	cache := New(NewMemoryStore(), time.Minute)
	key := NewKey("products", "page", "1")

	var out listResult
	require.NoError(t, cache.Fetch(ctx, key, &out, func(ctx context.Context) (any, error) {
		return listResult{Items: []string{"v0"}}, nil
	}))
	require.NoError(t, cache.Invalidate(ctx, "products"))

	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, cache.Fetch(ctx, key, &out, func(ctx context.Context) (any, error) {
		close(started)
		<-release
		return listResult{Items: []string{"before write"}}, nil
	}))
	<-started

	// a write commits while the refetch above still holds old rows
	require.NoError(t, cache.Invalidate(ctx, "products"))
	close(release)
	cache.Wait()

	var refetches atomic.Int32
	fetch := func(ctx context.Context) (any, error) {
		refetches.Add(1)
		return listResult{Items: []string{"after write"}}, nil
	}

	require.NoError(t, cache.Fetch(ctx, key, &out, fetch))
	assert.Equal(t, []string{"v0"}, out.Items)
	cache.Wait()

	require.NoError(t, cache.Fetch(ctx, key, &out, fetch))
	assert.Equal(t, []string{"after write"}, out.Items)
	assert.Equal(t, int32(1), refetches.Load())
}

func TestCache_Update(t *testing.T) {
	ctx := context.Background()
	cache := New(NewMemoryStore(), time.Minute)
	key := NewKey("products", "page", "1")

	var out listResult
	require.NoError(t, cache.Fetch(ctx, key, &out, func(ctx context.Context) (any, error) {
		return listResult{Items: []string{"a"}}, nil
	}))

	err := cache.Update(ctx, key, func(data json.RawMessage) (json.RawMessage, error) {
		var r listResult
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, err
		}
		r.Items = append([]string{"z"}, r.Items...)
		return json.Marshal(r)
	})
	require.NoError(t, err)

	require.NoError(t, cache.Fetch(ctx, key, &out, nil))
	assert.Equal(t, []string{"z", "a"}, out.Items)

	err = cache.Update(ctx, NewKey("products", "page", "9"), func(data json.RawMessage) (json.RawMessage, error) {
		return data, nil
	})
	assert.ErrorIs(t, err, ErrMiss)
}
