package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type header struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func setupCache(t *testing.T) (*miniredis.Miniredis, *Cache) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb, err := InitRedis(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, New(rdb)
}

func TestAside_FetchesOnceThenServesFromCache(t *testing.T) {
	mr, c := setupCache(t)
	ctx := context.Background()
	key := CommunityKey("golang")

	calls := 0
	fetch := func(dest *header) func() error {
		return func() error {
			calls++
			*dest = header{ID: 1, Name: "Go"}
			return nil
		}
	}

	var first header
	require.NoError(t, c.Aside(ctx, key, &first, CommunityTTL, fetch(&first)))
	var second header
	require.NoError(t, c.Aside(ctx, key, &second, CommunityTTL, fetch(&second)))

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.True(t, mr.Exists("community:slug:golang"))

	mr.FastForward(CommunityTTL + time.Second)
	assert.False(t, mr.Exists(key))
}

func TestAside_FetchErrorIsNotCached(t *testing.T) {
	mr, c := setupCache(t)
	boom := errors.New("db down")

	var h header
	err := c.Aside(context.Background(), "k", &h, time.Minute, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("k"))
}

func TestDelete(t *testing.T) {
	mr, c := setupCache(t)
	ctx := context.Background()
	require.NoError(t, c.SetJSON(ctx, "a", header{ID: 1}, time.Minute))

	c.Delete(ctx, "a")
	assert.False(t, mr.Exists("a"))
}

func TestNilCacheIsAlwaysMiss(t *testing.T) {
	c := New(nil)
	ctx := context.Background()

	found, err := c.GetJSON(ctx, "k", &header{})
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, c.SetJSON(ctx, "k", header{}, time.Minute))
	c.Delete(ctx, "k")

	calls := 0
	var h header
	require.NoError(t, c.Aside(ctx, "k", &h, time.Minute, func() error { calls++; return nil }))
	require.NoError(t, c.Aside(ctx, "k", &h, time.Minute, func() error { calls++; return nil }))
	assert.Equal(t, 2, calls)
}

func TestInitRedis_RejectsBadURL(t *testing.T) {
	_, err := InitRedis(context.Background(), "http://localhost:6379")
	assert.Error(t, err)
}
