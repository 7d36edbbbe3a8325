package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeKey_SortsParameters(t *testing.T) {
	a := MakeKey("tours:list", map[string]string{"page": "2", "country": "LA", "q": ""})
	b := MakeKey("tours:list", map[string]string{"q": "", "country": "LA", "page": "2"})

	assert.Equal(t, "tours:list?country=LA&page=2&q=", a)
	assert.Equal(t, a, b)
	assert.Equal(t, "tours:list?", MakeKey("tours:list", nil))
}

func TestMakeKey_EscapesValues(t *testing.T) {
	injected := MakeKey("tours:list", map[string]string{"q": "a&b=c"})
	split := MakeKey("tours:list", map[string]string{"q": "a", "b": "c"})

	assert.NotEqual(t, injected, split)
	assert.Equal(t, "tours:list?q=a%26b%3Dc", injected)
	assert.Equal(t, "tours:list?b=c&q=a", split)
}

func TestListCache_DisabledIsNoop(t *testing.T) {
	var c *ListCache
	hit, err := c.Get(context.Background(), "k", &struct{}{})
	assert.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, c.Set(context.Background(), "k", 1))
	assert.NoError(t, c.InvalidatePrefix(context.Background(), "k"))

	off := NewListCache(nil, time.Minute)
	hit, err = off.Get(context.Background(), "k", &struct{}{})
	assert.NoError(t, err)
	assert.False(t, hit)
}

func TestListCache_Redis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR_TEST")
	if addr == "" {
		t.Skip("REDIS_ADDR_TEST not set; skipping Redis integration test")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()
	c := NewListCache(rdb, time.Minute)

	type page struct {
		Items []string `json:"items"`
		Total int      `json:"total"`
	}
	key := MakeKey("test:list", map[string]string{"page": "1"})
	require.NoError(t, c.Set(ctx, key, page{Items: []string{"a"}, Total: 1}))

	var got page
	hit, err := c.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, got.Total)

	require.NoError(t, c.InvalidatePrefix(ctx, "test:list"))
	hit, err = c.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, hit)
}
