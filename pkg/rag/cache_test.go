package rag

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/LiuHarry1/travel-agent-sub000/pkg/config"
)

func TestCacheTTLExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	c := newQueryCache(time.Minute, 10)
	c.now = func() time.Time { return now }

	c.Set("k", []Result{{ChunkID: 1, Text: "hello"}})

	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "hello", got[0].Text)

	// Just inside the TTL window.
	now = now.Add(time.Minute - time.Nanosecond)
	_, ok = c.Get("k")
	assert.True(t, ok)

	// At the boundary the entry is gone.
	now = now.Add(time.Nanosecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCacheLRUEviction(t *testing.T) {
	c := newQueryCache(time.Hour, 3)
	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), []Result{{ChunkID: int64(i)}})
	}

	// Touch k0 so k1 becomes least recently used.
	_, ok := c.Get("k0")
	assert.True(t, ok)

	c.Set("k3", nil)
	assert.Equal(t, 3, c.Len())

	_, ok = c.Get("k1")
	assert.False(t, ok)
	_, ok = c.Get("k0")
	assert.True(t, ok)
	_, ok = c.Get("k3")
	assert.True(t, ok)
}

func TestCacheSetRefreshesEntry(t *testing.T) {
	now := time.Unix(1000, 0)
	c := newQueryCache(time.Minute, 10)
	c.now = func() time.Time { return now }

	c.Set("k", []Result{{ChunkID: 1}})
	now = now.Add(50 * time.Second)
	c.Set("k", []Result{{ChunkID: 2}})

	// The rewrite restarted the clock.
	now = now.Add(50 * time.Second)
	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, int64(2), got[0].ChunkID)
}

func TestCacheKeyStability(t *testing.T) {
	a := NewHTTPSource(config.RAGSourceConfig{Name: "a", URL: "http://a", Pipeline: "p1"})
	b := NewHTTPSource(config.RAGSourceConfig{Name: "b", URL: "http://b", Pipeline: "p2"})

	// Source order must not change the key.
	assert.Equal(t,
		cacheKey("q", "single_round", []Source{a, b}),
		cacheKey("q", "single_round", []Source{b, a}))

	assert.NotEqual(t,
		cacheKey("q", "single_round", []Source{a}),
		cacheKey("q", "multi_round", []Source{a}))
	assert.NotEqual(t,
		cacheKey("q", "single_round", []Source{a}),
		cacheKey("q2", "single_round", []Source{a}))
	assert.NotEqual(t,
		cacheKey("q", "single_round", []Source{a}),
		cacheKey("q", "single_round", []Source{b}))
}

func TestDedupKeepFirst(t *testing.T) {
	in := []Result{
		{ChunkID: 1, Text: "first"},
		{ChunkID: 2, Text: "second"},
		{ChunkID: 1, Text: "dup"},
	}
	out := dedupKeepFirst(in)
	assert.Len(t, out, 2)
	assert.Equal(t, "first", out[0].Text)
	assert.Equal(t, "second", out[1].Text)
}

func TestDedupKeepBest(t *testing.T) {
	score := func(v float64) *float64 { return &v }
	in := []Result{
		{ChunkID: 1, Text: "weak", Score: score(0.9)},
		{ChunkID: 2, Text: "unscored"},
		{ChunkID: 1, Text: "strong", Score: score(0.2)},
		{ChunkID: 2, Text: "scored", Score: score(0.5)},
		{ChunkID: 3, Text: "scored first", Score: score(0.4)},
		{ChunkID: 3, Text: "unscored loses"},
	}
	out := dedupKeepBest(in)
	assert.Len(t, out, 3)
	// First-occurrence slots keep their positions.
	assert.Equal(t, "strong", out[0].Text)
	assert.Equal(t, "scored", out[1].Text)
	assert.Equal(t, "scored first", out[2].Text)
}
