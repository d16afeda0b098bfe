package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheKeyIndividualOrderInsensitive(t *testing.T) {
	t.Parallel()
	start := time.Date(2021, 5, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	a := cacheKey("v1", []string{"ursa", "martin"}, start, end, "Hyperphagia", "ha")
	b := cacheKey("v1", []string{"martin", "ursa"}, start, end, "Hyperphagia", "ha")
	assert.Equal(t, a, b)
}

func TestCacheKeyDistinguishesEveryField(t *testing.T) {
	t.Parallel()
	start := time.Date(2021, 5, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	base := cacheKey("v1", []string{"ursa"}, start, end, "Hyperphagia", "ha")

	assert.NotEqual(t, base, cacheKey("v2", []string{"ursa"}, start, end, "Hyperphagia", "ha"))
	assert.NotEqual(t, base, cacheKey("v1", []string{"martin"}, start, end, "Hyperphagia", "ha"))
	assert.NotEqual(t, base, cacheKey("v1", []string{"ursa"}, start.Add(time.Hour), end, "Hyperphagia", "ha"))
	assert.NotEqual(t, base, cacheKey("v1", []string{"ursa"}, start, end.Add(time.Hour), "Hyperphagia", "ha"))
	assert.NotEqual(t, base, cacheKey("v1", []string{"ursa"}, start, end, "Winter sleep", "ha"))
	assert.NotEqual(t, base, cacheKey("v1", []string{"ursa"}, start, end, "Hyperphagia", "km2"))
}

func TestCacheHitAndExpiry(t *testing.T) {
	t.Parallel()
	c := newResultCache(20 * time.Millisecond)

	c.put("v1", "k", 42)
	got, ok := c.get("v1", "k")
	assert.True(t, ok)
	assert.Equal(t, 42, got)

	time.Sleep(30 * time.Millisecond)
	_, ok = c.get("v1", "k")
	assert.False(t, ok, "entry should expire after the ttl")
}

func TestCacheEvictsOnVersionChange(t *testing.T) {
	t.Parallel()
	c := newResultCache(time.Hour)

	c.put("v1", "k", "old")
	_, ok := c.get("v2", "k")
	assert.False(t, ok, "a new import invalidates everything")

	c.put("v2", "k", "new")
	got, ok := c.get("v2", "k")
	assert.True(t, ok)
	assert.Equal(t, "new", got)
}
