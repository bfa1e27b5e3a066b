package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCacheExpiresEntries(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &ttlCache[string, int]{entries: map[string]entry[int]{}, now: func() time.Time { return now }}

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, 0)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)

	v, ok = c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestTTLCacheDeleteAndPurge(t *testing.T) {
	c := NewTTLCache[int64, string]()
	c.Set(1, "one", time.Hour)
	c.Set(2, "two", time.Hour)

	c.Delete(1)
	_, ok := c.Get(1)
	assert.False(t, ok)

	c.Purge()
	_, ok = c.Get(2)
	assert.False(t, ok)
}
