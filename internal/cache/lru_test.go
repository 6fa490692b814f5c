package cache

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU_GetSet(t *testing.T) {
	c := NewLRU(2)
	c.Set("a", 1)
	c.Set("b", 2)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Size())
}

func TestLRU_EvictsLeastRecentlyUsedAtNPlus1(t *testing.T) {
	c := NewLRU(2)
	c.Set("a", 1)
	c.Set("b", 2)
	// touch "a" so "b" becomes least-recently-used
	_, _ = c.Get("a")
	c.Set("c", 3)

	assert.Equal(t, 2, c.Size())
	_, ok := c.Get("b")
	assert.False(t, ok, "least-recently-used entry must be evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestLRU_SizeNeverExceedsMaxSize(t *testing.T) {
	c := NewLRU(5)
	for i := 0; i < 100; i++ {
		c.Set(strconv.Itoa(i), i)
		assert.LessOrEqual(t, c.Size(), 5)
	}
}

func TestLRU_DeleteAndClear(t *testing.T) {
	c := NewLRU(10)
	c.Set("a", 1)
	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))

	c.Set("b", 2)
	c.Set("c", 3)
	c.Clear()
	assert.Equal(t, 0, c.Size())
}
