package cache

import (
	"strconv"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUTTL_EvictsOldestAtNPlus1(t *testing.T) {
	c := NewLRUTTL(1000, time.Hour)
	for i := 0; i < 1000; i++ {
		c.Set(strconv.Itoa(i), i, 0)
	}
	assert.Equal(t, 1000, c.Size())

	c.Set("1000", 1000, 0)
	assert.Equal(t, 1000, c.Size())
	_, ok := c.Get("0")
	assert.False(t, ok, "oldest entry must be evicted")
}

func TestLRUTTL_CleanupExpiredAfterTTLPlusOne(t *testing.T) {
	c := NewLRUTTL(1000, time.Second)
	base := time.Now()
	c.now = func() time.Time { return base }
	for i := 0; i < 1000; i++ {
		c.Set(strconv.Itoa(i), i, 0)
	}

	c.now = func() time.Time { return base.Add(time.Second + time.Millisecond) }
	removed := c.CleanupExpired()
	assert.Equal(t, 1000, removed)
	assert.Equal(t, 0, c.Size())
}

func TestLRUTTL_GetChecksTTLBeforePromoting(t *testing.T) {
	c := NewLRUTTL(2, time.Hour)
	base := time.Now()
	c.now = func() time.Time { return base }
	c.Set("a", 1, time.Second)
	c.Set("b", 2, time.Hour)

	c.now = func() time.Time { return base.Add(2 * time.Second) }
	_, ok := c.Get("a")
	require.False(t, ok, "expired entry must miss even if it would otherwise be promoted")
	assert.Equal(t, 1, c.Size())
}

// TestLRUTTL_SizeNeverExceedsCapacity is a property check of the quantified
// invariant "for every cache of capacity N, size() <= N at all times".
func TestLRUTTL_SizeNeverExceedsCapacity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("size never exceeds max_size", prop.ForAll(
		func(keys []string) bool {
			c := NewLRUTTL(8, time.Hour)
			for _, k := range keys {
				c.Set(k, k, 0)
				if c.Size() > 8 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t)
}
