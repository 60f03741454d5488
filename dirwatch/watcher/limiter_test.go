package watcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundedOperationLimiter_CapAndLastNotice(t *testing.T) {
	limiter := NewBoundedOperationLimiter(3)

	ok, last := limiter.Allow()
	assert.True(t, ok)
	assert.False(t, last)

	ok, last = limiter.Allow()
	assert.True(t, ok)
	assert.False(t, last)

	// Exactly one distinguished firing at the cap boundary
	ok, last = limiter.Allow()
	assert.True(t, ok)
	assert.True(t, last)

	// Silent afterwards
	for i := 0; i < 10; i++ {
		ok, last = limiter.Allow()
		assert.False(t, ok)
		assert.False(t, last)
	}

	assert.Equal(t, 3, limiter.Count())
}

func TestBoundedOperationLimiter_ZeroCapIsAlwaysSilent(t *testing.T) {
	limiter := NewBoundedOperationLimiter(0)
	ok, last := limiter.Allow()
	assert.False(t, ok)
	assert.False(t, last)
}
