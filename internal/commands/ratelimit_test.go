package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserLimiterAllowsBurstThenDenies(t *testing.T) {
	limiter := newUserLimiter(searchLimit, searchBurst)

	for n := 0; n < searchBurst; n++ {
		assert.True(t, limiter.Allow("user-1"), "request %d should pass", n+1)
	}
	assert.False(t, limiter.Allow("user-1"), "request past the burst should be denied")
}

func TestUserLimiterIsolatesUsers(t *testing.T) {
	limiter := newUserLimiter(searchLimit, searchBurst)

	for n := 0; n < searchBurst; n++ {
		limiter.Allow("user-1")
	}
	assert.False(t, limiter.Allow("user-1"))
	assert.True(t, limiter.Allow("user-2"), "one user's burst must not throttle another")
}
