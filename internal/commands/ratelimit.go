package commands

import (
	"sync"

	"golang.org/x/time/rate"
)

// The search-heavy commands allow 5 calls per user per minute.
const (
	searchLimit rate.Limit = 5.0 / 60.0
	searchBurst            = 5
)

// userLimiter rate limits per user ID.
type userLimiter struct {
	mutex    sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func newUserLimiter(limit rate.Limit, burst int) *userLimiter {
	return &userLimiter{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether the user may run another command right now.
func (l *userLimiter) Allow(userID string) bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	limiter, ok := l.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[userID] = limiter
	}
	return limiter.Allow()
}
