// Package limiter keeps at most one in-flight operation per user.
package limiter

import (
	"sync"
)

// UserLimiter admits one operation per user at a time. Callers that lose
// the race drop their operation instead of queueing behind it.
type UserLimiter struct {
	mu       sync.Mutex
	inflight map[int64]struct{}
}

// NewUserLimiter creates an empty limiter
func NewUserLimiter() *UserLimiter {
	return &UserLimiter{inflight: make(map[int64]struct{})}
}

// TryAcquire claims the slot for userID. On success it returns a release
// func that may be called any number of times; ok is false while another
// operation for the same user is running.
func (l *UserLimiter) TryAcquire(userID int64) (release func(), ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.inflight[userID]; busy {
		return nil, false
	}
	l.inflight[userID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.inflight, userID)
		})
	}, true
}

// ActiveCount returns the number of users holding a slot
func (l *UserLimiter) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.inflight)
}
