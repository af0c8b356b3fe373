package core

import "sync"

// IterationLimiter enforces the maximum number of model calls (ask/act
// cycles) allowed per run.
type IterationLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewIterationLimiter creates a new limiter with a max number of cycles.
// If max <= 0, unlimited cycles are allowed.
func NewIterationLimiter(max int) *IterationLimiter {
	return &IterationLimiter{max: max}
}

// Increment records the start of a cycle and returns *LimitExceededError if
// the cycle would exceed the cap.
func (l *IterationLimiter) Increment() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.max > 0 && l.count >= l.max {
		return &LimitExceededError{Limit: l.max}
	}
	l.count++

	return nil
}

// Count returns the number of cycles started so far.
func (l *IterationLimiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.count
}

// Remaining returns how many cycles are left before hitting the limit.
func (l *IterationLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.max <= 0 {
		return -1 // unlimited
	}

	return l.max - l.count
}
