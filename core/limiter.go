package core

import "sync"

// DispatchLimiter bounds the number of handler dispatches running
// concurrently in a context. It protects receivers from unbounded goroutine
// growth when a burst of calls lands at once.
type DispatchLimiter struct {
	max    int
	active int
	mu     sync.Mutex
	cond   *sync.Cond
}

// NewDispatchLimiter creates a limiter admitting up to max concurrent
// dispatches. If max == 0 the limiter admits everything immediately.
func NewDispatchLimiter(max int) *DispatchLimiter {
	dl := &DispatchLimiter{max: max}
	dl.cond = sync.NewCond(&dl.mu)
	return dl
}

// Acquire blocks until a dispatch slot is free and claims it. Unlimited
// limiters never block but still keep the active count.
func (dl *DispatchLimiter) Acquire() {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	for dl.max > 0 && dl.active >= dl.max {
		dl.cond.Wait()
	}
	dl.active++
}

// Release frees a claimed dispatch slot.
func (dl *DispatchLimiter) Release() {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	if dl.active > 0 {
		dl.active--
	}
	dl.cond.Signal()
}

// Active returns the number of dispatches currently running.
func (dl *DispatchLimiter) Active() int {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	return dl.active
}
