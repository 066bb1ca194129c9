// Package refresh coalesces "rendered state may be stale" signals into a
// bounded rate of refresh calls. Bursts of preference mutations collapse
// into at most one refresh per throttle window plus a single trailing call,
// so the UI converges without hammering the renderer.
package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultDebounce = 50 * time.Millisecond

// Scheduler throttles and debounces refresh calls.
//
// The limiter admits one call per window. A request that finds the window
// open runs immediately; requests inside the window arm a single trailing
// timer for the remaining throttle time plus the debounce cushion, and
// every further request inside the window coalesces into that one trailing
// call. The refresh function runs on its own goroutine so RequestRefresh
// never blocks the caller.
type Scheduler struct {
	fn       func(context.Context)
	limiter  *rate.Limiter
	debounce time.Duration

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
}

// NewScheduler builds a scheduler invoking fn at most once per window.
// A non-positive debounce uses a small default cushion.
func NewScheduler(window time.Duration, debounce time.Duration, fn func(context.Context)) (*Scheduler, error) {
	if window <= 0 {
		return nil, errors.New("throttle window must be positive")
	}
	if fn == nil {
		return nil, errors.New("refresh function is required")
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Scheduler{
		fn:       fn,
		limiter:  rate.NewLimiter(rate.Every(window), 1),
		debounce: debounce,
	}, nil
}

// RequestRefresh signals that rendered state may be stale. It never blocks:
// the refresh either fires immediately, or is folded into the already
// scheduled trailing call.
func (s *Scheduler) RequestRefresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.timer != nil {
		// A trailing call is already scheduled; coalesce.
		return
	}
	if s.limiter.Allow() {
		go s.fn(context.Background())
		return
	}
	// Window is closed: reserve the next token and arm the trailing timer
	// for when it becomes available, plus the debounce cushion.
	res := s.limiter.Reserve()
	delay := res.Delay() + s.debounce
	s.timer = time.AfterFunc(delay, s.fire)
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	s.timer = nil
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	// The token was reserved when the timer was armed.
	go s.fn(context.Background())
}

// Close cancels any outstanding trailing call. A refresh already in flight
// is not interrupted. Safe to call more than once.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
