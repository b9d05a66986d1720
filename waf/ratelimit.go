package waf

import (
	"sync"
	"time"
)

// rateWindow is one client's fixed window: a start time and a counter.
// The counter resets (to 1) when the window elapses; it never slides.
type rateWindow struct {
	start time.Time
	count int
}

// RateLimiter enforces fixed-window request counting per client. It is
// independent of the threat pipeline: a client can be rate limited without
// ever producing a finding, and vice versa.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
	stop    chan struct{}
	now     func() time.Time
}

func NewRateLimiter() *RateLimiter {
	rl := &RateLimiter{
		windows: make(map[string]*rateWindow),
		stop:    make(chan struct{}),
		now:     time.Now,
	}
	go rl.purgeLoop()
	return rl
}

// Allow counts one request for clientID against the given window settings
// and reports whether it is within the limit. Limits are passed per call so
// config updates take effect immediately.
func (rl *RateLimiter) Allow(clientID string, limit int, window time.Duration) bool {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	win, ok := rl.windows[clientID]
	if !ok || now.Sub(win.start) >= window {
		rl.windows[clientID] = &rateWindow{start: now, count: 1}
		return true
	}
	win.count++
	return win.count <= limit
}

// RetryAfter returns how long clientID must wait for a fresh window.
func (rl *RateLimiter) RetryAfter(clientID string, window time.Duration) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	win, ok := rl.windows[clientID]
	if !ok {
		return 0
	}
	remaining := window - rl.now().Sub(win.start)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// purgeLoop drops windows idle for over ten minutes to bound memory.
func (rl *RateLimiter) purgeLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			cutoff := rl.now().Add(-10 * time.Minute)
			rl.mu.Lock()
			for id, win := range rl.windows {
				if win.start.Before(cutoff) {
					delete(rl.windows, id)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *RateLimiter) Stop() {
	select {
	case <-rl.stop:
	default:
		close(rl.stop)
	}
}
