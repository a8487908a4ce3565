package embedding

import (
	"sync"
	"time"
)

// breaker is a minimal consecutive-failure circuit breaker (spec.md §4.2):
// after threshold consecutive failures it opens for cooldown, during which
// calls fail fast with ErrUnavailable. No circuit-breaker library appears
// anywhere in the retrieved example corpus (see DESIGN.md), so this is a
// small hand-rolled stdlib implementation rather than a reach for an unseen
// dependency.
type breaker struct {
	mu              sync.Mutex
	threshold       int
	cooldown        time.Duration
	consecutiveFail int
	openedAt        time.Time
	open            bool
}

func newBreaker(threshold int, cooldown time.Duration) *breaker {
	if threshold <= 0 {
		threshold = 10
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &breaker{threshold: threshold, cooldown: cooldown}
}

// allow reports whether a call may proceed, closing the breaker if the
// cooldown has elapsed.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return true
	}
	if time.Since(b.openedAt) >= b.cooldown {
		b.open = false
		b.consecutiveFail = 0
		return true
	}
	return false
}

func (b *breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFail = 0
	b.open = false
}

func (b *breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFail++
	if b.consecutiveFail >= b.threshold {
		b.open = true
		b.openedAt = time.Now()
	}
}

// isOpen reports whether the breaker is currently open, for metrics.
func (b *breaker) isOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}
