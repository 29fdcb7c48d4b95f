// Package resilience keeps a practice session running when an STT backend
// degrades. It provides a three-state circuit [Breaker] and [Transcribers],
// a failover chain over stt.Transcriber values with one breaker per backend.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned when a breaker rejects a call because its backend is
// in cooldown.
var ErrOpen = errors.New("resilience: breaker open")

// BreakerConfig holds tuning knobs for a [Breaker].
type BreakerConfig struct {
	// Name labels the breaker in log messages, usually the backend name.
	Name string

	// Threshold is the number of consecutive failures that trips the
	// breaker. Default: 3 — a performer hitting a dead backend should not
	// wait through more than a few lines.
	Threshold int

	// Cooldown is how long a tripped breaker rejects calls before letting
	// a probe through. Default: 20s.
	Cooldown time.Duration
}

// Breaker is a consecutive-failure circuit breaker. Closed forwards every
// call; after Threshold consecutive failures it rejects calls for Cooldown,
// then lets a single probe through. A successful probe closes the breaker,
// a failed one restarts the cooldown.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a Breaker, substituting defaults for zero-value config
// fields.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 20 * time.Second
	}
	return &Breaker{
		name:      cfg.Name,
		threshold: cfg.Threshold,
		cooldown:  cfg.Cooldown,
	}
}

// Allow reports whether a call may proceed. When it grants a probe after
// cooldown, the next Report decides whether the breaker closes or re-trips.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.threshold {
		return true
	}
	if b.probing {
		return false
	}
	if time.Since(b.openedAt) >= b.cooldown {
		b.probing = true
		slog.Info("breaker probing after cooldown", "name", b.name)
		return true
	}
	return false
}

// Report records a call outcome.
func (b *Breaker) Report(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		if b.failures >= b.threshold {
			slog.Info("breaker closed", "name", b.name)
		}
		b.failures = 0
		b.probing = false
		return
	}

	b.failures++
	b.probing = false
	if b.failures == b.threshold {
		b.openedAt = time.Now()
		slog.Warn("breaker opened", "name", b.name, "failures", b.failures)
	} else if b.failures > b.threshold {
		// Failed probe: restart the cooldown window.
		b.openedAt = time.Now()
		slog.Warn("breaker re-opened after failed probe", "name", b.name)
	}
}

// Open reports whether the breaker is currently rejecting calls.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures >= b.threshold && time.Since(b.openedAt) < b.cooldown
}

// Reset forces the breaker closed, clearing all failure accounting.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probing = false
}
