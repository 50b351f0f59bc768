// Package alert decides when a detection raises an alert and schedules the
// notification burst that follows.
package alert

import (
	"sync"
	"time"
)

// DefaultCooldown is the minimum time between two accepted triggers.
const DefaultCooldown = 5000 * time.Millisecond

// Limiter gates detection events so that at most one alert burst starts per cooldown.
// It is the per-session alert state and is safe for concurrent use.
type Limiter struct {
	mu          sync.Mutex
	enabled     bool
	triggered   bool
	lastTrigger time.Time
	cooldown    time.Duration
}

// NewLimiter creates a Limiter that has never triggered.
func NewLimiter(cooldown time.Duration, enabled bool) *Limiter {
	if cooldown < 0 {
		cooldown = DefaultCooldown
	}
	return &Limiter{
		enabled:  enabled,
		cooldown: cooldown,
	}
}

// TryTrigger reports whether a detection at now starts a new burst.
// An accepted trigger records now as the last trigger time.
func (l *Limiter) TryTrigger(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return false
	}
	// A now earlier than lastTrigger yields a negative delta and is refused,
	// so lastTrigger never moves backwards.
	if l.triggered && now.Sub(l.lastTrigger) <= l.cooldown {
		return false
	}

	l.triggered = true
	l.lastTrigger = now
	return true
}

// Toggle flips the enabled flag and returns the new value.
func (l *Limiter) Toggle() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = !l.enabled
	return l.enabled
}

// SetEnabled sets the enabled flag.
func (l *Limiter) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// Enabled reports whether alerts are on.
func (l *Limiter) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

// LastTrigger returns the time of the last accepted trigger and false if there was none.
func (l *Limiter) LastTrigger() (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastTrigger, l.triggered
}

// Cooldown returns the configured cooldown.
func (l *Limiter) Cooldown() time.Duration {
	return l.cooldown
}

// Label renders the toggle caption for the current state.
func Label(enabled bool) string {
	if enabled {
		return "🔔 Alerts: ON"
	}
	return "🔔 Alerts: OFF"
}
