package usecase

import "time"

// ResendGate is the resend cooldown. It is a value: the remaining time is
// derived from the last reset instead of being decremented in place.
type ResendGate struct {
	window    time.Duration
	lastReset time.Time
}

// NewResendGate returns an open gate with the given cooldown window.
func NewResendGate(window time.Duration) ResendGate {
	return ResendGate{window: window}
}

// Remaining is max(0, window - (now - lastReset)).
func (g ResendGate) Remaining(now time.Time) time.Duration {
	if g.lastReset.IsZero() {
		return 0
	}

	return max(0, g.window-now.Sub(g.lastReset))
}

// IsOpen reports whether a new code may be requested at now.
func (g ResendGate) IsOpen(now time.Time) bool {
	return g.Remaining(now) == 0
}

// Reset restarts the cooldown at now.
func (g ResendGate) Reset(now time.Time) ResendGate {
	g.lastReset = now
	return g
}

// Window returns the configured cooldown.
func (g ResendGate) Window() time.Duration {
	return g.window
}
