package usecase

import (
	"testing"
	"time"
)

func TestResendGate(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		elapsed  time.Duration
		want     time.Duration
		wantOpen bool
	}{
		{name: "just reset", elapsed: 0, want: 60 * time.Second},
		{name: "partway", elapsed: 25 * time.Second, want: 35 * time.Second},
		{name: "exactly elapsed", elapsed: 60 * time.Second, want: 0, wantOpen: true},
		{name: "long after", elapsed: time.Hour, want: 0, wantOpen: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			g := NewResendGate(60 * time.Second).Reset(start)

			// Act
			now := start.Add(tt.elapsed)

			// Assert
			if got := g.Remaining(now); got != tt.want {
				t.Errorf("Remaining() = %s, want %s", got, tt.want)
			}
			if got := g.IsOpen(now); got != tt.wantOpen {
				t.Errorf("IsOpen() = %v, want %v", got, tt.wantOpen)
			}
		})
	}
}

func TestResendGateIsAValue(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	fresh := NewResendGate(time.Minute)

	reset := fresh.Reset(start)

	if !fresh.IsOpen(start) {
		t.Errorf("a never-reset gate must be open")
	}
	if reset.IsOpen(start.Add(59 * time.Second)) {
		t.Errorf("reset gate must stay closed inside the window")
	}
}
