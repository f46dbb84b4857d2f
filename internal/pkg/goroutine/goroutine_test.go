package goroutine

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestManagerCollectsErrors(t *testing.T) {
	// Arrange
	m := NewManager(4)
	errBoom := errors.New("boom")

	// Act
	m.Go(context.Background(), func(context.Context) error { return nil })
	m.Go(context.Background(), func(context.Context) error { return errBoom })
	err := m.Wait()

	// Assert
	if !errors.Is(err, errBoom) {
		t.Fatalf("Wait() = %v, want %v", err, errBoom)
	}
	if m.Active() != 0 {
		t.Errorf("Active() = %d after Wait", m.Active())
	}
}

func TestManagerRecoversPanic(t *testing.T) {
	// Arrange
	m := NewManager(1)

	// Act
	m.Go(context.Background(), func(context.Context) error { panic("kaboom") })

	// Assert
	if err := m.Wait(); err != nil {
		t.Fatalf("Wait() = %v, want nil", err)
	}
}

func TestManagerRejectsAfterClose(t *testing.T) {
	// Arrange
	m := NewManager(1)
	if err := m.Wait(); err != nil {
		t.Fatalf("Wait() = %v", err)
	}
	ran := make(chan struct{}, 1)

	// Act
	m.Go(context.Background(), func(context.Context) error {
		ran <- struct{}{}
		return nil
	})

	// Assert
	select {
	case <-ran:
		t.Fatal("function ran on closed manager")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestManagerActive(t *testing.T) {
	// Arrange
	m := NewManager(2)
	release := make(chan struct{})
	started := make(chan struct{})

	// Act
	m.Go(context.Background(), func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	// Assert
	if got := m.Active(); got != 1 {
		t.Errorf("Active() = %d, want 1", got)
	}
	close(release)
	if err := m.Wait(); err != nil {
		t.Fatalf("Wait() = %v", err)
	}
}

func TestManagerReportsScheduling(t *testing.T) {
	// Arrange
	m := NewManager(1)
	release := make(chan struct{})
	block := func(context.Context) error {
		<-release
		return nil
	}

	// Act
	first := m.Go(context.Background(), block)
	second := m.Go(context.Background(), block)
	close(release)
	_ = m.Wait()
	third := m.Go(context.Background(), block)

	// Assert
	if !first {
		t.Error("first Go() = false, want scheduled")
	}
	if second {
		t.Error("second Go() = true while the only slot is taken")
	}
	if third {
		t.Error("Go() after Wait = true")
	}
}

func TestManagerSkipsCanceledContext(t *testing.T) {
	// Arrange
	m := NewManager(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false

	// Act
	m.Go(ctx, func(context.Context) error {
		ran = true
		return nil
	})
	err := m.Wait()

	// Assert
	if err != nil || ran {
		t.Fatalf("Wait() = %v, ran = %v", err, ran)
	}
}
