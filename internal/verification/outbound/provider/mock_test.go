package provider

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/phoneauth/internal/pkg/clock"
	"github.com/shandysiswandi/phoneauth/internal/pkg/hash"
	"github.com/shandysiswandi/phoneauth/internal/pkg/instrument"
	"github.com/shandysiswandi/phoneauth/internal/pkg/uid"
	"github.com/shandysiswandi/phoneauth/internal/verification/entity"
	"github.com/shandysiswandi/phoneauth/internal/verification/outbound/store"
)

const testSubject = "+15551234567"

// sequenceOTP hands out codes in order.
type sequenceOTP struct {
	mu    sync.Mutex
	codes []string
}

func (s *sequenceOTP) Generate(int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.codes) == 0 {
		return "", errors.New("no more codes")
	}
	c := s.codes[0]
	s.codes = s.codes[1:]
	return c, nil
}

func newTestOptions(t *testing.T, clk *clock.Manual, codes ...string) Options {
	t.Helper()

	sf, err := uid.NewSnowflake(1)
	if err != nil {
		t.Fatalf("NewSnowflake() error = %v", err)
	}

	return Options{
		Clock:      clk,
		Instrument: instrument.NewNoop(),
		IDs:        sf,
		Tokens:     uid.NewUUID(),
		Hash:       hash.NewHMACSHA256("test-secret"),
		OTP:        &sequenceOTP{codes: codes},
		Store:      store.NewMemory(clk, time.Hour),
		Mock:       MockConfig{CodeLength: 6, Expiry: 5 * time.Minute},
	}
}

func TestMockSendAndVerify(t *testing.T) {
	// Arrange
	ctx := context.Background()
	clk := clock.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	m := NewMock(newTestOptions(t, clk, "123456"))

	// Act
	receipt, err := m.Send(ctx, entity.ChannelSMS, testSubject)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	identity, err := m.Verify(ctx, testSubject, "123456")

	// Assert
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if receipt.Token == "" || receipt.Channel != entity.ChannelSMS {
		t.Errorf("unexpected receipt %+v", receipt)
	}
	if want := clk.Now().Add(5 * time.Minute); !receipt.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", receipt.ExpiresAt, want)
	}
	if identity.Subject != testSubject || identity.Provider != NameMock || identity.ID == 0 {
		t.Errorf("unexpected identity %+v", identity)
	}
	if identity.Channel != entity.ChannelSMS {
		t.Errorf("identity channel = %s", identity.Channel)
	}
}

func TestMockVerifyOutcomes(t *testing.T) {
	ctx := context.Background()

	t.Run("never sent", func(t *testing.T) {
		clk := clock.NewManual(time.Unix(0, 0))
		m := NewMock(newTestOptions(t, clk))

		if _, err := m.Verify(ctx, testSubject, "123456"); !errors.Is(err, entity.ErrNoPendingCode) {
			t.Fatalf("Verify() error = %v, want no pending code", err)
		}
	})

	t.Run("mismatch keeps code redeemable", func(t *testing.T) {
		clk := clock.NewManual(time.Unix(0, 0))
		m := NewMock(newTestOptions(t, clk, "123456"))
		if _, err := m.Send(ctx, entity.ChannelSMS, testSubject); err != nil {
			t.Fatalf("Send() error = %v", err)
		}

		if _, err := m.Verify(ctx, testSubject, "654321"); !errors.Is(err, entity.ErrMismatch) {
			t.Fatalf("Verify() error = %v, want mismatch", err)
		}
		if _, err := m.Verify(ctx, testSubject, "123456"); err != nil {
			t.Fatalf("Verify() after mismatch error = %v", err)
		}
	})

	t.Run("single use", func(t *testing.T) {
		clk := clock.NewManual(time.Unix(0, 0))
		m := NewMock(newTestOptions(t, clk, "123456"))
		if _, err := m.Send(ctx, entity.ChannelSMS, testSubject); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
		if _, err := m.Verify(ctx, testSubject, "123456"); err != nil {
			t.Fatalf("first Verify() error = %v", err)
		}

		if _, err := m.Verify(ctx, testSubject, "123456"); !errors.Is(err, entity.ErrNoPendingCode) {
			t.Fatalf("second Verify() error = %v, want no pending code", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		clk := clock.NewManual(time.Unix(0, 0))
		m := NewMock(newTestOptions(t, clk, "123456"))
		if _, err := m.Send(ctx, entity.ChannelSMS, testSubject); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
		clk.Advance(5*time.Minute + time.Second)

		if _, err := m.Verify(ctx, testSubject, "123456"); !errors.Is(err, entity.ErrExpired) {
			t.Fatalf("Verify() error = %v, want expired", err)
		}
	})
}

func TestMockResendInvalidatesPrevious(t *testing.T) {
	// Arrange
	ctx := context.Background()
	clk := clock.NewManual(time.Unix(0, 0))
	m := NewMock(newTestOptions(t, clk, "111111", "222222"))
	if _, err := m.Send(ctx, entity.ChannelSMS, testSubject); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	// Act
	receipt, err := m.Resend(ctx, testSubject, entity.ChannelWhatsApp)
	if err != nil {
		t.Fatalf("Resend() error = %v", err)
	}

	// Assert
	if receipt.Channel != entity.ChannelWhatsApp {
		t.Errorf("receipt channel = %s", receipt.Channel)
	}
	if _, err := m.Verify(ctx, testSubject, "111111"); !errors.Is(err, entity.ErrNoPendingCode) {
		t.Fatalf("old code error = %v, want no pending code", err)
	}
	identity, err := m.Verify(ctx, testSubject, "222222")
	if err != nil {
		t.Fatalf("new code error = %v", err)
	}
	if identity.Channel != entity.ChannelWhatsApp {
		t.Errorf("identity channel = %s", identity.Channel)
	}
}

func TestMockSendTwiceKeepsOnlyLatest(t *testing.T) {
	// Arrange
	ctx := context.Background()
	clk := clock.NewManual(time.Unix(0, 0))
	m := NewMock(newTestOptions(t, clk, "111111", "222222"))

	// Act
	for range 2 {
		if _, err := m.Send(ctx, entity.ChannelSMS, testSubject); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}

	// Assert
	if _, err := m.Verify(ctx, testSubject, "111111"); err == nil {
		t.Fatalf("first code must be unusable")
	}
	if _, err := m.Verify(ctx, testSubject, "222222"); err != nil {
		t.Fatalf("latest code error = %v", err)
	}
}

func TestMockConcurrentVerifyIsSingleUse(t *testing.T) {
	// Arrange
	ctx := context.Background()
	clk := clock.NewManual(time.Unix(0, 0))
	m := NewMock(newTestOptions(t, clk, "123456"))
	if _, err := m.Send(ctx, entity.ChannelSMS, testSubject); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	// Act
	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		verified int
		missing  int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Verify(ctx, testSubject, "123456")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				verified++
			case errors.Is(err, entity.ErrNoPendingCode):
				missing++
			}
		}()
	}
	wg.Wait()

	// Assert
	if verified != 1 || missing != workers-1 {
		t.Fatalf("verified = %d, missing = %d", verified, missing)
	}
}

func TestMockFixedCodeAndFailureRate(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewManual(time.Unix(0, 0))

	t.Run("fixed code sets length", func(t *testing.T) {
		opts := newTestOptions(t, clk)
		opts.Mock.FixedCode = "4242"
		m := NewMock(opts)

		if m.Info().CodeLength != 4 {
			t.Fatalf("CodeLength = %d, want 4", m.Info().CodeLength)
		}
		if _, err := m.Send(ctx, entity.ChannelSMS, testSubject); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
		if _, err := m.Verify(ctx, testSubject, "4242"); err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
	})

	t.Run("simulated failure", func(t *testing.T) {
		opts := newTestOptions(t, clk, "123456")
		opts.Mock.FailureRate = 0.5
		m := NewMock(opts)
		m.roll = func() float64 { return 0.1 }

		if _, err := m.Send(ctx, entity.ChannelSMS, testSubject); !errors.Is(err, entity.ErrDelivery) {
			t.Fatalf("Send() error = %v, want delivery", err)
		}
		if _, err := m.Verify(ctx, testSubject, "123456"); !errors.Is(err, entity.ErrNoPendingCode) {
			t.Fatalf("Verify() error = %v, want no pending code", err)
		}
	})
}
