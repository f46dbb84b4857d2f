package usecase

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/phoneauth/internal/pkg/clock"
	"github.com/shandysiswandi/phoneauth/internal/pkg/goroutine"
	"github.com/shandysiswandi/phoneauth/internal/pkg/hash"
	"github.com/shandysiswandi/phoneauth/internal/pkg/instrument"
	"github.com/shandysiswandi/phoneauth/internal/pkg/phone"
	"github.com/shandysiswandi/phoneauth/internal/pkg/uid"
	"github.com/shandysiswandi/phoneauth/internal/verification/entity"
	"github.com/shandysiswandi/phoneauth/internal/verification/outbound/provider"
	"github.com/shandysiswandi/phoneauth/internal/verification/outbound/store"
)

const testPhone = "+15551234567"

var testStart = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// queuedOTP hands out codes in order.
type queuedOTP struct {
	mu    sync.Mutex
	codes []string
}

func (q *queuedOTP) Generate(int) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.codes) == 0 {
		return "", errors.New("no more codes queued")
	}
	c := q.codes[0]
	q.codes = q.codes[1:]
	return c, nil
}

func newMockProvider(t *testing.T, clk clock.Clocker, codes ...string) *provider.Mock {
	t.Helper()

	sf, err := uid.NewSnowflake(7)
	if err != nil {
		t.Fatalf("NewSnowflake() error = %v", err)
	}

	return provider.NewMock(provider.Options{
		Clock:      clk,
		Instrument: instrument.NewNoop(),
		IDs:        sf,
		Tokens:     uid.NewUUID(),
		Hash:       hash.NewHMACSHA256("session-test"),
		OTP:        &queuedOTP{codes: codes},
		Store:      store.NewMemory(clk, time.Hour),
		Mock:       provider.MockConfig{CodeLength: 6, Expiry: 5 * time.Minute},
	})
}

// fakeProvider answers with canned results. When gate is set, calls signal
// started and wait for gate before returning.
type fakeProvider struct {
	info    entity.ProviderInfo
	started chan struct{}
	gate    chan struct{}

	sendErr   error
	verifyErr error
	resendErr error
	sends     int
	mu        sync.Mutex
}

func newFakeProvider(channels ...entity.Channel) *fakeProvider {
	if len(channels) == 0 {
		channels = []entity.Channel{entity.ChannelSMS, entity.ChannelWhatsApp}
	}
	return &fakeProvider{
		info: entity.ProviderInfo{Name: "fake", DisplayName: "Fake", CodeLength: 4, Channels: channels, Configured: true},
	}
}

func (f *fakeProvider) blocking() *fakeProvider {
	f.started = make(chan struct{}, 1)
	f.gate = make(chan struct{})
	return f
}

func (f *fakeProvider) wait() {
	if f.gate == nil {
		return
	}
	f.started <- struct{}{}
	<-f.gate
}

func (f *fakeProvider) Info() entity.ProviderInfo {
	return f.info
}

func (f *fakeProvider) Send(_ context.Context, channel entity.Channel, _ string) (*entity.DispatchReceipt, error) {
	f.wait()
	f.mu.Lock()
	f.sends++
	f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &entity.DispatchReceipt{Token: "tok", Channel: channel, SentAt: testStart}, nil
}

func (f *fakeProvider) Verify(_ context.Context, subject, _ string) (*entity.VerifiedIdentity, error) {
	f.wait()
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return &entity.VerifiedIdentity{ID: 42, Subject: subject, Channel: entity.ChannelSMS, Provider: "fake", VerifiedAt: testStart}, nil
}

func (f *fakeProvider) Resend(_ context.Context, _ string, channel entity.Channel) (*entity.DispatchReceipt, error) {
	f.wait()
	if f.resendErr != nil {
		return nil, f.resendErr
	}
	return &entity.DispatchReceipt{Token: "tok-2", Channel: channel, SentAt: testStart}, nil
}

type sessionOption func(*SessionConfig)

func newTestSession(t *testing.T, p entity.Provider, clk clock.Clocker, opts ...sessionOption) *Session {
	t.Helper()

	cfg := SessionConfig{
		ID:           "5f0c1e1e-3d55-4a4e-8a4b-0c6d8e7f9a10",
		Provider:     p,
		Normalizer:   phone.NewNormalizer("US", false),
		Clock:        clk,
		ResendWindow: 60 * time.Second,
		Tick:         5 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := NewSession(cfg)
	t.Cleanup(s.Close)
	return s
}

func withSpawner(m *goroutine.Manager) sessionOption {
	return func(c *SessionConfig) { c.Spawner = m }
}

func withHook(h CompletionHook) sessionOption {
	return func(c *SessionConfig) { c.OnVerified = h }
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", msg)
}

func TestSessionHappyPath(t *testing.T) {
	// Arrange
	ctx := context.Background()
	clk := clock.NewManual(testStart)
	s := newTestSession(t, newMockProvider(t, clk, "123456"), clk)

	// Act
	if err := s.SubmitSubject(ctx, testPhone, entity.ChannelSMS); err != nil {
		t.Fatalf("SubmitSubject() error = %v", err)
	}
	afterSend := s.Snapshot()
	err := s.SubmitCode(ctx, "123456")

	// Assert
	if err != nil {
		t.Fatalf("SubmitCode() error = %v", err)
	}
	if afterSend.Step != entity.StepAwaitingCode || afterSend.Pending == nil || afterSend.Pending.Subject != testPhone {
		t.Fatalf("unexpected snapshot after send: %+v", afterSend)
	}
	snap := s.Snapshot()
	if snap.Step != entity.StepVerified {
		t.Fatalf("Step = %s, want VERIFIED", snap.Step)
	}
	if snap.Identity == nil || snap.Identity.Subject != testPhone || snap.Identity.Provider != provider.NameMock {
		t.Errorf("unexpected identity %+v", snap.Identity)
	}
	if snap.Pending != nil {
		t.Errorf("pending must be cleared once verified")
	}
}

func TestSessionWrongCodeThenRight(t *testing.T) {
	// Arrange
	ctx := context.Background()
	clk := clock.NewManual(testStart)
	s := newTestSession(t, newMockProvider(t, clk, "123456"), clk)
	if err := s.SubmitSubject(ctx, testPhone, entity.ChannelSMS); err != nil {
		t.Fatalf("SubmitSubject() error = %v", err)
	}

	// Act
	err := s.SubmitCode(ctx, "000000")

	// Assert
	if !errors.Is(err, entity.ErrMismatch) {
		t.Fatalf("SubmitCode(wrong) error = %v, want mismatch", err)
	}
	snap := s.Snapshot()
	if snap.Step != entity.StepAwaitingCode || snap.Error == nil || snap.Error.Kind != entity.KindMismatch {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	for i, d := range snap.Digits {
		if d != "" {
			t.Errorf("slot %d = %q, entry must be cleared after a failed check", i, d)
		}
	}

	if err := s.SubmitCode(ctx, "123456"); err != nil {
		t.Fatalf("SubmitCode(right) error = %v", err)
	}
	if got := s.Snapshot(); got.Step != entity.StepVerified || got.Error != nil {
		t.Errorf("unexpected snapshot %+v", got)
	}
}

func TestSessionResendSupersedesOldCode(t *testing.T) {
	// Arrange
	ctx := context.Background()
	clk := clock.NewManual(testStart)
	s := newTestSession(t, newMockProvider(t, clk, "111111", "222222"), clk)
	if err := s.SubmitSubject(ctx, testPhone, entity.ChannelSMS); err != nil {
		t.Fatalf("SubmitSubject() error = %v", err)
	}
	clk.Advance(61 * time.Second)

	// Act
	if err := s.Resend(ctx, entity.ChannelWhatsApp); err != nil {
		t.Fatalf("Resend() error = %v", err)
	}
	resent := s.Snapshot()
	oldErr := s.SubmitCode(ctx, "111111")
	newErr := s.SubmitCode(ctx, "222222")

	// Assert
	if resent.Channel != entity.ChannelWhatsApp || resent.Pending == nil || resent.Pending.Channel != entity.ChannelWhatsApp {
		t.Fatalf("channel after resend = %s, pending = %+v", resent.Channel, resent.Pending)
	}
	if want := clk.Now().Add(5 * time.Minute); !resent.Pending.ExpiresAt.Equal(want) {
		t.Errorf("Pending.ExpiresAt = %v, want %v", resent.Pending.ExpiresAt, want)
	}
	if !errors.Is(oldErr, entity.ErrNoPendingCode) {
		t.Errorf("old code error = %v, want no pending code", oldErr)
	}
	if newErr != nil {
		t.Fatalf("new code error = %v", newErr)
	}
	if s.Snapshot().Step != entity.StepVerified {
		t.Errorf("Step = %s", s.Snapshot().Step)
	}
}

func TestSessionFailedSendKeepsStep(t *testing.T) {
	tests := []struct {
		name     string
		sendErr  error
		wantKind entity.Kind
	}{
		{name: "classified", sendErr: entity.NewError(entity.KindConfiguration, "missing credentials"), wantKind: entity.KindConfiguration},
		{name: "unclassified", sendErr: errors.New("connection reset"), wantKind: entity.KindDelivery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			p := newFakeProvider()
			p.sendErr = tt.sendErr
			s := newTestSession(t, p, clock.NewManual(testStart))

			// Act
			err := s.SubmitSubject(context.Background(), testPhone, entity.ChannelSMS)

			// Assert
			if entity.KindOf(err) != tt.wantKind {
				t.Fatalf("kind = %s, want %s", entity.KindOf(err), tt.wantKind)
			}
			snap := s.Snapshot()
			if snap.Step != entity.StepAwaitingSubject || snap.Busy || snap.Pending != nil {
				t.Errorf("state advanced on failure: %+v", snap)
			}
			if snap.Error == nil || snap.Error.Kind != tt.wantKind {
				t.Errorf("snapshot error = %v", snap.Error)
			}
		})
	}
}

func TestSessionRejectsInvalidInputWithoutCallingProvider(t *testing.T) {
	ctx := context.Background()
	p := newFakeProvider(entity.ChannelSMS)
	s := newTestSession(t, p, clock.NewManual(testStart))

	if err := s.SubmitSubject(ctx, "call me maybe", entity.ChannelSMS); !errors.Is(err, entity.ErrValidation) {
		t.Errorf("letters: error = %v, want validation", err)
	}
	if err := s.SubmitSubject(ctx, "", entity.ChannelSMS); !errors.Is(err, entity.ErrValidation) {
		t.Errorf("empty: error = %v, want validation", err)
	}
	if err := s.SubmitSubject(ctx, testPhone, entity.ChannelWhatsApp); !errors.Is(err, entity.ErrValidation) {
		t.Errorf("unsupported channel: error = %v, want validation", err)
	}
	if err := s.SubmitCode(ctx, "1234"); !errors.Is(err, entity.ErrInvalidStep) {
		t.Errorf("code before subject: error = %v, want invalid step", err)
	}

	if p.sends != 0 {
		t.Errorf("provider called %d times", p.sends)
	}
}

func TestSessionCodeLengthMustMatch(t *testing.T) {
	// Arrange
	ctx := context.Background()
	s := newTestSession(t, newFakeProvider(), clock.NewManual(testStart))
	if err := s.SubmitSubject(ctx, testPhone, entity.ChannelSMS); err != nil {
		t.Fatalf("SubmitSubject() error = %v", err)
	}

	for _, code := range []string{"123", "12345", "12a4", ""} {
		// Act
		err := s.SubmitCode(ctx, code)

		// Assert
		if !errors.Is(err, entity.ErrValidation) {
			t.Errorf("SubmitCode(%q) error = %v, want validation", code, err)
		}
	}
	if s.Snapshot().Step != entity.StepAwaitingCode {
		t.Errorf("Step = %s", s.Snapshot().Step)
	}
}

func TestSessionBusyAndSupersededCompletion(t *testing.T) {
	// Arrange
	ctx := context.Background()
	p := newFakeProvider().blocking()
	s := newTestSession(t, p, clock.NewManual(testStart))

	done := make(chan error, 1)
	go func() { done <- s.SubmitSubject(ctx, testPhone, entity.ChannelSMS) }()
	<-p.started

	// Act
	busyErr := s.SubmitSubject(ctx, testPhone, entity.ChannelSMS)
	busySnap := s.Snapshot()
	backErr := s.Back()
	close(p.gate)
	firstErr := <-done

	// Assert
	if !errors.Is(busyErr, entity.ErrBusy) {
		t.Errorf("concurrent submit error = %v, want busy", busyErr)
	}
	if !busySnap.Busy {
		t.Errorf("snapshot must report busy while the call is in flight")
	}
	if backErr != nil {
		t.Fatalf("Back() error = %v", backErr)
	}
	if !errors.Is(firstErr, entity.ErrSuperseded) {
		t.Errorf("in-flight call error = %v, want superseded", firstErr)
	}
	snap := s.Snapshot()
	if snap.Step != entity.StepAwaitingSubject || snap.Busy || snap.Pending != nil {
		t.Errorf("stale completion changed state: %+v", snap)
	}
}

func TestSessionTickerStopsOnBack(t *testing.T) {
	// Arrange
	ctx := context.Background()
	mgr := goroutine.NewManager(4)
	s := newTestSession(t, newFakeProvider(), clock.NewManual(testStart), withSpawner(mgr))
	if err := s.SubmitSubject(ctx, testPhone, entity.ChannelSMS); err != nil {
		t.Fatalf("SubmitSubject() error = %v", err)
	}
	eventually(t, func() bool { return mgr.Active() == 1 }, "ticker running")

	// Act
	if err := s.Back(); err != nil {
		t.Fatalf("Back() error = %v", err)
	}

	// Assert
	eventually(t, func() bool { return mgr.Active() == 0 }, "ticker stopped")
	if s.Snapshot().ResendIn != 0 {
		t.Errorf("countdown must not be reported outside AwaitingCode")
	}
}

func TestSessionTickerStopsWhenGateOpens(t *testing.T) {
	// Arrange
	ctx := context.Background()
	clk := clock.NewManual(testStart)
	mgr := goroutine.NewManager(4)
	s := newTestSession(t, newFakeProvider(), clk, withSpawner(mgr))
	if err := s.SubmitSubject(ctx, testPhone, entity.ChannelSMS); err != nil {
		t.Fatalf("SubmitSubject() error = %v", err)
	}
	eventually(t, func() bool { return mgr.Active() == 1 }, "ticker running")

	// Act
	clk.Advance(60 * time.Second)

	// Assert
	eventually(t, func() bool { return mgr.Active() == 0 }, "ticker stopped")
	if snap := s.Snapshot(); !snap.CanResend || snap.ResendIn != 0 {
		t.Errorf("unexpected countdown %+v", snap)
	}
}

func TestSessionTickerRefusedIsLogged(t *testing.T) {
	// Arrange
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx := context.Background()
	mgr := goroutine.NewManager(1)
	hold := make(chan struct{})
	t.Cleanup(func() { close(hold) })
	if !mgr.Go(ctx, func(context.Context) error { <-hold; return nil }) {
		t.Fatal("filler task was not scheduled")
	}
	s := newTestSession(t, newFakeProvider(), clock.NewManual(testStart), withSpawner(mgr))

	// Act
	err := s.SubmitSubject(ctx, testPhone, entity.ChannelSMS)

	// Assert
	if err != nil {
		t.Fatalf("SubmitSubject() error = %v", err)
	}
	if got := s.Snapshot(); got.Step != entity.StepAwaitingCode || got.ResendIn != 60*time.Second {
		t.Errorf("session must keep working without its ticker: %+v", got)
	}
	out := buf.String()
	if !strings.Contains(out, "countdown ticker not scheduled") || !strings.Contains(out, s.Snapshot().ID) {
		t.Errorf("log = %s", out)
	}
}

func TestSessionResendThrottled(t *testing.T) {
	// Arrange
	ctx := context.Background()
	clk := clock.NewManual(testStart)
	s := newTestSession(t, newFakeProvider(), clk)
	if err := s.SubmitSubject(ctx, testPhone, entity.ChannelSMS); err != nil {
		t.Fatalf("SubmitSubject() error = %v", err)
	}
	clk.Advance(20 * time.Second)
	before := s.Snapshot()

	// Act
	err := s.Resend(ctx, "")

	// Assert
	var e *entity.Error
	if !errors.As(err, &e) || e.Kind != entity.KindResendThrottled {
		t.Fatalf("Resend() error = %v, want throttled", err)
	}
	if e.RetryAfter != 40*time.Second {
		t.Errorf("RetryAfter = %s, want 40s", e.RetryAfter)
	}
	after := s.Snapshot()
	if after.Pending.Token != before.Pending.Token || after.ResendIn != 40*time.Second {
		t.Errorf("throttled resend changed state: %+v", after)
	}

	clk.Advance(40 * time.Second)
	if err := s.Resend(ctx, entity.ChannelWhatsApp); err != nil {
		t.Fatalf("Resend() after cooldown error = %v", err)
	}
	snap := s.Snapshot()
	if snap.Channel != entity.ChannelWhatsApp || snap.Pending.Token != "tok-2" || snap.ResendIn != 60*time.Second {
		t.Errorf("unexpected snapshot after resend %+v", snap)
	}
}

func TestSessionFailedResendKeepsCooldown(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewManual(testStart)
	p := newFakeProvider()
	p.resendErr = entity.NewError(entity.KindDelivery, "carrier rejected")
	s := newTestSession(t, p, clk)
	if err := s.SubmitSubject(ctx, testPhone, entity.ChannelSMS); err != nil {
		t.Fatalf("SubmitSubject() error = %v", err)
	}
	clk.Advance(time.Minute)

	err := s.Resend(ctx, "")

	if !errors.Is(err, entity.ErrDelivery) {
		t.Fatalf("Resend() error = %v, want delivery", err)
	}
	snap := s.Snapshot()
	if !snap.CanResend || snap.Pending.Token != "tok" {
		t.Errorf("failed resend must leave the session as it was: %+v", snap)
	}
}

func TestSessionPasteAutoSubmits(t *testing.T) {
	// Arrange
	ctx := context.Background()
	clk := clock.NewManual(testStart)
	s := newTestSession(t, newMockProvider(t, clk, "654321"), clk)
	if err := s.SubmitSubject(ctx, "(555) 123-4567", entity.ChannelWhatsApp); err != nil {
		t.Fatalf("SubmitSubject() error = %v", err)
	}

	// Act
	if err := s.PasteCode(ctx, 0, "65"); err != nil {
		t.Fatalf("PasteCode(partial) error = %v", err)
	}
	partial := s.Snapshot()
	err := s.PasteCode(ctx, 2, "4321")

	// Assert
	if partial.Step != entity.StepAwaitingCode || partial.Focus != 2 {
		t.Errorf("partial paste must not submit: %+v", partial)
	}
	if err != nil {
		t.Fatalf("PasteCode(rest) error = %v", err)
	}
	snap := s.Snapshot()
	if snap.Step != entity.StepVerified || snap.Identity.Subject != testPhone || snap.Identity.Channel != entity.ChannelWhatsApp {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestSessionCompletedEntryClaimsSession(t *testing.T) {
	// Arrange
	ctx := context.Background()
	p := newFakeProvider()
	s := newTestSession(t, p, clock.NewManual(testStart))
	if err := s.SubmitSubject(ctx, testPhone, entity.ChannelSMS); err != nil {
		t.Fatalf("SubmitSubject() error = %v", err)
	}
	p.blocking()

	done := make(chan error, 1)
	go func() { done <- s.PasteCode(ctx, 0, "1234") }()
	<-p.started

	// Act
	busySnap := s.Snapshot()
	rivalErr := s.SubmitCode(ctx, "9999")
	close(p.gate)
	pasteErr := <-done

	// Assert
	if !busySnap.Busy {
		t.Errorf("session must be busy once the entry is complete: %+v", busySnap)
	}
	if !errors.Is(rivalErr, entity.ErrBusy) {
		t.Errorf("concurrent submit error = %v, want busy", rivalErr)
	}
	if pasteErr != nil {
		t.Fatalf("PasteCode() error = %v", pasteErr)
	}
	if got := s.Snapshot().Step; got != entity.StepVerified {
		t.Errorf("Step = %s, want verified", got)
	}
}

func TestSessionHookToken(t *testing.T) {
	// Arrange
	ctx := context.Background()
	var got entity.VerifiedIdentity
	hook := func(_ context.Context, id entity.VerifiedIdentity) string {
		got = id
		return "access-token"
	}
	s := newTestSession(t, newFakeProvider(), clock.NewManual(testStart), withHook(hook))
	if err := s.SubmitSubject(ctx, testPhone, entity.ChannelSMS); err != nil {
		t.Fatalf("SubmitSubject() error = %v", err)
	}

	// Act
	err := s.SubmitCode(ctx, "1234")

	// Assert
	if err != nil {
		t.Fatalf("SubmitCode() error = %v", err)
	}
	if got.ID != 42 || got.Subject != testPhone {
		t.Errorf("hook received %+v", got)
	}
	if s.Snapshot().AccessToken != "access-token" {
		t.Errorf("AccessToken = %q", s.Snapshot().AccessToken)
	}
}

func TestSessionBackAndReset(t *testing.T) {
	// Arrange
	ctx := context.Background()
	s := newTestSession(t, newFakeProvider(), clock.NewManual(testStart))
	if err := s.SubmitSubject(ctx, testPhone, entity.ChannelSMS); err != nil {
		t.Fatalf("SubmitSubject() error = %v", err)
	}
	if err := s.SubmitCode(ctx, "1234"); err != nil {
		t.Fatalf("SubmitCode() error = %v", err)
	}

	// Act
	backErr := s.Back()
	s.Reset()

	// Assert
	if !errors.Is(backErr, entity.ErrInvalidStep) {
		t.Errorf("Back() from verified error = %v, want invalid step", backErr)
	}
	snap := s.Snapshot()
	if snap.Step != entity.StepAwaitingSubject || snap.Identity != nil || snap.Subject != "" || snap.AccessToken != "" {
		t.Errorf("Reset() left state behind: %+v", snap)
	}
	if err := s.SubmitSubject(ctx, testPhone, entity.ChannelSMS); err != nil {
		t.Errorf("SubmitSubject() after reset error = %v", err)
	}
}

func TestSessionSubscribe(t *testing.T) {
	// Arrange
	ctx := context.Background()
	s := newTestSession(t, newFakeProvider(), clock.NewManual(testStart))
	ch, stop := s.Subscribe()
	defer stop()

	initial := <-ch
	if initial.Step != entity.StepAwaitingSubject {
		t.Fatalf("initial Step = %s", initial.Step)
	}

	// Act
	if err := s.SubmitSubject(ctx, testPhone, entity.ChannelSMS); err != nil {
		t.Fatalf("SubmitSubject() error = %v", err)
	}

	// Assert
	select {
	case snap := <-ch:
		if snap.Step != entity.StepAwaitingCode {
			t.Errorf("latest Step = %s, want AWAITING_CODE", snap.Step)
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}

	s.Close()
	if _, open := <-ch; open {
		t.Errorf("channel must close with the session")
	}
	stop()
}
