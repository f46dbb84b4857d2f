package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shandysiswandi/phoneauth/internal/pkg/clock"
	"github.com/shandysiswandi/phoneauth/internal/verification/entity"
	"go.uber.org/atomic"
)

type normalizer interface {
	Normalize(raw string) (string, error)
}

type spawner interface {
	Go(ctx context.Context, f func(ctx context.Context) error) bool
}

// CompletionHook runs once per verified attempt and returns the access token
// handed back to the caller.
type CompletionHook func(ctx context.Context, identity entity.VerifiedIdentity) string

// SessionConfig wires a Session.
type SessionConfig struct {
	// Context bounds background work such as the countdown ticker.
	Context      context.Context
	ID           string
	Provider     entity.Provider
	Normalizer   normalizer
	Clock        clock.Clocker
	Spawner      spawner
	ResendWindow time.Duration
	Tick         time.Duration
	OnVerified   CompletionHook
}

// Snapshot is the presentation view of a session.
type Snapshot struct {
	ID          string
	Step        entity.Step
	Provider    string
	Subject     string
	Channel     entity.Channel
	CodeLength  int
	Digits      []string
	Focus       int
	Busy        bool
	ResendIn    time.Duration
	CanResend   bool
	Pending     *entity.PendingVerification
	Identity    *entity.VerifiedIdentity
	AccessToken string
	Error       *entity.Error
	UpdatedAt   time.Time
}

// Session sequences one phone verification: subject submission, code
// delivery, code check. At most one provider call is in flight; completions
// issued for an earlier attempt are dropped.
type Session struct {
	base       context.Context
	id         string
	provider   entity.Provider
	normalizer normalizer
	clock      clock.Clocker
	spawner    spawner
	tick       time.Duration
	onVerified CompletionHook

	attempt atomic.Uint64

	mu        sync.Mutex
	busy      bool
	step      entity.Step
	subject   string
	channel   entity.Channel
	pending   *entity.PendingVerification
	gate      ResendGate
	entry     *CodeEntry
	focus     int
	identity  *entity.VerifiedIdentity
	token     string
	lastErr   *entity.Error
	stopTick  context.CancelFunc
	updatedAt time.Time
	watchers  map[int]chan Snapshot
	nextWatch int
	closed    bool
}

// NewSession returns a session in AwaitingSubject.
func NewSession(cfg SessionConfig) *Session {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if cfg.Context == nil {
		cfg.Context = context.Background()
	}

	return &Session{
		base:       cfg.Context,
		id:         cfg.ID,
		provider:   cfg.Provider,
		normalizer: cfg.Normalizer,
		clock:      cfg.Clock,
		spawner:    cfg.Spawner,
		tick:       cfg.Tick,
		onVerified: cfg.OnVerified,
		step:       entity.StepAwaitingSubject,
		gate:       NewResendGate(cfg.ResendWindow),
		entry:      NewCodeEntry(cfg.Provider.Info().CodeLength),
		updatedAt:  cfg.Clock.Now(),
		watchers:   make(map[int]chan Snapshot),
	}
}

func (s *Session) ID() string {
	return s.id
}

// Attempt identifies the current attempt; it changes on every provider call,
// Back and Reset.
func (s *Session) Attempt() uint64 {
	return s.attempt.Load()
}

// IdleSince returns the last time the session changed.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// SubmitSubject normalizes raw and dispatches a code over channel.
func (s *Session) SubmitSubject(ctx context.Context, raw string, channel entity.Channel) error {
	s.mu.Lock()
	if err := s.guardLocked(entity.StepAwaitingSubject); err != nil {
		s.mu.Unlock()
		return err
	}

	if !s.provider.Info().Supports(channel) {
		err := entity.NewError(entity.KindValidation, fmt.Sprintf("%s cannot deliver over %s", s.provider.Info().DisplayName, channel))
		s.failLocked(err)
		s.mu.Unlock()
		return err
	}

	subject, nerr := s.normalizer.Normalize(raw)
	if nerr != nil {
		err := entity.WrapError(entity.KindValidation, nerr.Error(), nerr)
		s.failLocked(err)
		s.mu.Unlock()
		return err
	}

	attempt := s.beginLocked()
	s.mu.Unlock()

	receipt, err := s.provider.Send(ctx, channel, subject)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.finishLocked(attempt) {
		return errSuperseded()
	}
	if err != nil {
		cerr := classify(err)
		s.failLocked(cerr)
		return cerr
	}

	now := s.clock.Now()
	s.step = entity.StepAwaitingCode
	s.subject = subject
	s.channel = channel
	s.pending = pendingFrom(subject, channel, receipt)
	s.gate = s.gate.Reset(now)
	s.entry.Clear()
	s.focus = 0
	s.lastErr = nil
	s.startTickerLocked()
	s.notifyLocked()

	return nil
}

// SubmitCode checks code against the pending verification.
func (s *Session) SubmitCode(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)

	s.mu.Lock()
	if err := s.guardLocked(entity.StepAwaitingCode); err != nil {
		s.mu.Unlock()
		return err
	}
	attempt, err := s.beginSubmitLocked(code)
	subject := s.subject
	s.mu.Unlock()
	if err != nil {
		return err
	}

	return s.verify(ctx, subject, code, attempt)
}

// beginSubmitLocked checks the shape of code and marks the session busy.
// The caller must have passed guardLocked.
func (s *Session) beginSubmitLocked(code string) (uint64, error) {
	if n := s.entry.Len(); len(code) != n || strings.IndexFunc(code, func(r rune) bool { return !isDigit(r) }) >= 0 {
		err := entity.NewError(entity.KindValidation, fmt.Sprintf("code must be exactly %d digits", n))
		s.failLocked(err)
		return 0, err
	}
	return s.beginLocked(), nil
}

func (s *Session) verify(ctx context.Context, subject, code string, attempt uint64) error {
	identity, err := s.provider.Verify(ctx, subject, code)

	s.mu.Lock()
	if !s.finishLocked(attempt) {
		s.mu.Unlock()
		return errSuperseded()
	}
	if err != nil {
		cerr := classify(err)
		s.entry.Clear()
		s.focus = 0
		s.failLocked(cerr)
		s.mu.Unlock()
		return cerr
	}

	s.step = entity.StepVerified
	s.identity = identity
	s.pending = nil
	s.lastErr = nil
	s.stopTickerLocked()
	s.notifyLocked()
	hook := s.onVerified
	s.mu.Unlock()

	if hook == nil {
		return nil
	}

	token := hook(ctx, *identity)

	s.mu.Lock()
	if s.attempt.Load() == attempt && s.step == entity.StepVerified {
		s.token = token
		s.notifyLocked()
	}
	s.mu.Unlock()

	return nil
}

// EnterCode writes one digit and submits automatically once the code is complete.
func (s *Session) EnterCode(ctx context.Context, slot int, input string) error {
	return s.editCode(ctx, func(e *CodeEntry) (int, error) { return e.Set(slot, input) })
}

// PasteCode spreads the digits of text from slot onwards and submits
// automatically once the code is complete.
func (s *Session) PasteCode(ctx context.Context, slot int, text string) error {
	return s.editCode(ctx, func(e *CodeEntry) (int, error) { return e.Paste(slot, text) })
}

func (s *Session) editCode(ctx context.Context, edit func(*CodeEntry) (int, error)) error {
	s.mu.Lock()
	if err := s.guardLocked(entity.StepAwaitingCode); err != nil {
		s.mu.Unlock()
		return err
	}

	focus, err := edit(s.entry)
	if err != nil {
		s.failLocked(classify(err))
		s.mu.Unlock()
		return err
	}

	s.focus = focus
	s.touchLocked()
	candidate, ready := s.entry.Take()
	if !ready {
		s.notifyLocked()
		s.mu.Unlock()
		return nil
	}

	// Claiming the candidate and marking the session busy share one lock hold.
	attempt, err := s.beginSubmitLocked(candidate)
	subject := s.subject
	if err != nil {
		s.entry.Rearm()
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	return s.verify(ctx, subject, candidate, attempt)
}

// Backspace clears slot or moves focus back when it is already empty.
func (s *Session) Backspace(slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardLocked(entity.StepAwaitingCode); err != nil {
		return err
	}

	focus, err := s.entry.Backspace(slot)
	if err != nil {
		s.failLocked(classify(err))
		return err
	}

	s.focus = focus
	s.touchLocked()
	s.notifyLocked()

	return nil
}

// Resend replaces the pending code once the cooldown has elapsed. An empty
// channel keeps the current one.
func (s *Session) Resend(ctx context.Context, channel entity.Channel) error {
	s.mu.Lock()
	if err := s.guardLocked(entity.StepAwaitingCode); err != nil {
		s.mu.Unlock()
		return err
	}

	now := s.clock.Now()
	if !s.gate.IsOpen(now) {
		err := entity.NewThrottledError(s.gate.Remaining(now))
		s.mu.Unlock()
		return err
	}

	if channel == "" {
		channel = s.channel
	}
	if !s.provider.Info().Supports(channel) {
		err := entity.NewError(entity.KindValidation, fmt.Sprintf("%s cannot deliver over %s", s.provider.Info().DisplayName, channel))
		s.failLocked(err)
		s.mu.Unlock()
		return err
	}

	subject := s.subject
	attempt := s.beginLocked()
	s.mu.Unlock()

	receipt, err := s.provider.Resend(ctx, subject, channel)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.finishLocked(attempt) {
		return errSuperseded()
	}
	if err != nil {
		cerr := classify(err)
		s.failLocked(cerr)
		return cerr
	}

	s.channel = channel
	s.pending = pendingFrom(subject, channel, receipt)
	s.gate = s.gate.Reset(s.clock.Now())
	s.entry.Clear()
	s.focus = 0
	s.lastErr = nil
	s.startTickerLocked()
	s.notifyLocked()

	return nil
}

// Back abandons the pending code and returns to AwaitingSubject. It is
// allowed while a call is in flight; that call's result is then dropped.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.step == entity.StepVerified {
		return entity.NewError(entity.KindInvalidStep, "the number is already verified, use reset to start over")
	}

	s.clearAttemptLocked()
	s.notifyLocked()

	return nil
}

// Reset clears every per-attempt field, including a verified identity.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearAttemptLocked()
	s.identity = nil
	s.token = ""
	s.notifyLocked()
}

// Snapshot returns the current view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe streams snapshots. Slow readers miss intermediate snapshots but
// always receive the latest one. The returned func unsubscribes.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextWatch
	s.nextWatch++
	s.watchers[id] = ch
	ch <- s.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if w, ok := s.watchers[id]; ok {
				delete(s.watchers, id)
				close(w)
			}
		})
	}
}

// Close stops the ticker and ends every subscription.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempt.Inc()
	s.stopTickerLocked()
	s.closed = true
	for id, w := range s.watchers {
		delete(s.watchers, id)
		close(w)
	}
}

func (s *Session) guardLocked(want entity.Step) error {
	if s.closed {
		return entity.NewError(entity.KindInvalidStep, "the session has ended")
	}
	if s.busy {
		return entity.NewError(entity.KindBusy, "another request for this session is still running")
	}
	if s.step != want {
		return entity.NewError(entity.KindInvalidStep, fmt.Sprintf("operation not allowed while %s", s.step))
	}
	return nil
}

func (s *Session) beginLocked() uint64 {
	s.busy = true
	s.lastErr = nil
	attempt := s.attempt.Inc()
	s.notifyLocked()
	return attempt
}

// finishLocked releases the busy flag if attempt is still current.
func (s *Session) finishLocked(attempt uint64) bool {
	if s.attempt.Load() != attempt {
		return false
	}
	s.busy = false
	return true
}

func (s *Session) failLocked(err *entity.Error) {
	s.lastErr = err
	s.notifyLocked()
}

func (s *Session) clearAttemptLocked() {
	s.attempt.Inc()
	s.busy = false
	s.stopTickerLocked()
	s.step = entity.StepAwaitingSubject
	s.subject = ""
	s.channel = ""
	s.pending = nil
	s.gate = NewResendGate(s.gate.Window())
	s.entry.Clear()
	s.focus = 0
	s.lastErr = nil
}

func pendingFrom(subject string, channel entity.Channel, r *entity.DispatchReceipt) *entity.PendingVerification {
	return &entity.PendingVerification{
		Subject:   subject,
		Channel:   channel,
		Token:     r.Token,
		SentAt:    r.SentAt,
		ExpiresAt: r.ExpiresAt,
	}
}

func (s *Session) touchLocked() {
	s.updatedAt = s.clock.Now()
}

func (s *Session) startTickerLocked() {
	s.stopTickerLocked()
	if s.spawner == nil {
		return
	}

	tctx, cancel := context.WithCancel(s.base)
	s.stopTick = cancel

	scheduled := s.spawner.Go(tctx, func(ctx context.Context) error {
		defer cancel()

		t := time.NewTicker(s.tick)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
			}

			s.mu.Lock()
			if ctx.Err() != nil || s.step != entity.StepAwaitingCode {
				s.mu.Unlock()
				return nil
			}
			s.notifyLocked()
			open := s.gate.IsOpen(s.clock.Now())
			s.mu.Unlock()

			if open {
				return nil
			}
		}
	})
	if !scheduled {
		cancel()
		s.stopTick = nil
		slog.WarnContext(s.base, "countdown ticker not scheduled, goroutine pool is full or closed", "session_id", s.id)
	}
}

func (s *Session) stopTickerLocked() {
	if s.stopTick != nil {
		s.stopTick()
		s.stopTick = nil
	}
}

func (s *Session) notifyLocked() {
	s.touchLocked()
	if len(s.watchers) == 0 {
		return
	}

	snap := s.snapshotLocked()
	for _, w := range s.watchers {
		select {
		case w <- snap:
		default:
			select {
			case <-w:
			default:
			}
			select {
			case w <- snap:
			default:
			}
		}
	}
}

func (s *Session) snapshotLocked() Snapshot {
	now := s.clock.Now()
	info := s.provider.Info()

	snap := Snapshot{
		ID:          s.id,
		Step:        s.step,
		Provider:    info.Name,
		Subject:     s.subject,
		Channel:     s.channel,
		CodeLength:  s.entry.Len(),
		Digits:      s.entry.Digits(),
		Focus:       s.focus,
		Busy:        s.busy,
		AccessToken: s.token,
		Error:       s.lastErr,
		UpdatedAt:   s.updatedAt,
	}
	if s.step == entity.StepAwaitingCode {
		snap.ResendIn = s.gate.Remaining(now)
		snap.CanResend = snap.ResendIn == 0
	}
	if s.pending != nil {
		p := *s.pending
		snap.Pending = &p
	}
	if s.identity != nil {
		id := *s.identity
		snap.Identity = &id
	}

	return snap
}

func errSuperseded() *entity.Error {
	return entity.NewError(entity.KindSuperseded, "the session changed while the request was running")
}

// classify folds any provider failure into a classified error.
func classify(err error) *entity.Error {
	var e *entity.Error
	if errors.As(err, &e) {
		return e
	}
	return entity.WrapError(entity.KindDelivery, "the delivery provider failed", err)
}
