package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/shandysiswandi/phoneauth/internal/pkg/clock"
	"github.com/shandysiswandi/phoneauth/internal/pkg/config"
	"github.com/shandysiswandi/phoneauth/internal/pkg/goerror"
	"github.com/shandysiswandi/phoneauth/internal/pkg/goroutine"
	"github.com/shandysiswandi/phoneauth/internal/pkg/instrument"
	"github.com/shandysiswandi/phoneauth/internal/pkg/jwt"
	"github.com/shandysiswandi/phoneauth/internal/pkg/uid"
	"github.com/shandysiswandi/phoneauth/internal/pkg/validator"
	"github.com/shandysiswandi/phoneauth/internal/verification/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
)

const (
	defaultResendCooldown = 60 * time.Second
	defaultCountdownTick  = time.Second
	defaultSessionTTL     = 15 * time.Minute
	janitorInterval       = time.Minute
)

type PhoneVerifiedEvent struct {
	IdentityID  int64
	PhoneNumber string
	Channel     string
	Provider    string
	VerifiedAt  time.Time
}

type repoMessaging interface {
	PublishPhoneVerified(ctx context.Context, msg PhoneVerifiedEvent) error
}

// codeSweeper drops abandoned pending codes held in process memory.
type codeSweeper interface {
	Sweep() int
}

type providerSelector interface {
	Select(name string) (entity.Provider, error)
	Catalog() []entity.ProviderInfo
}

type Usecase struct {
	ctx           context.Context
	selector      providerSelector
	repoMessaging repoMessaging
	validator     validator.Validator
	cfg           config.Config
	normalizer    normalizer
	uuid          uid.StringID
	clock         clock.Clocker
	jwt           jwt.JWT
	ins           instrument.Instrumentation
	goroutine     *goroutine.Manager
	codes         codeSweeper

	mu       sync.RWMutex
	sessions map[string]*Session
	active   atomic.Int64

	sendCounter   metric.Int64Counter
	verifyCounter metric.Int64Counter
	resendCounter metric.Int64Counter
}

type Dependency struct {
	Ctx           context.Context
	Selector      providerSelector
	RepoMessaging repoMessaging
	Validator     validator.Validator
	Config        config.Config
	Normalizer    normalizer
	UUID          uid.StringID
	Clock         clock.Clocker
	JWT           jwt.JWT
	Instrument    instrument.Instrumentation
	Goroutine     *goroutine.Manager
	// CodeSweeper is set when pending codes live in process memory.
	CodeSweeper   codeSweeper
}

func New(dep Dependency) *Usecase {
	ctx := dep.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	uc := &Usecase{
		ctx:           ctx,
		selector:      dep.Selector,
		repoMessaging: dep.RepoMessaging,
		validator:     dep.Validator,
		cfg:           dep.Config,
		normalizer:    dep.Normalizer,
		uuid:          dep.UUID,
		clock:         dep.Clock,
		jwt:           dep.JWT,
		ins:           dep.Instrument,
		goroutine:     dep.Goroutine,
		codes:         dep.CodeSweeper,
		sessions:      make(map[string]*Session),
	}

	meter := dep.Instrument.Meter("verification.usecase")
	var err error
	if uc.sendCounter, err = meter.Int64Counter("verification.sends", metric.WithDescription("Number of code dispatches")); err != nil {
		slog.Error("failed to create verification send counter", "error", err)
	}
	if uc.verifyCounter, err = meter.Int64Counter("verification.verifications", metric.WithDescription("Number of code checks")); err != nil {
		slog.Error("failed to create verification check counter", "error", err)
	}
	if uc.resendCounter, err = meter.Int64Counter("verification.resends", metric.WithDescription("Number of code resends")); err != nil {
		slog.Error("failed to create verification resend counter", "error", err)
	}
	if _, err = meter.Int64ObservableGauge("verification.sessions.active",
		metric.WithDescription("Number of live verification sessions"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(uc.active.Load())
			return nil
		}),
	); err != nil {
		slog.Error("failed to create verification session gauge", "error", err)
	}

	return uc
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("verification.usecase").Start(ctx, name)
}

func (s *Usecase) count(ctx context.Context, c metric.Int64Counter, provider string, err error) {
	if c == nil {
		return
	}

	result := "ok"
	if err != nil {
		result = entity.KindOf(err).String()
	}

	c.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("result", result),
	))
}

func (s *Usecase) session(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		slog.WarnContext(ctx, "verification session not found", "session_id", id)
		return nil, goerror.NewBusiness("Verification session not found", goerror.CodeNotFound)
	}

	return sess, nil
}

// RunJanitor evicts sessions idle longer than the configured TTL until ctx ends.
func (s *Usecase) RunJanitor(ctx context.Context) error {
	t := time.NewTicker(janitorInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return nil
		case <-t.C:
			s.evictIdle(ctx)
			s.sweepCodes(ctx)
		}
	}
}

func (s *Usecase) evictIdle(ctx context.Context) int {
	ttl := s.cfg.GetMinute("modules.verification.session_ttl_minutes")
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	cutoff := s.clock.Now().Add(-ttl)

	s.mu.Lock()
	var expired []*Session
	for id, sess := range s.sessions {
		if sess.IdleSince().Before(cutoff) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.active.Store(int64(len(s.sessions)))
	s.mu.Unlock()

	for _, sess := range expired {
		sess.Close()
	}
	if len(expired) > 0 {
		slog.InfoContext(ctx, "evicted idle verification sessions", "count", len(expired))
	}

	return len(expired)
}

func (s *Usecase) sweepCodes(ctx context.Context) int {
	if s.codes == nil {
		return 0
	}

	n := s.codes.Sweep()
	if n > 0 {
		slog.InfoContext(ctx, "dropped abandoned pending codes", "count", n)
	}
	return n
}

func (s *Usecase) closeAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.active.Store(0)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
}

// onVerified issues the access token and announces the identity.
func (s *Usecase) onVerified(ctx context.Context, identity entity.VerifiedIdentity) string {
	token, err := s.jwt.Generate(identity.ID, identity.Subject)
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate identity token", "identity_id", identity.ID, "error", err)
	}

	if err := s.repoMessaging.PublishPhoneVerified(ctx, PhoneVerifiedEvent{
		IdentityID:  identity.ID,
		PhoneNumber: identity.Subject,
		Channel:     identity.Channel.String(),
		Provider:    identity.Provider,
		VerifiedAt:  identity.VerifiedAt,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to publish phone verified", "identity_id", identity.ID, "error", err)
	}

	return token
}

// toGoError converts a classified verification failure into the HTTP error
// model. The entity error stays reachable through errors.As.
func toGoError(err error) error {
	if err == nil {
		return nil
	}

	var ge *goerror.Error
	if errors.As(err, &ge) {
		return err
	}

	var e *entity.Error
	if !errors.As(err, &e) {
		return goerror.NewServer(err)
	}

	opts := []goerror.Option{goerror.WithCause(e), goerror.WithField("kind", e.Kind.String())}

	switch e.Kind {
	case entity.KindValidation:
		return goerror.NewBusiness(e.Message, goerror.CodeInvalidInput, opts...)
	case entity.KindDelivery:
		return goerror.NewBusiness(e.Message, goerror.CodeBadGateway, opts...)
	case entity.KindNoPendingCode:
		return goerror.NewBusiness(e.Message, goerror.CodeNotFound, opts...)
	case entity.KindMismatch:
		return goerror.NewBusiness(e.Message, goerror.CodeUnauthorized, opts...)
	case entity.KindExpired:
		return goerror.NewBusiness(e.Message, goerror.CodeGone, opts...)
	case entity.KindConfiguration:
		return goerror.NewBusiness(e.Message, goerror.CodeUnavailable, opts...)
	case entity.KindResendThrottled:
		secs := int((e.RetryAfter + time.Second - 1) / time.Second)
		opts = append(opts, goerror.WithField("retry_after_seconds", strconv.Itoa(secs)))
		return goerror.NewBusiness(e.Message, goerror.CodeTooManyRequest, opts...)
	case entity.KindBusy, entity.KindSuperseded, entity.KindInvalidStep:
		return goerror.NewBusiness(e.Message, goerror.CodeConflict, opts...)
	default:
		return goerror.NewServer(err, opts...)
	}
}
