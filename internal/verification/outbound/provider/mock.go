package provider

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/shandysiswandi/phoneauth/internal/pkg/clock"
	"github.com/shandysiswandi/phoneauth/internal/pkg/hash"
	"github.com/shandysiswandi/phoneauth/internal/pkg/otp"
	"github.com/shandysiswandi/phoneauth/internal/pkg/phone"
	"github.com/shandysiswandi/phoneauth/internal/pkg/uid"
	"github.com/shandysiswandi/phoneauth/internal/verification/entity"
	"github.com/shandysiswandi/phoneauth/internal/verification/outbound/store"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MockConfig tunes the self-hosted backend.
type MockConfig struct {
	CodeLength int
	Expiry     time.Duration
	// FailureRate in [0,1] is the share of dispatches that fail on purpose.
	FailureRate float64
	// FixedCode, when set, replaces the generated code.
	FixedCode string
}

// Mock generates codes itself, keeps their hashes in a CodeStore and
// "delivers" them to the log.
type Mock struct {
	cfg    MockConfig
	info   entity.ProviderInfo
	store  store.CodeStore
	hash   hash.Hash
	otp    otp.Generator
	ids    uid.NumberID
	tokens uid.StringID
	clock  clock.Clocker
	tracer trace.Tracer
	locks  *subjectLocks
	roll   func() float64
}

// NewMock builds the self-hosted backend.
func NewMock(opts Options) *Mock {
	cfg := opts.Mock
	if cfg.FixedCode != "" {
		cfg.CodeLength = len(cfg.FixedCode)
	}
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = 6
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = 5 * time.Minute
	}

	info := catalogEntry(NameMock)
	info.CodeLength = cfg.CodeLength
	info.Configured = true

	return &Mock{
		cfg:    cfg,
		info:   info,
		store:  opts.Store,
		hash:   opts.Hash,
		otp:    opts.OTP,
		ids:    opts.IDs,
		tokens: opts.Tokens,
		clock:  opts.Clock,
		tracer: tracerOf(opts),
		locks:  newSubjectLocks(),
		roll:   rand.Float64,
	}
}

func (m *Mock) Info() entity.ProviderInfo {
	return m.info
}

func (m *Mock) Send(ctx context.Context, channel entity.Channel, subject string) (*entity.DispatchReceipt, error) {
	ctx, span := m.tracer.Start(ctx, "mock.Send")
	defer span.End()

	unlock := m.locks.lock(subject)
	defer unlock()

	receipt, err := m.dispatch(ctx, channel, subject)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return receipt, err
}

func (m *Mock) Verify(ctx context.Context, subject, code string) (*entity.VerifiedIdentity, error) {
	ctx, span := m.tracer.Start(ctx, "mock.Verify")
	defer span.End()

	unlock := m.locks.lock(subject)
	defer unlock()

	pending, err := m.store.Get(ctx, subject)
	if errors.Is(err, store.ErrNotFound) {
		return nil, entity.NewError(entity.KindNoPendingCode, "no code is pending for this number")
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to read pending code", "phone_number", phone.Mask(subject), "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, entity.WrapError(entity.KindDelivery, "could not read the pending code", err)
	}

	now := m.clock.Now()
	if pending.Expired(now) {
		return nil, entity.NewError(entity.KindExpired, "the code has expired")
	}

	if !m.hash.Verify(pending.CodeHash, code) {
		if pending.Replaced(func(h string) bool { return m.hash.Verify(h, code) }) {
			return nil, entity.NewError(entity.KindNoPendingCode, "this code was replaced by a newer one")
		}
		return nil, entity.NewError(entity.KindMismatch, "the code does not match")
	}

	if err := m.store.Delete(ctx, subject); err != nil {
		slog.ErrorContext(ctx, "failed to consume pending code", "phone_number", phone.Mask(subject), "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, entity.WrapError(entity.KindDelivery, "could not consume the code", err)
	}

	return &entity.VerifiedIdentity{
		ID:         m.ids.Generate(),
		Subject:    subject,
		Channel:    pending.Channel,
		Provider:   NameMock,
		VerifiedAt: now,
	}, nil
}

func (m *Mock) Resend(ctx context.Context, subject string, channel entity.Channel) (*entity.DispatchReceipt, error) {
	ctx, span := m.tracer.Start(ctx, "mock.Resend")
	defer span.End()

	unlock := m.locks.lock(subject)
	defer unlock()

	receipt, err := m.dispatch(ctx, channel, subject)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return receipt, err
}

// maxSuperseded bounds how many replaced codes are remembered per subject.
const maxSuperseded = 5

// dispatch must run with the subject lock held. The stored code replaces any
// previous one for the subject.
func (m *Mock) dispatch(ctx context.Context, channel entity.Channel, subject string) (*entity.DispatchReceipt, error) {
	previous, err := m.store.Get(ctx, subject)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, entity.WrapError(entity.KindDelivery, "could not read the previous code", err)
	}

	if m.cfg.FailureRate > 0 && m.roll() < m.cfg.FailureRate {
		slog.WarnContext(ctx, "mock provider simulated a delivery failure", "phone_number", phone.Mask(subject))
		return nil, entity.NewError(entity.KindDelivery, "failed to deliver the code, please try again")
	}

	code := m.cfg.FixedCode
	if code == "" {
		code, err = m.otp.Generate(m.cfg.CodeLength)
		if err != nil {
			return nil, entity.WrapError(entity.KindDelivery, "could not generate a code", err)
		}
	}

	codeHash, err := m.hash.Hash(code)
	if err != nil {
		return nil, entity.WrapError(entity.KindDelivery, "could not hash the code", err)
	}

	now := m.clock.Now()
	token := m.tokens.Generate()
	pending := entity.PendingCode{
		Subject:   subject,
		Channel:   channel,
		CodeHash:  string(codeHash),
		Token:     token,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.cfg.Expiry),
	}
	if previous != nil {
		pending.Superseded = append(slices.Clone(previous.Superseded), previous.CodeHash)
		if n := len(pending.Superseded); n > maxSuperseded {
			pending.Superseded = pending.Superseded[n-maxSuperseded:]
		}
	}
	if err := m.store.Put(ctx, pending); err != nil {
		slog.ErrorContext(ctx, "failed to store pending code", "phone_number", phone.Mask(subject), "error", err)
		return nil, entity.WrapError(entity.KindDelivery, "could not store the code", err)
	}

	slog.InfoContext(ctx, "mock provider delivered code",
		"phone_number", phone.Mask(subject),
		"channel", channel.String(),
		"code", code,
		"expires_at", pending.ExpiresAt,
	)

	return &entity.DispatchReceipt{Token: token, Channel: channel, SentAt: now, ExpiresAt: pending.ExpiresAt}, nil
}
