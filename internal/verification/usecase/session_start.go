package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/phoneauth/internal/verification/entity"
)

// StartSession opens a verification session bound to the configured provider.
func (s *Usecase) StartSession(ctx context.Context) (*Snapshot, error) {
	ctx, span := s.startSpan(ctx, "StartSession")
	defer span.End()

	name := s.cfg.GetString("modules.verification.provider")
	provider, err := s.selector.Select(name)
	if err != nil {
		slog.ErrorContext(ctx, "failed to select delivery provider", "provider", name, "error", err)
		return nil, toGoError(err)
	}

	window := s.cfg.GetSecond("modules.verification.resend_cooldown_seconds")
	if window <= 0 {
		window = defaultResendCooldown
	}
	tick := s.cfg.GetMillisecond("modules.verification.countdown_tick_millis")
	if tick <= 0 {
		tick = defaultCountdownTick
	}

	sess := NewSession(SessionConfig{
		Context:      s.ctx,
		ID:           s.uuid.Generate(),
		Provider:     provider,
		Normalizer:   s.normalizer,
		Clock:        s.clock,
		Spawner:      s.goroutine,
		ResendWindow: window,
		Tick:         tick,
		OnVerified:   s.onVerified,
	})

	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	s.active.Store(int64(len(s.sessions)))
	s.mu.Unlock()

	slog.InfoContext(ctx, "verification session started", "session_id", sess.ID(), "provider", provider.Info().Name)

	snap := sess.Snapshot()
	return &snap, nil
}

// ListProviders returns the provider catalog and the name of the active one.
func (s *Usecase) ListProviders(ctx context.Context) ([]entity.ProviderInfo, string) {
	_, span := s.startSpan(ctx, "ListProviders")
	defer span.End()

	return s.selector.Catalog(), s.cfg.GetString("modules.verification.provider")
}
