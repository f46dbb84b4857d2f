package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/phoneauth/internal/pkg/goerror"
	"github.com/shandysiswandi/phoneauth/internal/verification/entity"
)

type ResendInput struct {
	SessionID string `validate:"required,uuid"`
	Channel   string `validate:"omitempty,channel"`
}

// Resend replaces the pending code, optionally over another channel.
func (s *Usecase) Resend(ctx context.Context, in ResendInput) (*Snapshot, error) {
	ctx, span := s.startSpan(ctx, "Resend")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	var channel entity.Channel
	if in.Channel != "" {
		channel, _ = entity.ParseChannel(in.Channel)
	}

	sess, err := s.session(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}

	provider := sess.Snapshot().Provider
	err = sess.Resend(ctx, channel)
	if kind := entity.KindOf(err); err == nil || kind == entity.KindDelivery || kind == entity.KindConfiguration {
		s.count(ctx, s.resendCounter, provider, err)
	}
	if err != nil {
		logFailure(ctx, "failed to resend code", err, "session_id", in.SessionID)
		return nil, toGoError(err)
	}

	snap := sess.Snapshot()
	slog.InfoContext(ctx, "verification code resent", "session_id", in.SessionID, "channel", snap.Channel.String())

	return &snap, nil
}
