package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/phoneauth/internal/pkg/goerror"
	"github.com/shandysiswandi/phoneauth/internal/pkg/phone"
	"github.com/shandysiswandi/phoneauth/internal/verification/entity"
)

type SubmitSubjectInput struct {
	SessionID   string `validate:"required,uuid"`
	PhoneNumber string `validate:"required,max=32"`
	Channel     string `validate:"required,channel"`
}

// SubmitSubject sends a code to the given phone number.
func (s *Usecase) SubmitSubject(ctx context.Context, in SubmitSubjectInput) (*Snapshot, error) {
	ctx, span := s.startSpan(ctx, "SubmitSubject")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	channel, _ := entity.ParseChannel(in.Channel)

	sess, err := s.session(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}

	provider := sess.Snapshot().Provider
	err = sess.SubmitSubject(ctx, in.PhoneNumber, channel)
	if entity.KindOf(err) != entity.KindValidation && entity.KindOf(err) != entity.KindBusy {
		s.count(ctx, s.sendCounter, provider, err)
	}
	if err != nil {
		logFailure(ctx, "failed to submit phone number", err, "session_id", in.SessionID)
		return nil, toGoError(err)
	}

	snap := sess.Snapshot()
	slog.InfoContext(ctx, "verification code sent",
		"session_id", in.SessionID,
		"phone_number", phone.Mask(snap.Subject),
		"channel", channel.String(),
		"provider", provider,
	)

	return &snap, nil
}

// logFailure logs user-caused failures as warnings and everything else as errors.
func logFailure(ctx context.Context, msg string, err error, args ...any) {
	args = append(args, "kind", entity.KindOf(err).String(), "error", err)

	switch entity.KindOf(err) {
	case entity.KindDelivery, entity.KindConfiguration, entity.KindUnknown:
		slog.ErrorContext(ctx, msg, args...)
	default:
		slog.WarnContext(ctx, msg, args...)
	}
}
