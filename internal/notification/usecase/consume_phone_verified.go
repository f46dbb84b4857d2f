package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/shandysiswandi/phoneauth/internal/notification/entity"
	"github.com/shandysiswandi/phoneauth/internal/pkg/idempotency"
)

const auditStateTTL = 24 * time.Hour

type ConsumePhoneVerifiedInput struct {
	IdentityID  int64     `validate:"required,gt=0"`
	PhoneNumber string    `validate:"required,e164_subject"`
	Channel     string    `validate:"required"`
	Provider    string    `validate:"required"`
	VerifiedAt  time.Time `validate:"required"`
}

// ConsumePhoneVerified mails the audit notice for one verified identity. Invalid
// input and repeated deliveries are dropped without error.
func (s *Usecase) ConsumePhoneVerified(ctx context.Context, in ConsumePhoneVerifiedInput) error {
	ctx, span := s.ins.Tracer("notification.usecase").Start(ctx, "ConsumePhoneVerified")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		slog.WarnContext(ctx, "dropping invalid phone verified event", "error", err)
		return nil
	}

	recipients := s.cfg.GetArray("modules.notification.recipients")
	if len(recipients) == 0 {
		slog.WarnContext(ctx, "no audit recipients configured", "identity_id", in.IdentityID)
		return nil
	}

	subject := entity.VerifiedPhone{
		IdentityID:  in.IdentityID,
		PhoneNumber: in.PhoneNumber,
		Channel:     in.Channel,
		Provider:    in.Provider,
		VerifiedAt:  in.VerifiedAt,
	}
	view := auditView{
		Service:    s.serviceName(),
		Year:       s.clock.Now().Year(),
		IdentityID: strconv.FormatInt(subject.IdentityID, 10),
		Phone:      subject.MaskedPhone(),
		Channel:    subject.Channel,
		Provider:   subject.Provider,
		VerifiedAt: subject.VerifiedAt.UTC().Format(time.RFC3339),
	}
	send := func(ctx context.Context) error {
		return s.sendAuditMail(ctx, recipients, view)
	}

	if s.dedupe == nil {
		return send(ctx)
	}

	key := "phone_verified_notification:" + strconv.FormatInt(in.IdentityID, 10)
	err := s.dedupe.Exec(ctx, key, send,
		idempotency.WithReleaseOnError(),
		idempotency.WithStateTTL(auditStateTTL),
	)
	if errors.Is(err, idempotency.ErrAlreadyCompleted) || errors.Is(err, idempotency.ErrAlreadyInProgress) {
		slog.InfoContext(ctx, "audit email already handled", "identity_id", in.IdentityID, "reason", err.Error())
		return nil
	}

	return err
}
