package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/phoneauth/internal/pkg/goerror"
	"github.com/shandysiswandi/phoneauth/internal/pkg/phone"
	"github.com/shandysiswandi/phoneauth/internal/verification/entity"
)

type SubmitCodeInput struct {
	SessionID string `validate:"required,uuid"`
	Code      string `validate:"required,digits,min=4,max=10"`
}

// SubmitCode checks a complete code.
func (s *Usecase) SubmitCode(ctx context.Context, in SubmitCodeInput) (*Snapshot, error) {
	ctx, span := s.startSpan(ctx, "SubmitCode")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	sess, err := s.session(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}

	return s.afterCode(ctx, sess, sess.SubmitCode(ctx, in.Code))
}

type EnterCodeInput struct {
	SessionID string `validate:"required,uuid"`
	Slot      int    `validate:"min=0,max=9"`
	Value     string `validate:"max=64"`
	Paste     bool
}

// EnterCode types or pastes digits into the code slots. A complete code is
// submitted automatically.
func (s *Usecase) EnterCode(ctx context.Context, in EnterCodeInput) (*Snapshot, error) {
	ctx, span := s.startSpan(ctx, "EnterCode")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	sess, err := s.session(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}

	if in.Paste {
		err = sess.PasteCode(ctx, in.Slot, in.Value)
	} else {
		err = sess.EnterCode(ctx, in.Slot, in.Value)
	}

	return s.afterCode(ctx, sess, err)
}

type BackspaceInput struct {
	SessionID string `validate:"required,uuid"`
	Slot      int    `validate:"min=0,max=9"`
}

// Backspace clears a code slot.
func (s *Usecase) Backspace(ctx context.Context, in BackspaceInput) (*Snapshot, error) {
	ctx, span := s.startSpan(ctx, "Backspace")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	sess, err := s.session(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}

	if err := sess.Backspace(in.Slot); err != nil {
		return nil, toGoError(err)
	}

	snap := sess.Snapshot()
	return &snap, nil
}

func (s *Usecase) afterCode(ctx context.Context, sess *Session, err error) (*Snapshot, error) {
	snap := sess.Snapshot()

	if kind := entity.KindOf(err); kind != entity.KindValidation && kind != entity.KindBusy && kind != entity.KindInvalidStep {
		if err != nil || snap.Step == entity.StepVerified {
			s.count(ctx, s.verifyCounter, snap.Provider, err)
		}
	}
	if err != nil {
		logFailure(ctx, "failed to verify code", err, "session_id", sess.ID())
		return nil, toGoError(err)
	}

	if snap.Step == entity.StepVerified && snap.Identity != nil {
		slog.InfoContext(ctx, "phone number verified",
			"session_id", sess.ID(),
			"identity_id", snap.Identity.ID,
			"phone_number", phone.Mask(snap.Identity.Subject),
		)
	}

	return &snap, nil
}
