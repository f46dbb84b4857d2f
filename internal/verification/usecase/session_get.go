package usecase

import (
	"context"

	"github.com/shandysiswandi/phoneauth/internal/pkg/goerror"
)

type SessionInput struct {
	SessionID string `validate:"required,uuid"`
}

// GetSession returns the current snapshot of a session.
func (s *Usecase) GetSession(ctx context.Context, in SessionInput) (*Snapshot, error) {
	ctx, span := s.startSpan(ctx, "GetSession")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	sess, err := s.session(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}

	snap := sess.Snapshot()
	return &snap, nil
}

// WatchSession streams snapshots of a session until the returned stop func is
// called or the session ends.
func (s *Usecase) WatchSession(ctx context.Context, in SessionInput) (<-chan Snapshot, func(), error) {
	ctx, span := s.startSpan(ctx, "WatchSession")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, nil, goerror.NewInvalidInput(err)
	}

	sess, err := s.session(ctx, in.SessionID)
	if err != nil {
		return nil, nil, err
	}

	ch, stop := sess.Subscribe()
	return ch, stop, nil
}

// Back returns a session to AwaitingSubject, dropping any in-flight result.
func (s *Usecase) Back(ctx context.Context, in SessionInput) (*Snapshot, error) {
	ctx, span := s.startSpan(ctx, "Back")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	sess, err := s.session(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}

	if err := sess.Back(); err != nil {
		return nil, toGoError(err)
	}

	snap := sess.Snapshot()
	return &snap, nil
}

// Reset clears a session so a new attempt can start.
func (s *Usecase) Reset(ctx context.Context, in SessionInput) (*Snapshot, error) {
	ctx, span := s.startSpan(ctx, "Reset")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	sess, err := s.session(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}

	sess.Reset()

	snap := sess.Snapshot()
	return &snap, nil
}
