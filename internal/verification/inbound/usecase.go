package inbound

import (
	"context"

	"github.com/shandysiswandi/phoneauth/internal/verification/entity"
	"github.com/shandysiswandi/phoneauth/internal/verification/usecase"
)

type ucStream interface {
	WatchSession(ctx context.Context, in usecase.SessionInput) (<-chan usecase.Snapshot, func(), error)
}

type uc interface {
	ucStream

	ListProviders(ctx context.Context) ([]entity.ProviderInfo, string)
	StartSession(ctx context.Context) (*usecase.Snapshot, error)
	GetSession(ctx context.Context, in usecase.SessionInput) (*usecase.Snapshot, error)
	SubmitSubject(ctx context.Context, in usecase.SubmitSubjectInput) (*usecase.Snapshot, error)
	SubmitCode(ctx context.Context, in usecase.SubmitCodeInput) (*usecase.Snapshot, error)
	EnterCode(ctx context.Context, in usecase.EnterCodeInput) (*usecase.Snapshot, error)
	Backspace(ctx context.Context, in usecase.BackspaceInput) (*usecase.Snapshot, error)
	Resend(ctx context.Context, in usecase.ResendInput) (*usecase.Snapshot, error)
	Back(ctx context.Context, in usecase.SessionInput) (*usecase.Snapshot, error)
	Reset(ctx context.Context, in usecase.SessionInput) (*usecase.Snapshot, error)
	Identity(ctx context.Context) (*usecase.IdentityOutput, error)
}
