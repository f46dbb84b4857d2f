package inbound

import (
	"context"

	"github.com/shandysiswandi/phoneauth/internal/notification/usecase"
)

type uc interface {
	ConsumePhoneVerified(ctx context.Context, in usecase.ConsumePhoneVerifiedInput) error
}
