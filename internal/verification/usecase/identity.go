package usecase

import (
	"context"
	"strings"

	"github.com/shandysiswandi/phoneauth/internal/pkg/goerror"
	"github.com/shandysiswandi/phoneauth/internal/pkg/jwt"
)

type IdentityOutput struct {
	IdentityID  int64
	PhoneNumber string
	Issuer      string
	ExpiresAt   int64
}

// Identity returns the verified identity carried by the caller's access token.
func (s *Usecase) Identity(ctx context.Context) (*IdentityOutput, error) {
	_, span := s.startSpan(ctx, "Identity")
	defer span.End()

	clm := jwt.GetAuth(ctx)
	if clm == nil || strings.TrimSpace(clm.PhoneNumber) == "" {
		return nil, goerror.NewBusiness("Authentication required", goerror.CodeUnauthorized)
	}

	out := &IdentityOutput{
		IdentityID:  clm.IdentityID,
		PhoneNumber: clm.PhoneNumber,
		Issuer:      clm.Issuer,
	}
	if clm.ExpiresAt != nil {
		out.ExpiresAt = clm.ExpiresAt.Unix()
	}

	return out, nil
}
