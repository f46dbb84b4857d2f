package provider

import (
	"context"
	"fmt"

	"github.com/shandysiswandi/phoneauth/internal/verification/entity"
)

// Unconfigured stands in for a backend that lacks credentials. Every call fails closed.
type Unconfigured struct {
	info    entity.ProviderInfo
	missing []string
}

func newUnconfigured(name string, missing []string) *Unconfigured {
	return &Unconfigured{info: catalogEntry(name), missing: missing}
}

func (u *Unconfigured) Info() entity.ProviderInfo {
	return u.info
}

func (u *Unconfigured) Send(context.Context, entity.Channel, string) (*entity.DispatchReceipt, error) {
	return nil, u.err()
}

func (u *Unconfigured) Verify(context.Context, string, string) (*entity.VerifiedIdentity, error) {
	return nil, u.err()
}

func (u *Unconfigured) Resend(context.Context, string, entity.Channel) (*entity.DispatchReceipt, error) {
	return nil, u.err()
}

func (u *Unconfigured) err() error {
	return entity.NewError(entity.KindConfiguration,
		fmt.Sprintf("%s is not configured (missing %v)", u.info.DisplayName, u.missing))
}
