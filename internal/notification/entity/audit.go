package entity

import (
	"time"

	"github.com/shandysiswandi/phoneauth/internal/pkg/phone"
)

// VerifiedPhone is the audit subject: one identity that proved control of a number.
type VerifiedPhone struct {
	IdentityID  int64
	PhoneNumber string
	Channel     string
	Provider    string
	VerifiedAt  time.Time
}

func (v VerifiedPhone) MaskedPhone() string {
	return phone.Mask(v.PhoneNumber)
}
