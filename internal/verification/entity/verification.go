package entity

import (
	"context"
	"time"

	"github.com/samber/lo"
)

// DispatchReceipt acknowledges that a code was handed to the delivery backend.
type DispatchReceipt struct {
	// Token correlates later calls with this dispatch; its format is backend specific.
	Token     string
	Channel   Channel
	SentAt    time.Time
	// ExpiresAt is zero when the backend does not report a lifetime.
	ExpiresAt time.Time
}

// PendingVerification is the orchestrator's view of an outstanding code.
// At most one exists per subject at a time.
type PendingVerification struct {
	Subject   string
	Channel   Channel
	Token     string
	SentAt    time.Time
	ExpiresAt time.Time
}

// VerifiedIdentity is the outcome of a successful verification.
type VerifiedIdentity struct {
	ID         int64
	Subject    string
	Channel    Channel
	Provider   string
	VerifiedAt time.Time
}

// PendingCode is what a self-hosted backend stores for an outstanding code.
// Only a keyed hash of the code is kept.
type PendingCode struct {
	Subject   string    `json:"subject"`
	Channel   Channel   `json:"channel"`
	CodeHash  string    `json:"code_hash"`
	Token     string    `json:"token"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	// Superseded holds hashes of earlier codes this one replaced.
	Superseded []string `json:"superseded,omitempty"`
}

// Replaced reports whether any superseded hash satisfies matches.
func (p PendingCode) Replaced(matches func(hash string) bool) bool {
	return lo.ContainsBy(p.Superseded, matches)
}

// Expired reports whether the code can no longer be redeemed at now.
func (p PendingCode) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// ProviderInfo describes a delivery backend for selection and display.
type ProviderInfo struct {
	Name        string
	DisplayName string
	Description string
	CodeLength  int
	Channels    []Channel
	Voice       bool
	Cost        string
	Reliability string
	Configured  bool
}

// Supports reports whether the backend can deliver over c.
func (p ProviderInfo) Supports(c Channel) bool {
	return lo.Contains(p.Channels, c)
}

// Provider dispatches and checks one-time codes for a subject. Implementations
// must keep at most one redeemable code per subject and make verification
// single-use.
type Provider interface {
	Info() ProviderInfo
	Send(ctx context.Context, channel Channel, subject string) (*DispatchReceipt, error)
	Verify(ctx context.Context, subject, code string) (*VerifiedIdentity, error)
	Resend(ctx context.Context, subject string, channel Channel) (*DispatchReceipt, error)
}
