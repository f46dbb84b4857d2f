package inbound

import (
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shandysiswandi/phoneauth/internal/pkg/phone"
	"github.com/shandysiswandi/phoneauth/internal/verification/entity"
	"github.com/shandysiswandi/phoneauth/internal/verification/usecase"
)

type ProviderResponse struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Description string   `json:"description"`
	CodeLength  int      `json:"code_length"`
	Channels    []string `json:"channels"`
	Voice       bool     `json:"voice"`
	Cost        string   `json:"cost"`
	Reliability string   `json:"reliability"`
	Configured  bool     `json:"configured"`
	Active      bool     `json:"active"`
}

type ProvidersResponse struct {
	Providers []ProviderResponse `json:"providers"`
	Active    string             `json:"active"`
}

type SubmitSubjectRequest struct {
	PhoneNumber string `json:"phone_number"`
	Channel     string `json:"channel"`
}

type SubmitCodeRequest struct {
	Code string `json:"code"`
}

type EnterCodeRequest struct {
	Slot  int    `json:"slot"`
	Value string `json:"value"`
	Paste bool   `json:"paste"`
}

type BackspaceRequest struct {
	Slot int `json:"slot"`
}

type ResendRequest struct {
	Channel string `json:"channel"`
}

type PendingResponse struct {
	PhoneNumber string     `json:"phone_number"`
	Channel     string     `json:"channel"`
	SentAt      time.Time  `json:"sent_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type VerifiedIdentityResponse struct {
	IdentityID  int64     `json:"identity_id,string"`
	PhoneNumber string    `json:"phone_number"`
	Channel     string    `json:"channel"`
	Provider    string    `json:"provider"`
	VerifiedAt  time.Time `json:"verified_at"`
}

type SessionErrorResponse struct {
	Kind              string `json:"kind"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

type SessionResponse struct {
	ID              string                    `json:"id"`
	Step            string                    `json:"step"`
	Provider        string                    `json:"provider"`
	PhoneNumber     string                    `json:"phone_number,omitempty"`
	MaskedNumber    string                    `json:"masked_phone_number,omitempty"`
	Channel         string                    `json:"channel,omitempty"`
	CodeLength      int                       `json:"code_length"`
	Digits          []string                  `json:"digits"`
	Focus           int                       `json:"focus"`
	Busy            bool                      `json:"busy"`
	ResendInSeconds int                       `json:"resend_in_seconds"`
	CanResend       bool                      `json:"can_resend"`
	Pending         *PendingResponse          `json:"pending,omitempty"`
	Identity        *VerifiedIdentityResponse `json:"identity,omitempty"`
	AccessToken     string                    `json:"access_token,omitempty"`
	Error           *SessionErrorResponse     `json:"error,omitempty"`
	UpdatedAt       time.Time                 `json:"updated_at"`

	created bool
	message string
}

func (r SessionResponse) StatusCode() int {
	if r.created {
		return http.StatusCreated
	}
	return http.StatusOK
}

func (r SessionResponse) Message() string {
	if r.message != "" {
		return r.message
	}
	return "request has been successfully"
}

type IdentityResponse struct {
	IdentityID  int64  `json:"identity_id,string"`
	PhoneNumber string `json:"phone_number"`
	Issuer      string `json:"issuer"`
	ExpiresAt   int64  `json:"expires_at"`
}

func seconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}

func toSessionResponse(s *usecase.Snapshot) SessionResponse {
	resp := SessionResponse{
		ID:              s.ID,
		Step:            s.Step.String(),
		Provider:        s.Provider,
		PhoneNumber:     s.Subject,
		Channel:         s.Channel.String(),
		CodeLength:      s.CodeLength,
		Digits:          s.Digits,
		Focus:           s.Focus,
		Busy:            s.Busy,
		ResendInSeconds: seconds(s.ResendIn),
		CanResend:       s.CanResend,
		AccessToken:     s.AccessToken,
		UpdatedAt:       s.UpdatedAt,
	}
	if s.Subject != "" {
		resp.MaskedNumber = phone.Mask(s.Subject)
	}
	if s.Pending != nil {
		resp.Pending = &PendingResponse{
			PhoneNumber: s.Pending.Subject,
			Channel:     s.Pending.Channel.String(),
			SentAt:      s.Pending.SentAt,
		}
		if !s.Pending.ExpiresAt.IsZero() {
			resp.Pending.ExpiresAt = lo.ToPtr(s.Pending.ExpiresAt)
		}
	}
	if s.Identity != nil {
		resp.Identity = &VerifiedIdentityResponse{
			IdentityID:  s.Identity.ID,
			PhoneNumber: s.Identity.Subject,
			Channel:     s.Identity.Channel.String(),
			Provider:    s.Identity.Provider,
			VerifiedAt:  s.Identity.VerifiedAt,
		}
	}
	if s.Error != nil {
		resp.Error = &SessionErrorResponse{
			Kind:              s.Error.Kind.String(),
			Message:           s.Error.Message,
			RetryAfterSeconds: seconds(s.Error.RetryAfter),
		}
	}

	return resp
}

func toProvidersResponse(items []entity.ProviderInfo, active string) ProvidersResponse {
	return ProvidersResponse{
		Active: active,
		Providers: lo.Map(items, func(p entity.ProviderInfo, _ int) ProviderResponse {
			return ProviderResponse{
				Name:        p.Name,
				DisplayName: p.DisplayName,
				Description: p.Description,
				CodeLength:  p.CodeLength,
				Channels:    lo.Map(p.Channels, func(c entity.Channel, _ int) string { return c.Lower() }),
				Voice:       p.Voice,
				Cost:        p.Cost,
				Reliability: p.Reliability,
				Configured:  p.Configured,
				Active:      strings.EqualFold(p.Name, strings.TrimSpace(active)),
			}
		}),
	}
}
