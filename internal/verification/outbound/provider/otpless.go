package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shandysiswandi/phoneauth/internal/pkg/clock"
	"github.com/shandysiswandi/phoneauth/internal/pkg/uid"
	"github.com/shandysiswandi/phoneauth/internal/verification/entity"
)

const defaultOTPlessBaseURL = "https://auth.otpless.app/auth/otp/v1"

// OTPlessConfig holds the OTPless credentials.
type OTPlessConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	CodeLength   int
	Expiry       time.Duration
}

func (c OTPlessConfig) missing() []string {
	var out []string
	if c.ClientID == "" {
		out = append(out, "client_id")
	}
	if c.ClientSecret == "" {
		out = append(out, "client_secret")
	}
	return out
}

// OTPless delivers codes through the OTPless OTP API.
type OTPless struct {
	cfg     OTPlessConfig
	info    entity.ProviderInfo
	api     *apiClient
	ids     uid.NumberID
	clock   clock.Clocker
	pending *handles
}

type otplessResponse struct {
	Success       bool   `json:"success"`
	RequestID     string `json:"requestId"`
	IsOTPVerified bool   `json:"isOTPVerified"`
	Message       string `json:"message"`
	ErrorMessage  string `json:"errorMessage"`
}

func (r otplessResponse) reason() string {
	if r.Message != "" {
		return r.Message
	}
	return r.ErrorMessage
}

// NewOTPless builds the OTPless backend from opts.OTPless.
func NewOTPless(opts Options) *OTPless {
	cfg := opts.OTPless
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOTPlessBaseURL
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = 5 * time.Minute
	}

	info := catalogEntry(NameOTPless)
	if cfg.CodeLength > 0 {
		info.CodeLength = cfg.CodeLength
	}
	info.Configured = true

	return &OTPless{
		cfg:     cfg,
		info:    info,
		api:     newAPIClient(NameOTPless, opts),
		ids:     opts.IDs,
		clock:   opts.Clock,
		pending: newHandles(),
	}
}

func (o *OTPless) Info() entity.ProviderInfo {
	return o.info
}

func (o *OTPless) headers() http.Header {
	return http.Header{"clientId": {o.cfg.ClientID}, "clientSecret": {o.cfg.ClientSecret}}
}

func (o *OTPless) Send(ctx context.Context, channel entity.Channel, subject string) (*entity.DispatchReceipt, error) {
	resp, err := o.api.do(ctx, apiRequest{
		Op:     "Send",
		Method: http.MethodPost,
		URL:    joinURL(o.cfg.BaseURL, "send"),
		Header: o.headers(),
		JSON: map[string]any{
			"phoneNumber": strings.TrimPrefix(subject, "+"),
			"otpLength":   o.info.CodeLength,
			"channel":     channel.String(),
			"expiry":      int(o.cfg.Expiry.Seconds()),
		},
	})
	if err != nil {
		return nil, entity.WrapError(entity.KindDelivery, "failed to send the code", err)
	}

	if resp.Status == http.StatusUnauthorized || resp.Status == http.StatusForbidden {
		return nil, entity.NewError(entity.KindConfiguration, "OTPless rejected the credentials")
	}

	var body otplessResponse
	if err := resp.decode(&body); err != nil {
		return nil, entity.WrapError(entity.KindDelivery, "unexpected response from OTPless", err)
	}
	if resp.Status != http.StatusOK || body.RequestID == "" {
		return nil, entity.WrapError(entity.KindDelivery, "failed to send the code",
			fmt.Errorf("otpless status %d: %s", resp.Status, body.reason()))
	}

	o.pending.set(subject, body.RequestID, channel)

	now := o.clock.Now()
	return &entity.DispatchReceipt{Token: body.RequestID, Channel: channel, SentAt: now, ExpiresAt: now.Add(o.cfg.Expiry)}, nil
}

func (o *OTPless) Verify(ctx context.Context, subject, code string) (*entity.VerifiedIdentity, error) {
	h, ok := o.pending.get(subject)
	if !ok {
		return nil, entity.NewError(entity.KindNoPendingCode, "no code is pending for this number")
	}

	resp, err := o.api.do(ctx, apiRequest{
		Op:     "Verify",
		Method: http.MethodPost,
		URL:    joinURL(o.cfg.BaseURL, "verify"),
		Header: o.headers(),
		JSON: map[string]any{
			"requestId": h.id,
			"otp":       code,
		},
	})
	if err != nil {
		return nil, entity.WrapError(entity.KindDelivery, "failed to verify the code", err)
	}

	if resp.Status == http.StatusNotFound {
		o.pending.forget(subject)
		return nil, entity.NewError(entity.KindNoPendingCode, "no code is pending for this number")
	}

	var body otplessResponse
	if err := resp.decode(&body); err != nil {
		return nil, entity.WrapError(entity.KindDelivery, "unexpected response from OTPless", err)
	}

	if resp.Status == http.StatusOK && body.IsOTPVerified {
		o.pending.forget(subject)
		return &entity.VerifiedIdentity{
			ID:         o.ids.Generate(),
			Subject:    subject,
			Channel:    h.channel,
			Provider:   NameOTPless,
			VerifiedAt: o.clock.Now(),
		}, nil
	}

	if strings.Contains(strings.ToLower(body.reason()), "expired") {
		return nil, entity.NewError(entity.KindExpired, "the code has expired")
	}
	if resp.Status == http.StatusOK || resp.Status == http.StatusBadRequest {
		return nil, entity.NewError(entity.KindMismatch, "the code does not match")
	}

	return nil, entity.WrapError(entity.KindDelivery, "failed to verify the code",
		fmt.Errorf("otpless status %d: %s", resp.Status, body.reason()))
}

// Resend sends a fresh code; the new request id replaces the previous one.
func (o *OTPless) Resend(ctx context.Context, subject string, channel entity.Channel) (*entity.DispatchReceipt, error) {
	o.pending.forget(subject)
	return o.Send(ctx, channel, subject)
}
