package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/shandysiswandi/phoneauth/internal/pkg/clock"
	"github.com/shandysiswandi/phoneauth/internal/pkg/phone"
	"github.com/shandysiswandi/phoneauth/internal/pkg/uid"
	"github.com/shandysiswandi/phoneauth/internal/verification/entity"
)

const (
	defaultTwilioBaseURL = "https://verify.twilio.com/v2"
	// twilioCodeTTL is the Verify service default code lifetime.
	twilioCodeTTL = 10 * time.Minute
)

// TwilioConfig holds the Twilio Verify v2 credentials.
type TwilioConfig struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	ServiceSID string
	CodeLength int
}

func (c TwilioConfig) missing() []string {
	var out []string
	if c.AccountSID == "" {
		out = append(out, "account_sid")
	}
	if c.AuthToken == "" {
		out = append(out, "auth_token")
	}
	if c.ServiceSID == "" {
		out = append(out, "verify_service_sid")
	}
	return out
}

// Twilio delivers codes through Twilio Verify.
type Twilio struct {
	cfg     TwilioConfig
	info    entity.ProviderInfo
	api     *apiClient
	ids     uid.NumberID
	clock   clock.Clocker
	pending *handles
}

type twilioVerification struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Channel string `json:"channel"`
	Valid   bool   `json:"valid"`
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewTwilio builds the Twilio Verify backend from opts.Twilio.
func NewTwilio(opts Options) *Twilio {
	cfg := opts.Twilio
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultTwilioBaseURL
	}

	info := catalogEntry(NameTwilio)
	if cfg.CodeLength > 0 {
		info.CodeLength = cfg.CodeLength
	}
	info.Configured = true

	return &Twilio{
		cfg:     cfg,
		info:    info,
		api:     newAPIClient(NameTwilio, opts),
		ids:     opts.IDs,
		clock:   opts.Clock,
		pending: newHandles(),
	}
}

func (t *Twilio) Info() entity.ProviderInfo {
	return t.info
}

func (t *Twilio) Send(ctx context.Context, channel entity.Channel, subject string) (*entity.DispatchReceipt, error) {
	resp, err := t.api.do(ctx, apiRequest{
		Op:      "Send",
		Method:  http.MethodPost,
		URL:     joinURL(t.cfg.BaseURL, "Services", t.cfg.ServiceSID, "Verifications"),
		Form:    url.Values{"To": {subject}, "Channel": {channel.Lower()}},
		BasicID: t.cfg.AccountSID,
		BasicPW: t.cfg.AuthToken,
	})
	if err != nil {
		return nil, entity.WrapError(entity.KindDelivery, "failed to send the code", err)
	}

	if resp.Status != http.StatusCreated && resp.Status != http.StatusOK {
		return nil, t.remoteError(resp, "failed to send the code")
	}

	var v twilioVerification
	if err := resp.decode(&v); err != nil {
		return nil, entity.WrapError(entity.KindDelivery, "unexpected response from Twilio", err)
	}
	if v.Status != "pending" || v.SID == "" {
		return nil, entity.NewError(entity.KindDelivery, fmt.Sprintf("Twilio answered with status %q", v.Status))
	}

	t.pending.set(subject, v.SID, channel)

	now := t.clock.Now()
	return &entity.DispatchReceipt{Token: v.SID, Channel: channel, SentAt: now, ExpiresAt: now.Add(twilioCodeTTL)}, nil
}

func (t *Twilio) Verify(ctx context.Context, subject, code string) (*entity.VerifiedIdentity, error) {
	resp, err := t.api.do(ctx, apiRequest{
		Op:      "Verify",
		Method:  http.MethodPost,
		URL:     joinURL(t.cfg.BaseURL, "Services", t.cfg.ServiceSID, "VerificationCheck"),
		Form:    url.Values{"To": {subject}, "Code": {code}},
		BasicID: t.cfg.AccountSID,
		BasicPW: t.cfg.AuthToken,
	})
	if err != nil {
		return nil, entity.WrapError(entity.KindDelivery, "failed to verify the code", err)
	}

	if resp.Status == http.StatusNotFound {
		t.pending.forget(subject)
		return nil, entity.NewError(entity.KindNoPendingCode, "no code is pending for this number")
	}
	if resp.Status != http.StatusOK {
		return nil, t.remoteError(resp, "failed to verify the code")
	}

	var v twilioVerification
	if err := resp.decode(&v); err != nil {
		return nil, entity.WrapError(entity.KindDelivery, "unexpected response from Twilio", err)
	}

	switch v.Status {
	case "approved":
		t.pending.forget(subject)
		ch, ok := entity.ParseChannel(v.Channel)
		if !ok {
			ch = entity.ChannelSMS
		}
		return &entity.VerifiedIdentity{
			ID:         t.ids.Generate(),
			Subject:    subject,
			Channel:    ch,
			Provider:   NameTwilio,
			VerifiedAt: t.clock.Now(),
		}, nil
	case "pending":
		return nil, entity.NewError(entity.KindMismatch, "the code does not match")
	case "expired", "max_attempts_reached":
		return nil, entity.NewError(entity.KindExpired, "the code has expired")
	case "canceled", "deleted":
		t.pending.forget(subject)
		return nil, entity.NewError(entity.KindNoPendingCode, "no code is pending for this number")
	default:
		return nil, entity.NewError(entity.KindDelivery, fmt.Sprintf("Twilio answered with status %q", v.Status))
	}
}

// Resend cancels the outstanding verification before starting a new one.
func (t *Twilio) Resend(ctx context.Context, subject string, channel entity.Channel) (*entity.DispatchReceipt, error) {
	if h, ok := t.pending.get(subject); ok {
		if err := t.cancel(ctx, h.id); err != nil {
			slog.WarnContext(ctx, "failed to cancel previous twilio verification",
				"phone_number", phone.Mask(subject), "error", err)
		}
		t.pending.forget(subject)
	}

	return t.Send(ctx, channel, subject)
}

func (t *Twilio) cancel(ctx context.Context, sid string) error {
	resp, err := t.api.do(ctx, apiRequest{
		Op:      "Cancel",
		Method:  http.MethodPost,
		URL:     joinURL(t.cfg.BaseURL, "Services", t.cfg.ServiceSID, "Verifications", sid),
		Form:    url.Values{"Status": {"canceled"}},
		BasicID: t.cfg.AccountSID,
		BasicPW: t.cfg.AuthToken,
	})
	if err != nil {
		return err
	}
	if resp.Status != http.StatusOK && resp.Status != http.StatusNotFound {
		return fmt.Errorf("twilio cancel answered with status %d", resp.Status)
	}
	return nil
}

func (t *Twilio) remoteError(resp *apiResponse, msg string) error {
	var te twilioError
	_ = resp.decode(&te)
	cause := fmt.Errorf("twilio status %d code %d: %s", resp.Status, te.Code, te.Message)
	if resp.Status == http.StatusUnauthorized || resp.Status == http.StatusForbidden {
		return entity.WrapError(entity.KindConfiguration, "Twilio rejected the credentials", cause)
	}
	if resp.Status == http.StatusBadRequest && te.Code == 60200 {
		return entity.WrapError(entity.KindValidation, "Twilio rejected the phone number", cause)
	}
	return entity.WrapError(entity.KindDelivery, msg, cause)
}
