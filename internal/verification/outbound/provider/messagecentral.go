package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/shandysiswandi/phoneauth/internal/pkg/clock"
	"github.com/shandysiswandi/phoneauth/internal/pkg/phone"
	"github.com/shandysiswandi/phoneauth/internal/pkg/uid"
	"github.com/shandysiswandi/phoneauth/internal/verification/entity"
)

const defaultMessageCentralBaseURL = "https://cpaas.messagecentral.com/verification/v3"

// Message Central response codes with a canonical meaning.
const (
	mcCodeSuccess         = 200
	mcCodeWrongOTP        = 702
	mcCodeAlreadyVerified = 703
	mcCodeExpired         = 705
	mcCodeInvalidID       = 505
)

// MessageCentralConfig holds the Message Central verification credentials.
type MessageCentralConfig struct {
	BaseURL    string
	AuthToken  string
	CustomerID string
	CodeLength int
}

func (c MessageCentralConfig) missing() []string {
	var out []string
	if c.AuthToken == "" {
		out = append(out, "auth_token")
	}
	if c.CustomerID == "" {
		out = append(out, "customer_id")
	}
	return out
}

// MessageCentral delivers codes through Message Central verification v3.
type MessageCentral struct {
	cfg     MessageCentralConfig
	info    entity.ProviderInfo
	api     *apiClient
	ids     uid.NumberID
	clock   clock.Clocker
	pending *handles
}

// flexID accepts ids sent either as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type mcResponse struct {
	ResponseCode int    `json:"responseCode"`
	Message      string `json:"message"`
	Data         struct {
		VerificationID     flexID `json:"verificationId"`
		VerificationStatus string `json:"verificationStatus"`
		ResponseCode       flexID `json:"responseCode"`
	} `json:"data"`
}

// code prefers the nested response code, which carries the verification outcome.
func (r mcResponse) code() int {
	if n, err := strconv.Atoi(string(r.Data.ResponseCode)); err == nil && n != 0 {
		return n
	}
	return r.ResponseCode
}

// NewMessageCentral builds the Message Central backend from opts.MessageCentral.
func NewMessageCentral(opts Options) *MessageCentral {
	cfg := opts.MessageCentral
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultMessageCentralBaseURL
	}

	info := catalogEntry(NameMessageCentral)
	if cfg.CodeLength > 0 {
		info.CodeLength = cfg.CodeLength
	}
	info.Configured = true

	return &MessageCentral{
		cfg:     cfg,
		info:    info,
		api:     newAPIClient(NameMessageCentral, opts),
		ids:     opts.IDs,
		clock:   opts.Clock,
		pending: newHandles(),
	}
}

func (m *MessageCentral) Info() entity.ProviderInfo {
	return m.info
}

func (m *MessageCentral) Send(ctx context.Context, channel entity.Channel, subject string) (*entity.DispatchReceipt, error) {
	cc, national, err := phone.Split(subject)
	if err != nil {
		return nil, entity.WrapError(entity.KindValidation, "phone number is not in E.164 form", err)
	}

	resp, err := m.api.do(ctx, apiRequest{
		Op:     "Send",
		Method: http.MethodPost,
		URL:    joinURL(m.cfg.BaseURL, "send"),
		Header: http.Header{"authkey": {m.cfg.AuthToken}},
		JSON: map[string]any{
			"countryCode":  cc,
			"customerId":   m.cfg.CustomerID,
			"mobileNumber": national,
			"type":         channel.String(),
			"otpLength":    m.info.CodeLength,
		},
	})
	if err != nil {
		return nil, entity.WrapError(entity.KindDelivery, "failed to send the code", err)
	}

	var body mcResponse
	if err := resp.decode(&body); err != nil {
		return nil, entity.WrapError(entity.KindDelivery, "unexpected response from Message Central", err)
	}
	if resp.Status == http.StatusUnauthorized || resp.Status == http.StatusForbidden {
		return nil, entity.NewError(entity.KindConfiguration, "Message Central rejected the credentials")
	}
	if body.ResponseCode != mcCodeSuccess || body.Data.VerificationID == "" {
		return nil, entity.WrapError(entity.KindDelivery, "failed to send the code",
			fmt.Errorf("messagecentral status %d code %d: %s", resp.Status, body.ResponseCode, body.Message))
	}

	id := string(body.Data.VerificationID)
	m.pending.set(subject, id, channel)

	return &entity.DispatchReceipt{Token: id, Channel: channel, SentAt: m.clock.Now()}, nil
}

func (m *MessageCentral) Verify(ctx context.Context, subject, code string) (*entity.VerifiedIdentity, error) {
	h, ok := m.pending.get(subject)
	if !ok {
		return nil, entity.NewError(entity.KindNoPendingCode, "no code is pending for this number")
	}

	cc, national, err := phone.Split(subject)
	if err != nil {
		return nil, entity.WrapError(entity.KindValidation, "phone number is not in E.164 form", err)
	}

	resp, err := m.api.do(ctx, apiRequest{
		Op:     "Verify",
		Method: http.MethodPost,
		URL:    joinURL(m.cfg.BaseURL, "validateOtp"),
		Header: http.Header{"authkey": {m.cfg.AuthToken}},
		JSON: map[string]any{
			"countryCode":    cc,
			"customerId":     m.cfg.CustomerID,
			"mobileNumber":   national,
			"verificationId": h.id,
			"code":           code,
		},
	})
	if err != nil {
		return nil, entity.WrapError(entity.KindDelivery, "failed to verify the code", err)
	}

	var body mcResponse
	if err := resp.decode(&body); err != nil {
		return nil, entity.WrapError(entity.KindDelivery, "unexpected response from Message Central", err)
	}

	if body.ResponseCode == mcCodeSuccess && body.Data.VerificationStatus == "VERIFICATION_COMPLETED" {
		m.pending.forget(subject)
		return &entity.VerifiedIdentity{
			ID:         m.ids.Generate(),
			Subject:    subject,
			Channel:    h.channel,
			Provider:   NameMessageCentral,
			VerifiedAt: m.clock.Now(),
		}, nil
	}

	switch body.code() {
	case mcCodeWrongOTP:
		return nil, entity.NewError(entity.KindMismatch, "the code does not match")
	case mcCodeExpired:
		return nil, entity.NewError(entity.KindExpired, "the code has expired")
	case mcCodeAlreadyVerified, mcCodeInvalidID:
		m.pending.forget(subject)
		return nil, entity.NewError(entity.KindNoPendingCode, "no code is pending for this number")
	default:
		return nil, entity.WrapError(entity.KindDelivery, "failed to verify the code",
			fmt.Errorf("messagecentral status %d code %d: %s", resp.Status, body.code(), body.Message))
	}
}

// Resend requests a fresh code; the new verification id replaces the previous one.
func (m *MessageCentral) Resend(ctx context.Context, subject string, channel entity.Channel) (*entity.DispatchReceipt, error) {
	m.pending.forget(subject)
	return m.Send(ctx, channel, subject)
}
