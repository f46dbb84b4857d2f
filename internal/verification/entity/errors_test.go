package entity

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIsKind(t *testing.T) {
	// Arrange
	cause := errors.New("http 500")
	err := fmt.Errorf("twilio: %w", WrapError(KindDelivery, "dispatch failed", cause))

	// Assert
	if !errors.Is(err, ErrDelivery) {
		t.Error("expected errors.Is(err, ErrDelivery)")
	}
	if errors.Is(err, ErrMismatch) {
		t.Error("delivery error must not match ErrMismatch")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable")
	}
	if KindOf(err) != KindDelivery {
		t.Errorf("KindOf() = %s", KindOf(err))
	}
	if KindOf(cause) != KindUnknown {
		t.Errorf("KindOf(plain) = %s", KindOf(cause))
	}
}

func TestParseChannel(t *testing.T) {
	if c, ok := ParseChannel(" whatsapp "); !ok || c != ChannelWhatsApp {
		t.Errorf("ParseChannel(whatsapp) = %v, %v", c, ok)
	}
	if c, ok := ParseChannel("SMS"); !ok || c.Lower() != "sms" {
		t.Errorf("ParseChannel(SMS) = %v, %v", c, ok)
	}
	if _, ok := ParseChannel("voice"); ok {
		t.Error("voice must not parse")
	}
}

func TestProviderInfoSupports(t *testing.T) {
	info := ProviderInfo{Channels: []Channel{ChannelSMS}}
	if !info.Supports(ChannelSMS) || info.Supports(ChannelWhatsApp) {
		t.Errorf("unexpected support for %+v", info)
	}
}
