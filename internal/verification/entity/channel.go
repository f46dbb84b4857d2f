package entity

import "strings"

// Channel is the medium a one-time code is delivered over.
type Channel string

const (
	ChannelSMS      Channel = "SMS"
	ChannelWhatsApp Channel = "WHATSAPP"
)

// ParseChannel accepts "sms" or "whatsapp" in any case.
func ParseChannel(s string) (Channel, bool) {
	switch Channel(strings.ToUpper(strings.TrimSpace(s))) {
	case ChannelSMS:
		return ChannelSMS, true
	case ChannelWhatsApp:
		return ChannelWhatsApp, true
	default:
		return "", false
	}
}

func (c Channel) String() string {
	return string(c)
}

// Lower returns the lowercase wire name used by most delivery backends.
func (c Channel) Lower() string {
	return strings.ToLower(string(c))
}
