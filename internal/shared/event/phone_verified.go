// Package event holds the wire contracts shared by publishers and consumers
// of broker messages.
package event

import "time"

const (
	PhoneVerifiedDestination          string = "phone_verified"
	PhoneVerifiedConsumerNotification string = "phone_verified_notification"
)

// HeaderCorrelationID carries the publisher's correlation id so consumer
// logs join the originating request.
const HeaderCorrelationID string = "cID"

// PhoneVerifiedMessage is published once per successful verification, keyed
// by phone number.
type PhoneVerifiedMessage struct {
	IdentityID  int64     `json:"identity_id,string"`
	PhoneNumber string    `json:"phone_number"`
	Channel     string    `json:"channel"`
	Provider    string    `json:"provider"`
	VerifiedAt  time.Time `json:"verified_at"`
}
