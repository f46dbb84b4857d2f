package otp

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
	"go.uber.org/atomic"
)

// Length bounds accepted by Generate.
const (
	MinLength = 4
	MaxLength = 10
)

// ErrInvalidLength is returned when the requested code length is out of range.
var ErrInvalidLength = errors.New("otp: code length out of range")

// Generator produces numeric one-time codes of a given length.
type Generator interface {
	Generate(length int) (string, error)
}

// HOTP implements Generator on top of github.com/pquerna/otp/hotp.
type HOTP struct {
	secretSize int
	counter    atomic.Uint64
}

// NewHOTP returns a generator that draws a 20-byte secret for each code.
func NewHOTP() *HOTP {
	return &HOTP{secretSize: 20}
}

// Generate returns a zero-padded numeric code of exactly length digits.
func (h *HOTP) Generate(length int) (string, error) {
	if length < MinLength || length > MaxLength {
		return "", fmt.Errorf("%w: %d", ErrInvalidLength, length)
	}

	raw := make([]byte, h.secretSize)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	secret := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw)

	return hotp.GenerateCodeCustom(secret, h.counter.Inc(), hotp.ValidateOpts{
		Digits:    otp.Digits(length),
		Algorithm: otp.AlgorithmSHA1,
	})
}
