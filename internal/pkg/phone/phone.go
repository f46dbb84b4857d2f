// Package phone normalizes user-entered phone numbers into E.164 subjects.
package phone

import (
	"errors"
	"strconv"
	"strings"
	"unicode"

	"github.com/nyaruka/phonenumbers"
)

var (
	// ErrEmpty is returned for blank input.
	ErrEmpty = errors.New("phone number is required")
	// ErrNotNumeric is returned when the input carries letters or no digits at all.
	ErrNotNumeric = errors.New("phone number must contain digits only")
	// ErrUnparsable is returned when the input cannot be read as a phone number.
	ErrUnparsable = errors.New("phone number cannot be parsed")
	// ErrTooShort is returned when the number is shorter than its region allows.
	ErrTooShort = errors.New("phone number is too short")
	// ErrTooLong is returned when the number is longer than its region allows.
	ErrTooLong = errors.New("phone number is too long")
	// ErrInvalidCountry is returned for an unknown country calling code.
	ErrInvalidCountry = errors.New("phone number has an invalid country code")
	// ErrInvalid is returned when the number fails the region's numbering plan.
	ErrInvalid = errors.New("phone number is not valid")
)

// Normalizer converts raw input into canonical E.164 strings.
type Normalizer struct {
	defaultRegion string
	strict        bool
}

// NewNormalizer returns a Normalizer. Numbers without a leading "+" are read
// in defaultRegion (ISO 3166 alpha-2, e.g. "US"). With strict set, numbers must
// also belong to an assigned range, not merely have a plausible length.
func NewNormalizer(defaultRegion string, strict bool) *Normalizer {
	return &Normalizer{
		defaultRegion: strings.ToUpper(strings.TrimSpace(defaultRegion)),
		strict:        strict,
	}
}

// Normalize returns raw in E.164 form. It is idempotent: normalizing its own
// output yields the same value.
func (n *Normalizer) Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmpty
	}

	hasDigit := false
	for _, r := range raw {
		if unicode.IsLetter(r) {
			return "", ErrNotNumeric
		}
		if unicode.IsDigit(r) {
			hasDigit = true
		}
	}
	if !hasDigit {
		return "", ErrNotNumeric
	}

	num, err := phonenumbers.Parse(raw, n.defaultRegion)
	if err != nil {
		return "", ErrUnparsable
	}

	switch phonenumbers.IsPossibleNumberWithReason(num) {
	case phonenumbers.IS_POSSIBLE, phonenumbers.IS_POSSIBLE_LOCAL_ONLY:
	case phonenumbers.TOO_SHORT:
		return "", ErrTooShort
	case phonenumbers.TOO_LONG:
		return "", ErrTooLong
	case phonenumbers.INVALID_COUNTRY_CODE:
		return "", ErrInvalidCountry
	default:
		return "", ErrInvalid
	}

	if n.strict && !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalid
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// Split returns the country calling code and national significant number of
// an E.164 subject, e.g. "+15551234567" gives ("1", "5551234567").
func Split(subject string) (countryCode, national string, err error) {
	num, err := phonenumbers.Parse(subject, "")
	if err != nil {
		return "", "", ErrUnparsable
	}

	return strconv.Itoa(int(num.GetCountryCode())), phonenumbers.GetNationalSignificantNumber(num), nil
}

// Mask hides every digit except the last four: "+15551234567" becomes "+1******4567".
// The leading "+" and the first digit are kept so the country stays recognizable.
func Mask(subject string) string {
	digits := 0
	for _, r := range subject {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits <= 4 {
		return subject
	}

	var b strings.Builder
	b.Grow(len(subject))
	seen := 0
	for _, r := range subject {
		if r < '0' || r > '9' {
			b.WriteRune(r)
			continue
		}
		seen++
		if seen == 1 || seen > digits-4 {
			b.WriteRune(r)
		} else {
			b.WriteByte('*')
		}
	}

	return b.String()
}
