package hash

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HMACSHA256 digests strings under a server-side key.
type HMACSHA256 struct {
	key []byte
}

func NewHMACSHA256(secret string) *HMACSHA256 {
	return &HMACSHA256{key: []byte(secret)}
}

// Hash returns the lowercase hex digest of str.
func (h *HMACSHA256) Hash(str string) ([]byte, error) {
	sum := h.sum(str)
	out := make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(out, sum)
	return out, nil
}

// Verify reports whether hashed is the digest of str. Malformed hex never
// matches.
func (h *HMACSHA256) Verify(hashed, str string) bool {
	want, err := hex.DecodeString(hashed)
	if err != nil {
		return false
	}
	return hmac.Equal(want, h.sum(str))
}

func (h *HMACSHA256) sum(str string) []byte {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(str))
	return mac.Sum(nil)
}
