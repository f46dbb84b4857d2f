// Package uid generates identifiers. Sessions are keyed by UUIDv7 strings;
// verified identities get snowflake numbers.
package uid

import "github.com/google/uuid"

type StringID interface {
	Generate() string
}

type NumberID interface {
	Generate() int64
}

// UUID emits version 7 UUIDs, which sort by creation time.
type UUID struct{}

func NewUUID() *UUID { return &UUID{} }

// Generate falls back to a random version 4 UUID if the v7 clock source fails.
func (*UUID) Generate() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
