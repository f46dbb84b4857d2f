// Package config reads service settings by dotted key.
//
// Missing keys resolve to the zero value of the requested type, so callers
// apply their own defaults.
package config

import (
	"io"
	"time"
)

// Durations are stored as plain integers; the getter names the unit.
type durations interface {
	GetMillisecond(key string) time.Duration
	GetSecond(key string) time.Duration
	GetMinute(key string) time.Duration
}

type numbers interface {
	GetInt(key string) int
	GetInt64(key string) int64
	GetUint16(key string) uint16
	GetUint64(key string) uint64
	GetFloat64(key string) float64
}

// Config is the read-only view every module receives.
type Config interface {
	io.Closer
	durations
	numbers

	GetBool(key string) bool
	GetString(key string) string

	// GetArray accepts either a YAML sequence or a comma separated string.
	// Blank elements are dropped.
	GetArray(key string) []string
}
