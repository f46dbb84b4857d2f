package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment variables that override file values.
// The key "jwt.secret" is overridden by PHONEAUTH_JWT_SECRET.
const EnvPrefix = "PHONEAUTH"

// Viper is a Config implementation backed by github.com/spf13/viper.
type Viper struct {
	v *viper.Viper
}

// newViper returns an instance with PHONEAUTH_ env overrides bound.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// NewViper reads file, whose format follows its extension, and reloads it
// whenever it changes on disk. A failed reload keeps the previous values.
func NewViper(file string) (*Viper, error) {
	v := newViper()
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", file, err)
	}

	v.OnConfigChange(func(ev fsnotify.Event) {
		if err := v.ReadInConfig(); err != nil {
			slog.Error("config reload failed", "path", file, "op", ev.Op.String(), "error", err)
			return
		}
		slog.Info("config reloaded", "path", file)
	})
	v.WatchConfig()

	return &Viper{v: v}, nil
}

// NewViperFromBytes reads an in-memory document of configType ("yaml",
// "json", ...). Tests build their config this way.
func NewViperFromBytes(configType string, data []byte) (*Viper, error) {
	if strings.TrimSpace(configType) == "" {
		return nil, errors.New("config: type is required")
	}

	v := newViper()
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", configType, err)
	}
	return &Viper{v: v}, nil
}

func (vc *Viper) GetInt(key string) int { return vc.v.GetInt(key) }
func (vc *Viper) GetInt64(key string) int64 { return vc.v.GetInt64(key) }
func (vc *Viper) GetUint64(key string) uint64 { return vc.v.GetUint64(key) }
func (vc *Viper) GetBool(key string) bool { return vc.v.GetBool(key) }
func (vc *Viper) GetFloat64(key string) float64 {
	return vc.v.GetFloat64(key)
}

// GetUint16 saturates at math.MaxUint16 instead of wrapping.
func (vc *Viper) GetUint16(key string) uint16 {
	return uint16(min(vc.v.GetUint(key), math.MaxUint16))
}

func (vc *Viper) GetMillisecond(key string) time.Duration { return vc.duration(key, time.Millisecond) }
func (vc *Viper) GetSecond(key string) time.Duration { return vc.duration(key, time.Second) }
func (vc *Viper) GetMinute(key string) time.Duration { return vc.duration(key, time.Minute) }

func (vc *Viper) duration(key string, unit time.Duration) time.Duration {
	return time.Duration(vc.v.GetInt64(key)) * unit
}

func (vc *Viper) GetString(key string) string {
	return vc.v.GetString(key)
}

func (vc *Viper) GetArray(key string) []string {
	var raw []string
	switch val := vc.v.Get(key).(type) {
	case []any:
		for _, item := range val {
			raw = append(raw, fmt.Sprint(item))
		}
	case []string:
		raw = val
	default:
		raw = strings.Split(vc.v.GetString(key), ",")
	}

	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}

	return out
}

// Close is a no-op; the file watcher lives as long as the process.
func (vc *Viper) Close() error { return nil }
