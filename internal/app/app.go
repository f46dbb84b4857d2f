// Package app assembles the service: configuration, shared libraries,
// brokers, HTTP listeners and the feature modules.
package app

import (
	"context"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/phoneauth/internal/pkg/clock"
	"github.com/shandysiswandi/phoneauth/internal/pkg/config"
	"github.com/shandysiswandi/phoneauth/internal/pkg/goroutine"
	"github.com/shandysiswandi/phoneauth/internal/pkg/hash"
	"github.com/shandysiswandi/phoneauth/internal/pkg/instrument"
	"github.com/shandysiswandi/phoneauth/internal/pkg/jwt"
	"github.com/shandysiswandi/phoneauth/internal/pkg/mail"
	"github.com/shandysiswandi/phoneauth/internal/pkg/messaging"
	"github.com/shandysiswandi/phoneauth/internal/pkg/otp"
	"github.com/shandysiswandi/phoneauth/internal/pkg/router"
	"github.com/shandysiswandi/phoneauth/internal/pkg/uid"
	"github.com/shandysiswandi/phoneauth/internal/pkg/validator"
)

type closer struct {
	name string
	fn   func(context.Context) error
}

type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	config config.Config
	ins    instrument.Instrumentation

	goroutine *goroutine.Manager
	validator validator.Validator
	clock     clock.Clocker
	hmac      hash.Hash
	uid       uid.NumberID
	uuid      uid.StringID
	otp       otp.Generator
	jwt       jwt.JWT

	cacheConn *redis.Client // nil when redis is disabled
	mail      mail.Mail
	messaging messaging.Messaging

	router    *router.Router
	listeners []listener
	closers   []closer
}

// New runs every init step in order and exits the process on the first
// failure, releasing whatever was opened before it.
func New() *App {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{ctx: ctx, cancel: cancel}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"config", a.initConfig},
		{"instrument", a.initInstrument},
		{"libraries", a.initLibraries},
		{"jwt", a.initJWT},
		{"redis", a.initCache},
		{"mail", a.initMail},
		{"messaging", a.initMessaging},
		{"http", a.initHTTPServer},
		{"modules", a.initModules},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			slog.Error("failed to initialize", "step", step.name, "error", err)
			a.closeAll(context.Background())
			os.Exit(1)
		}
	}

	return a
}

// onClose registers fn to run at shutdown. Closers run in reverse
// registration order.
func (a *App) onClose(name string, fn func(context.Context) error) {
	a.closers = append([]closer{{name: name, fn: fn}}, a.closers...)
}

func (a *App) closeAll(ctx context.Context) {
	for _, c := range a.closers {
		if err := c.fn(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to close resource", "name", c.name, "error", err)
		}
	}
	a.closers = nil
}
