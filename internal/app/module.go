package app

import (
	"fmt"
	"log/slog"

	"github.com/shandysiswandi/phoneauth/internal/notification"
	"github.com/shandysiswandi/phoneauth/internal/verification"
)

func (a *App) initModules() error {
	if a.config.GetBool("modules.verification.enabled") {
		err := verification.New(verification.Dependency{
			Ctx:        a.ctx,
			Goroutine:  a.goroutine,
			Router:     a.router,
			Messaging:  a.messaging,
			Config:     a.config,
			Instrument: a.ins,
			UID:        a.uid,
			UUID:       a.uuid,
			HMAC:       a.hmac,
			OTP:        a.otp,
			Clock:      a.clock,
			Validator:  a.validator,
			JWT:        a.jwt,
			CacheConn:  a.cacheConn,
		})
		if err != nil {
			return fmt.Errorf("verification: %w", err)
		}
	} else {
		slog.Info("module disabled", "module", "verification")
	}

	if a.config.GetBool("modules.notification.enabled") {
		err := notification.New(notification.Dependency{
			Ctx:        a.ctx,
			Messaging:  a.messaging,
			Config:     a.config,
			Instrument: a.ins,
			UUID:       a.uuid,
			Clock:      a.clock,
			Goroutine:  a.goroutine,
			Validator:  a.validator,
			Mail:       a.mail,
			CacheConn:  a.cacheConn,
		})
		if err != nil {
			return fmt.Errorf("notification: %w", err)
		}
	} else {
		slog.Info("module disabled", "module", "notification")
	}

	return nil
}
