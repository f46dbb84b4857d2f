package notification

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/phoneauth/internal/notification/inbound"
	"github.com/shandysiswandi/phoneauth/internal/notification/outbound/email"
	"github.com/shandysiswandi/phoneauth/internal/notification/usecase"
	"github.com/shandysiswandi/phoneauth/internal/pkg/clock"
	"github.com/shandysiswandi/phoneauth/internal/pkg/config"
	"github.com/shandysiswandi/phoneauth/internal/pkg/goroutine"
	"github.com/shandysiswandi/phoneauth/internal/pkg/idempotency"
	"github.com/shandysiswandi/phoneauth/internal/pkg/instrument"
	"github.com/shandysiswandi/phoneauth/internal/pkg/mail"
	"github.com/shandysiswandi/phoneauth/internal/pkg/messaging"
	"github.com/shandysiswandi/phoneauth/internal/pkg/uid"
	"github.com/shandysiswandi/phoneauth/internal/pkg/validator"
)

type Dependency struct {
	Ctx        context.Context            `validate:"required"`
	Messaging  messaging.Messaging        `validate:"required"`
	Config     config.Config              `validate:"required"`
	Instrument instrument.Instrumentation `validate:"required"`
	UUID       uid.StringID               `validate:"required"`
	Clock      clock.Clocker              `validate:"required"`
	Goroutine  *goroutine.Manager         `validate:"required"`
	Validator  validator.Validator        `validate:"required"`
	Mail       mail.Mail                  `validate:"required"`
	// CacheConn enables redelivery dedupe; nil when redis is disabled.
	CacheConn *redis.Client
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	ucDep := usecase.Dependency{
		Config:     dep.Config,
		Clock:      dep.Clock,
		Validator:  dep.Validator,
		RepoMail:   email.New(dep.Mail, dep.Config.GetString("mail.from"), dep.Instrument),
		Instrument: dep.Instrument,
	}
	if dep.CacheConn != nil {
		ucDep.Dedupe = idempotency.New(dep.CacheConn)
	} else {
		slog.WarnContext(dep.Ctx, "redis disabled, audit emails are not deduplicated")
	}

	uc := usecase.NewNotification(ucDep)
	inbound.RegisterMQConsumer(dep.Ctx, dep.Config, dep.Goroutine, dep.Messaging, dep.UUID, uc, dep.Instrument)

	return nil
}
