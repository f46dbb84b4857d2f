package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/phoneauth/internal/pkg/clock"
	"github.com/shandysiswandi/phoneauth/internal/pkg/config"
	"github.com/shandysiswandi/phoneauth/internal/pkg/idempotency"
	"github.com/shandysiswandi/phoneauth/internal/pkg/instrument"
	"github.com/shandysiswandi/phoneauth/internal/pkg/mail"
	"github.com/shandysiswandi/phoneauth/internal/pkg/validator"
	"go.opentelemetry.io/otel/metric"
)

type repoMail interface {
	Send(ctx context.Context, msg mail.Message) error
}

type dedupe interface {
	Exec(ctx context.Context, key string, fn func(context.Context) error, opts ...idempotency.Option) error
}

// Usecase turns verification events into audit mail.
type Usecase struct {
	cfg       config.Config
	clock     clock.Clocker
	validator validator.Validator
	repoMail  repoMail
	dedupe    dedupe
	ins       instrument.Instrumentation
	mailSent  metric.Int64Counter
}

type Dependency struct {
	Config     config.Config
	Clock      clock.Clocker
	Validator  validator.Validator
	RepoMail   repoMail
	Instrument instrument.Instrumentation
	// Dedupe is optional; without it redelivered events are mailed again.
	Dedupe dedupe
}

func NewNotification(dep Dependency) *Usecase {
	ins := dep.Instrument
	if ins == nil {
		ins = instrument.NewNoop()
	}

	sent, err := ins.Meter("notification.usecase").Int64Counter(
		"notification.audit_mail.total",
		metric.WithDescription("Audit e-mails sent for verified phone numbers"),
	)
	if err != nil {
		slog.Warn("audit mail counter unavailable", "error", err)
	}

	return &Usecase{
		cfg:       dep.Config,
		clock:     dep.Clock,
		validator: dep.Validator,
		repoMail:  dep.RepoMail,
		dedupe:    dep.Dedupe,
		ins:       ins,
		mailSent:  sent,
	}
}

// serviceName falls back to the product name when app.name is unset.
func (s *Usecase) serviceName() string {
	if name := s.cfg.GetString("app.name"); name != "" {
		return name
	}
	return "PhoneAuth"
}
