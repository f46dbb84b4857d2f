package usecase

import (
	"context"
	htmltemplate "html/template"
	"log/slog"
	"strings"
	texttemplate "text/template"

	"github.com/shandysiswandi/phoneauth/internal/pkg/mail"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const auditSubject = "Phone number verified"

var (
	auditHTML = htmltemplate.Must(htmltemplate.New("audit.html").Parse(
		`<p>A phone number was verified on {{.Service}}.</p>
<ul>
<li>Identity: {{.IdentityID}}</li>
<li>Phone: {{.Phone}}</li>
<li>Channel: {{.Channel}}</li>
<li>Provider: {{.Provider}}</li>
<li>Verified at: {{.VerifiedAt}}</li>
</ul>
<p>&copy; {{.Year}} {{.Service}}</p>`))

	auditText = texttemplate.Must(texttemplate.New("audit.txt").Parse(
		`A phone number was verified on {{.Service}}.
Identity: {{.IdentityID}}
Phone: {{.Phone}}
Channel: {{.Channel}}
Provider: {{.Provider}}
Verified at: {{.VerifiedAt}}`))
)

// auditView is what the audit templates render. Phone is already masked.
type auditView struct {
	Service    string
	Year       int
	IdentityID string
	Phone      string
	Channel    string
	Provider   string
	VerifiedAt string
}

func (s *Usecase) sendAuditMail(ctx context.Context, to []string, view auditView) error {
	var html, text strings.Builder
	if err := auditHTML.Execute(&html, view); err != nil {
		slog.ErrorContext(ctx, "failed to render audit mail html", "error", err)
		return err
	}
	if err := auditText.Execute(&text, view); err != nil {
		slog.ErrorContext(ctx, "failed to render audit mail text", "error", err)
		return err
	}

	err := s.repoMail.Send(ctx, mail.Message{
		To:       to,
		Subject:  auditSubject,
		TextBody: text.String(),
		HTMLBody: html.String(),
	})
	s.countMail(ctx, err)
	if err != nil {
		slog.ErrorContext(ctx, "failed to send audit mail", "recipients", len(to), "error", err)
	}
	return err
}

func (s *Usecase) countMail(ctx context.Context, err error) {
	if s.mailSent == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	s.mailSent.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
