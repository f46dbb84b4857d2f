package mail

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"
)

var (
	ErrSMTPHostPortRequired = errors.New("mail: smtp host and port are required")
	ErrSMTPNoRecipients     = errors.New("mail: no recipients")
	ErrSMTPNoSender         = errors.New("mail: no sender")
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string // auth is skipped when empty
	Password string
	From     string
}

// SMTP opens a connection per Send. Port 465 uses implicit TLS; other ports
// upgrade with STARTTLS when the server offers it.
type SMTP struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if cfg.Host == "" || cfg.Port == 0 {
		return nil, ErrSMTPHostPortRequired
	}

	return &SMTP{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}, nil
}

func (s *SMTP) Send(ctx context.Context, msg Message) error {
	m, err := s.compose(msg)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("mail: smtp send: %w", err)
	}
	return nil
}

func (s *SMTP) compose(msg Message) (*gomail.Message, error) {
	if msg.recipients() == 0 {
		return nil, ErrSMTPNoRecipients
	}
	from := msg.From
	if from == "" {
		from = s.from
	}
	if from == "" {
		return nil, ErrSMTPNoSender
	}

	m := gomail.NewMessage(gomail.SetCharset("UTF-8"))
	m.SetHeader("From", from)
	m.SetHeader("Subject", msg.Subject)
	for field, addrs := range map[string][]string{"To": msg.To, "Cc": msg.Cc, "Bcc": msg.Bcc} {
		if len(addrs) > 0 {
			m.SetHeader(field, addrs...)
		}
	}

	switch {
	case msg.TextBody != "" && msg.HTMLBody != "":
		m.SetBody("text/plain", msg.TextBody)
		m.AddAlternative("text/html", msg.HTMLBody)
	case msg.HTMLBody != "":
		m.SetBody("text/html", msg.HTMLBody)
	default:
		m.SetBody("text/plain", msg.TextBody)
	}

	return m, nil
}

// Close is a no-op; connections do not outlive Send.
func (s *SMTP) Close() error { return nil }
