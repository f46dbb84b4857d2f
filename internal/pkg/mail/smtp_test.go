package mail

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestNewSMTPRequiresHostPort(t *testing.T) {
	if _, err := NewSMTP(SMTPConfig{Host: "localhost"}); !errors.Is(err, ErrSMTPHostPortRequired) {
		t.Fatalf("expected ErrSMTPHostPortRequired, got %v", err)
	}
}

func TestSendValidatesEnvelope(t *testing.T) {
	// Arrange
	s, err := NewSMTP(SMTPConfig{Host: "localhost", Port: 1025})
	if err != nil {
		t.Fatalf("NewSMTP() error = %v", err)
	}

	// Act
	errNoRcpt := s.Send(context.Background(), Message{Subject: "x"})
	errNoSender := s.Send(context.Background(), Message{To: []string{"ops@example.com"}})

	// Assert
	if !errors.Is(errNoRcpt, ErrSMTPNoRecipients) {
		t.Errorf("expected ErrSMTPNoRecipients, got %v", errNoRcpt)
	}
	if !errors.Is(errNoSender, ErrSMTPNoSender) {
		t.Errorf("expected ErrSMTPNoSender, got %v", errNoSender)
	}
}

func TestSendHonorsCanceledContext(t *testing.T) {
	s, err := NewSMTP(SMTPConfig{Host: "localhost", Port: 1025, From: "noreply@example.com"})
	if err != nil {
		t.Fatalf("NewSMTP() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Send(ctx, Message{To: []string{"ops@example.com"}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Send() = %v, want context.Canceled", err)
	}
}

func TestCompose(t *testing.T) {
	// Arrange
	s, err := NewSMTP(SMTPConfig{Host: "localhost", Port: 1025, From: "noreply@example.com"})
	if err != nil {
		t.Fatalf("NewSMTP() error = %v", err)
	}

	// Act
	m, err := s.compose(Message{
		To:       []string{"ops@example.com"},
		Bcc:      []string{"audit@example.com"},
		Subject:  "Phone number verified",
		TextBody: "hello",
		HTMLBody: "<p>hello</p>",
	})

	// Assert
	if err != nil {
		t.Fatalf("compose() error = %v", err)
	}
	if got := m.GetHeader("From"); len(got) != 1 || got[0] != "noreply@example.com" {
		t.Errorf("From = %v", got)
	}

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	raw := buf.String()
	for _, want := range []string{"multipart/alternative", "text/plain", "text/html", "<p>hello</p>", "To: ops@example.com"} {
		if !strings.Contains(raw, want) {
			t.Errorf("message missing %q:\n%s", want, raw)
		}
	}
	if strings.Contains(raw, "audit@example.com") {
		t.Error("bcc recipient leaked into headers")
	}
}
