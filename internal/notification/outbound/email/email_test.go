package email

import (
	"context"
	"errors"
	"testing"

	"github.com/shandysiswandi/phoneauth/internal/pkg/instrument"
	"github.com/shandysiswandi/phoneauth/internal/pkg/mail"
)

type captureMail struct {
	sent []mail.Message
	err  error
}

func (c *captureMail) Send(_ context.Context, msg mail.Message) error {
	c.sent = append(c.sent, msg)
	return c.err
}

func (c *captureMail) Close() error { return nil }

func TestMail_Send(t *testing.T) {
	t.Run("fills default sender", func(t *testing.T) {
		// Arrange
		client := &captureMail{}
		m := New(client, "audit@phoneauth.local", instrument.NewNoop())

		// Act
		err := m.Send(context.Background(), mail.Message{To: []string{"ops@example.com"}, Subject: "s"})

		// Assert
		if err != nil {
			t.Fatalf("Send() error = %v", err)
		}
		if len(client.sent) != 1 || client.sent[0].From != "audit@phoneauth.local" {
			t.Fatalf("sent = %+v", client.sent)
		}
	})

	t.Run("keeps explicit sender", func(t *testing.T) {
		// Arrange
		client := &captureMail{}
		m := New(client, "audit@phoneauth.local", instrument.NewNoop())

		// Act
		_ = m.Send(context.Background(), mail.Message{From: "me@example.com", To: []string{"ops@example.com"}})

		// Assert
		if client.sent[0].From != "me@example.com" {
			t.Fatalf("From = %q", client.sent[0].From)
		}
	})

	t.Run("returns client error", func(t *testing.T) {
		// Arrange
		boom := errors.New("smtp down")
		m := New(&captureMail{err: boom}, "", instrument.NewNoop())

		// Act
		err := m.Send(context.Background(), mail.Message{To: []string{"ops@example.com"}})

		// Assert
		if !errors.Is(err, boom) {
			t.Fatalf("Send() error = %v, want %v", err, boom)
		}
	})
}
