// Package mail sends email. Callers build a Message and hand it to a Mail;
// the transport behind it is chosen at startup.
package mail

import (
	"context"
	"io"
)

// Message is one email. At least one of To, Cc or Bcc must be set. When both
// bodies are present the text part is primary and HTML is the alternative.
type Message struct {
	From     string // falls back to the sender's default
	To       []string
	Cc       []string
	Bcc      []string
	Subject  string
	TextBody string
	HTMLBody string
}

func (m Message) recipients() int {
	return len(m.To) + len(m.Cc) + len(m.Bcc)
}

type Mail interface {
	io.Closer
	Send(ctx context.Context, msg Message) error
}
