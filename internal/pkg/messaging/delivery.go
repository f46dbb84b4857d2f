package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/shandysiswandi/phoneauth/internal/pkg/stacktrace"
	"go.uber.org/atomic"
)

// receipt makes settling a delivery idempotent. Drivers embed it in their
// message type and guard every ack or nack with claim.
type receipt struct {
	done atomic.Bool
}

func (r *receipt) claim() bool   { return !r.done.Swap(true) }
func (r *receipt) settled() bool { return r.done.Load() }

type delivery interface {
	Message
	nack(ctx context.Context) error
	settled() bool
}

// dispatch runs handler for one delivery and, with autoAck, settles it from
// the result. It only returns settle failures; handler errors end in a nack.
func dispatch(ctx context.Context, driver string, msg delivery, handler Handler, autoAck bool) error {
	herr := runHandler(ctx, driver, msg, handler)
	if herr != nil {
		slog.WarnContext(ctx, "messaging handler failed",
			"driver", driver,
			"topic", msg.Topic(),
			"message_id", msg.ID(),
			"error", herr,
		)
	}

	if !autoAck || msg.settled() {
		return nil
	}
	if herr != nil {
		return msg.nack(ctx)
	}
	return msg.Ack(ctx)
}

func runHandler(ctx context.Context, driver string, msg Message, handler Handler) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			slog.ErrorContext(ctx, "panic in messaging handler",
				"driver", driver,
				"panic", rvr,
				"stack", stacktrace.Trim(debug.Stack()),
			)
			err = fmt.Errorf("messaging: %s handler panicked: %v", driver, rvr)
		}
	}()

	return handler(ctx, msg)
}
