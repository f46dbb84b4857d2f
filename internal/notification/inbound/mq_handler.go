package inbound

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/shandysiswandi/phoneauth/internal/notification/usecase"
	"github.com/shandysiswandi/phoneauth/internal/pkg/instrument"
	"github.com/shandysiswandi/phoneauth/internal/pkg/messaging"
	"github.com/shandysiswandi/phoneauth/internal/pkg/uid"
	"github.com/shandysiswandi/phoneauth/internal/shared/event"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type MQHandler struct {
	uc   uc
	uuid uid.StringID
	ins  instrument.Instrumentation
}

// begin joins the publisher's correlation id, or mints one, and opens the
// consumer span for msg.
func (h *MQHandler) begin(ctx context.Context, msg messaging.Message, op string) (context.Context, trace.Span) {
	cID := messaging.HeaderValue(msg, event.HeaderCorrelationID)
	if cID == "" {
		cID = h.uuid.Generate()
	}
	ctx = instrument.SetCorrelationID(ctx, cID)

	return h.ins.Tracer("notification.inbound.mq").Start(ctx, op,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", msg.Topic()),
			attribute.String("messaging.message.id", msg.ID()),
		),
	)
}

// PhoneVerifiedNotification sends the audit email for a verified identity.
// A body that does not decode is acknowledged and dropped.
func (h *MQHandler) PhoneVerifiedNotification(ctx context.Context, msg messaging.Message) error {
	ctx, span := h.begin(ctx, msg, "PhoneVerifiedNotification")
	defer span.End()

	var payload event.PhoneVerifiedMessage
	if err := json.Unmarshal(msg.Body(), &payload); err != nil {
		slog.ErrorContext(ctx, "dropping undecodable phone verified message", "msg_id", msg.ID(), "error", err)
		return nil
	}
	slog.InfoContext(ctx, "consume phone verified", "msg_id", msg.ID(), "identity_id", payload.IdentityID)

	err := h.uc.ConsumePhoneVerified(ctx, usecase.ConsumePhoneVerifiedInput{
		IdentityID:  payload.IdentityID,
		PhoneNumber: payload.PhoneNumber,
		Channel:     payload.Channel,
		Provider:    payload.Provider,
		VerifiedAt:  payload.VerifiedAt,
	})
	if err != nil {
		span.RecordError(err)
		slog.ErrorContext(ctx, "phone verified notification failed", "identity_id", payload.IdentityID, "error", err)
	}
	return err
}
