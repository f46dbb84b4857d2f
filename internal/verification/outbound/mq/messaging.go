package mq

import (
	"context"
	"encoding/json"

	"github.com/shandysiswandi/phoneauth/internal/pkg/instrument"
	"github.com/shandysiswandi/phoneauth/internal/pkg/messaging"
	"github.com/shandysiswandi/phoneauth/internal/shared/event"
	"github.com/shandysiswandi/phoneauth/internal/verification/usecase"
	"go.opentelemetry.io/otel/codes"
)

type Messaging struct {
	client messaging.Publisher
	ins    instrument.Instrumentation
}

func NewMessaging(client messaging.Publisher, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, ins: ins}
}

// PublishPhoneVerified announces a verified identity. Messages are keyed by
// phone number so one subject's events stay ordered on partitioned brokers.
func (m *Messaging) PublishPhoneVerified(ctx context.Context, msg usecase.PhoneVerifiedEvent) error {
	ctx, span := m.ins.Tracer("verification.outbound.mq").Start(ctx, "PublishPhoneVerified")
	defer span.End()

	body, err := json.Marshal(event.PhoneVerifiedMessage{
		IdentityID:  msg.IdentityID,
		PhoneNumber: msg.PhoneNumber,
		Channel:     msg.Channel,
		Provider:    msg.Provider,
		VerifiedAt:  msg.VerifiedAt,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	cID := instrument.GetCorrelationID(ctx)
	if _, err := m.client.Publish(ctx, event.PhoneVerifiedDestination, messaging.OutgoingMessage{
		Body:    body,
		Key:     []byte(msg.PhoneNumber),
		Headers: []messaging.Header{{Key: event.HeaderCorrelationID, Value: []byte(cID)}},
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
