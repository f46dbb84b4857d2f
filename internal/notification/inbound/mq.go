package inbound

import (
	"context"
	"log/slog"
	"slices"

	"github.com/shandysiswandi/phoneauth/internal/pkg/config"
	"github.com/shandysiswandi/phoneauth/internal/pkg/goroutine"
	"github.com/shandysiswandi/phoneauth/internal/pkg/instrument"
	"github.com/shandysiswandi/phoneauth/internal/pkg/messaging"
	"github.com/shandysiswandi/phoneauth/internal/pkg/uid"
	"github.com/shandysiswandi/phoneauth/internal/shared/event"
)

const (
	consumerConcurrency = 10
	consumerMaxInFlight = 10
)

// subscription binds a consumer name to the topic it reads. The name doubles
// as the NSQ channel, NATS queue group, Kafka group and Pub/Sub subscription.
type subscription struct {
	name    string
	topic   string
	handler messaging.Handler
}

func (s subscription) options() []messaging.ConsumeOption {
	return []messaging.ConsumeOption{
		messaging.WithGroup(s.name),
		messaging.WithChannel(s.name),
		messaging.WithQueueGroup(s.name),
		messaging.WithSubscription(s.name),
		messaging.WithAutoAck(true),
		messaging.WithConcurrency(consumerConcurrency),
		messaging.WithMaxInFlight(consumerMaxInFlight),
	}
}

func subscriptions(h *MQHandler) []subscription {
	return []subscription{
		{name: event.PhoneVerifiedConsumerNotification, topic: event.PhoneVerifiedDestination, handler: h.PhoneVerifiedNotification},
	}
}

// RegisterMQConsumer starts the subscriptions named in
// modules.notification.consumer_names and returns how many were scheduled.
func RegisterMQConsumer(
	ctx context.Context,
	cfg config.Config,
	routine *goroutine.Manager,
	messenger messaging.Consumer,
	uuid uid.StringID,
	uc uc,
	ins instrument.Instrumentation,
) int {
	enabled := cfg.GetArray("modules.notification.consumer_names")
	h := &MQHandler{uc: uc, uuid: uuid, ins: ins}

	started := 0
	for _, sub := range subscriptions(h) {
		if !slices.Contains(enabled, sub.name) {
			slog.InfoContext(ctx, "consumer disabled", "consumer", sub.name)
			continue
		}

		ok := routine.Go(ctx, func(ctx context.Context) error {
			slog.InfoContext(ctx, "consumer started", "consumer", sub.name, "topic", sub.topic)
			return messenger.Consume(ctx, sub.topic, sub.handler, sub.options()...)
		})
		if ok {
			started++
		}
	}
	return started
}
