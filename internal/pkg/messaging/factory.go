package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	DriverNSQ          = "nsq"
	DriverNATS         = "nats"
	DriverKafka        = "kafka"
	DriverGooglePubSub = "google-pubsub"
	DriverMemory       = "memory"
)

var ErrUnknownDriver = errors.New("messaging: unknown driver")

// FactoryOptions holds settings for every driver; only the selected one is read.
type FactoryOptions struct {
	NSQ    NSQConfig
	Kafka  KafkaConfig
	NATS   NATSConfig
	PubSub PubSubConfig
	Memory MemoryConfig
}

// NewFromDriver picks the broker by name, ignoring case and surrounding space.
// ctx bounds client setup for drivers that dial on creation.
func NewFromDriver(ctx context.Context, driver string, opts FactoryOptions) (Messaging, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverNSQ:
		return NewNSQ(opts.NSQ)
	case DriverKafka:
		return NewKafka(opts.Kafka)
	case DriverNATS:
		return NewNATS(opts.NATS)
	case DriverGooglePubSub:
		return NewPubSub(ctx, opts.PubSub)
	case DriverMemory:
		return NewMemory(opts.Memory), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}
