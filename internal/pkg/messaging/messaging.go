package messaging

import (
	"context"
	"io"
	"time"
)

// Messaging publishes and consumes through one broker connection.
type Messaging interface {
	io.Closer
	Publisher
	Consumer
}

type Publisher interface {
	Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error)
}

// Consumer blocks in Consume until ctx is done or the subscription fails.
type Consumer interface {
	Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error
}

// Handler processes one delivery. With WithAutoAck a nil error acks the
// message and a non-nil error hands it back to the broker for redelivery.
type Handler func(ctx context.Context, msg Message) error

// OutgoingMessage is what callers hand to Publish. Key picks the Kafka
// partition and is ignored by the other drivers.
type OutgoingMessage struct {
	Body    []byte
	Key     []byte
	Headers []Header
}

type Header struct {
	Key   string
	Value []byte
}

// PublishResult reports where the broker put the message. Fields a driver
// cannot observe stay zero.
type PublishResult struct {
	MessageID string
	Topic     string
	Timestamp time.Time
}

// Message is a received delivery.
type Message interface {
	Body() []byte
	Key() []byte
	Headers() []Header
	ID() string
	Topic() string
	Timestamp() time.Time

	// Ack settles the message. Calling it more than once is a no-op.
	Ack(ctx context.Context) error
}

// HeaderValue returns the first header named key, or "".
func HeaderValue(msg Message, key string) string {
	for _, h := range msg.Headers() {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
