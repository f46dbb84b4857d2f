package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"google.golang.org/api/option"
)

var (
	ErrPubSubProjectIDRequired    = errors.New("messaging: pubsub project id is required")
	ErrPubSubTopicRequired        = errors.New("messaging: pubsub topic is required")
	ErrPubSubSubscriptionRequired = errors.New("messaging: pubsub subscription is required")
)

type PubSubConfig struct {
	ProjectID string
	Options   []option.ClientOption
}

// PubSub publishes to topics and receives from subscriptions. Publish takes
// a topic id; Consume reads the WithSubscription subscription, falling back
// to the consumer group name. Headers travel as message attributes.
type PubSub struct {
	client *pubsub.Client

	mu         sync.Mutex
	closed     bool
	publishers map[string]*pubsub.Publisher
}

func NewPubSub(ctx context.Context, cfg PubSubConfig) (*PubSub, error) {
	if cfg.ProjectID == "" {
		return nil, ErrPubSubProjectIDRequired
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, cfg.Options...)
	if err != nil {
		return nil, fmt.Errorf("messaging: pubsub client: %w", err)
	}
	return &PubSub{client: client, publishers: make(map[string]*pubsub.Publisher)}, nil
}

// Close flushes and stops every publisher, then closes the client.
func (p *PubSub) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	pubs := p.publishers
	p.publishers = nil
	p.mu.Unlock()

	for _, pub := range pubs {
		pub.Stop()
	}
	return p.client.Close()
}

func (p *PubSub) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if destination == "" {
		return PublishResult{}, ErrPubSubTopicRequired
	}
	pub, err := p.publisher(destination)
	if err != nil {
		return PublishResult{}, err
	}

	id, err := pub.Publish(ctx, &pubsub.Message{
		Data:       msg.Body,
		Attributes: attributes(msg.Headers),
	}).Get(ctx)
	if err != nil {
		return PublishResult{}, fmt.Errorf("messaging: pubsub publish to %s: %w", destination, err)
	}

	return PublishResult{MessageID: id, Topic: destination, Timestamp: time.Now()}, nil
}

// Consume blocks in Receive until ctx is done. WithConcurrency sets the
// receive goroutines and WithMaxInFlight the outstanding message limit.
func (p *PubSub) Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error {
	co := newConsumeOptions(opts...)
	name := co.pubsubSubscription()
	switch {
	case name == "":
		return ErrPubSubSubscriptionRequired
	case handler == nil:
		return errors.New("messaging: pubsub handler is required")
	}
	if err := p.ensureOpen(); err != nil {
		return err
	}

	sub := p.client.Subscriber(name)
	sub.ReceiveSettings.NumGoroutines = co.concurrency
	sub.ReceiveSettings.MaxOutstandingMessages = co.maxInFlight

	err := sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		//nolint:errcheck // pubsub settles asynchronously
		_ = dispatch(ctx, DriverGooglePubSub, newPubSubMessage(source, m), handler, co.autoAck)
	})
	if err != nil {
		return fmt.Errorf("messaging: pubsub receive from %s: %w", name, err)
	}
	return ctx.Err()
}

func (p *PubSub) publisher(topic string) (*pubsub.Publisher, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, io.ErrClosedPipe
	}
	if pub, ok := p.publishers[topic]; ok {
		return pub, nil
	}
	pub := p.client.Publisher(topic)
	p.publishers[topic] = pub
	return pub, nil
}

func (p *PubSub) ensureOpen() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return io.ErrClosedPipe
	}
	return nil
}

// attributes keeps the first value of each named header.
func attributes(headers []Header) map[string]string {
	var out map[string]string
	for _, h := range headers {
		if h.Key == "" {
			continue
		}
		if out == nil {
			out = make(map[string]string, len(headers))
		}
		if _, dup := out[h.Key]; !dup {
			out[h.Key] = string(h.Value)
		}
	}
	return out
}

type pubsubMessage struct {
	receipt

	topic     string
	data      []byte
	attrs     map[string]string
	id        string
	published time.Time
	ack       func()
	nackFn    func()
}

func newPubSubMessage(topic string, m *pubsub.Message) *pubsubMessage {
	return &pubsubMessage{
		topic:     topic,
		data:      m.Data,
		attrs:     m.Attributes,
		id:        m.ID,
		published: m.PublishTime,
		ack:       m.Ack,
		nackFn:    m.Nack,
	}
}

func (m *pubsubMessage) Body() []byte         { return m.data }
func (m *pubsubMessage) Key() []byte          { return nil }
func (m *pubsubMessage) ID() string           { return m.id }
func (m *pubsubMessage) Topic() string        { return m.topic }
func (m *pubsubMessage) Timestamp() time.Time { return m.published }

// Headers lists the attributes sorted by key.
func (m *pubsubMessage) Headers() []Header {
	keys := make([]string, 0, len(m.attrs))
	for k := range m.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Header, 0, len(keys))
	for _, k := range keys {
		out = append(out, Header{Key: k, Value: []byte(m.attrs[k])})
	}
	return out
}

func (m *pubsubMessage) Ack(context.Context) error {
	if m.claim() {
		m.ack()
	}
	return nil
}

func (m *pubsubMessage) nack(context.Context) error {
	if m.claim() {
		m.nackFn()
	}
	return nil
}
