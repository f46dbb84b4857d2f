package messaging

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	nsq "github.com/nsqio/go-nsq"
)

var (
	ErrNSQTopicRequired    = errors.New("messaging: nsq topic is required")
	ErrNSQChannelRequired  = errors.New("messaging: nsq channel is required")
	ErrNSQProducerRequired = errors.New("messaging: nsq producer address is required")
	ErrNSQAddrsRequired    = errors.New("messaging: nsq nsqd or lookupd addresses are required")
)

type NSQConfig struct {
	ProducerAddr         string
	ConsumerNSQDAddrs    []string
	ConsumerLookupdAddrs []string
	ProducerConfig       *nsq.Config
	ConsumerConfig       *nsq.Config
}

// NSQ frames carry no headers, so publishes are wrapped in an envelope that
// Consume unwraps again. See envelope.go.
type NSQ struct {
	cfg      NSQConfig
	producer *nsq.Producer

	mu        sync.Mutex
	consumers []*nsq.Consumer
	closed    bool
}

func NewNSQ(cfg NSQConfig) (*NSQ, error) {
	if cfg.ProducerConfig == nil {
		cfg.ProducerConfig = nsq.NewConfig()
	}
	if cfg.ConsumerConfig == nil {
		cfg.ConsumerConfig = nsq.NewConfig()
	}

	n := &NSQ{cfg: cfg}
	if cfg.ProducerAddr == "" {
		return n, nil
	}

	p, err := nsq.NewProducer(cfg.ProducerAddr, cfg.ProducerConfig)
	if err != nil {
		return nil, fmt.Errorf("messaging: nsq producer: %w", err)
	}
	p.SetLoggerLevel(nsq.LogLevelError)
	n.producer = p

	return n, nil
}

func (n *NSQ) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	consumers := n.consumers
	n.consumers = nil
	n.mu.Unlock()

	for _, c := range consumers {
		c.Stop()
		<-c.StopChan
	}
	if n.producer != nil {
		n.producer.Stop()
	}
	return nil
}

func (n *NSQ) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}
	if destination == "" {
		return PublishResult{}, ErrNSQTopicRequired
	}
	if n.producer == nil {
		return PublishResult{}, ErrNSQProducerRequired
	}

	frame, err := seal(msg)
	if err != nil {
		return PublishResult{}, err
	}
	if err := n.producer.Publish(destination, frame); err != nil {
		return PublishResult{}, fmt.Errorf("messaging: nsq publish to %s: %w", destination, err)
	}

	return PublishResult{Topic: destination, Timestamp: time.Now()}, nil
}

// Consume subscribes WithChannel on source and blocks until ctx is done or the
// consumer stops on its own.
func (n *NSQ) Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error {
	co := newConsumeOptions(opts...)
	switch {
	case source == "":
		return ErrNSQTopicRequired
	case co.channel == "":
		return ErrNSQChannelRequired
	case handler == nil:
		return errors.New("messaging: nsq handler is required")
	case len(n.cfg.ConsumerNSQDAddrs) == 0 && len(n.cfg.ConsumerLookupdAddrs) == 0:
		return ErrNSQAddrsRequired
	}

	ccfg := *n.cfg.ConsumerConfig
	ccfg.MaxInFlight = max(ccfg.MaxInFlight, co.maxInFlight)

	consumer, err := nsq.NewConsumer(source, co.channel, &ccfg)
	if err != nil {
		return fmt.Errorf("messaging: nsq consumer: %w", err)
	}
	consumer.SetLoggerLevel(nsq.LogLevelError)
	consumer.AddConcurrentHandlers(nsq.HandlerFunc(func(m *nsq.Message) error {
		m.DisableAutoResponse()
		msg := openNSQ(source, m)
		if err := dispatch(ctx, DriverNSQ, msg, handler, co.autoAck); err != nil {
			return err
		}
		if !co.autoAck && !msg.settled() {
			// go-nsq needs an answer; an unsettled manual delivery goes back.
			m.Requeue(-1)
		}
		return nil
	}), co.concurrency)

	if err := n.register(consumer); err != nil {
		stopConsumer(consumer)
		return err
	}

	if len(n.cfg.ConsumerLookupdAddrs) > 0 {
		err = consumer.ConnectToNSQLookupds(n.cfg.ConsumerLookupdAddrs)
	} else {
		err = consumer.ConnectToNSQDs(n.cfg.ConsumerNSQDAddrs)
	}
	if err != nil {
		stopConsumer(consumer)
		return fmt.Errorf("messaging: nsq connect: %w", err)
	}

	select {
	case <-ctx.Done():
		stopConsumer(consumer)
		return ctx.Err()
	case <-consumer.StopChan:
		return nil
	}
}

func (n *NSQ) register(c *nsq.Consumer) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return io.ErrClosedPipe
	}
	n.consumers = append(n.consumers, c)
	return nil
}

func stopConsumer(c *nsq.Consumer) {
	c.Stop()
	<-c.StopChan
}

type nsqMessage struct {
	receipt

	topic   string
	body    []byte
	headers []Header
	msg     *nsq.Message
}

func openNSQ(topic string, m *nsq.Message) *nsqMessage {
	body, headers := unseal(m.Body)
	return &nsqMessage{topic: topic, body: body, headers: headers, msg: m}
}

func (m *nsqMessage) Body() []byte         { return m.body }
func (m *nsqMessage) Key() []byte          { return nil }
func (m *nsqMessage) Headers() []Header    { return m.headers }
func (m *nsqMessage) ID() string           { return hex.EncodeToString(m.msg.ID[:]) }
func (m *nsqMessage) Topic() string        { return m.topic }
func (m *nsqMessage) Timestamp() time.Time { return time.Unix(0, m.msg.Timestamp) }

func (m *nsqMessage) Ack(context.Context) error {
	if m.claim() {
		m.msg.Finish()
	}
	return nil
}

// nack requeues with nsqd's default backoff for the attempt count.
func (m *nsqMessage) nack(context.Context) error {
	if m.claim() {
		m.msg.Requeue(-1)
	}
	return nil
}
