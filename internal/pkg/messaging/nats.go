package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

var (
	ErrNATSURLRequired     = errors.New("messaging: nats url is required")
	ErrNATSSubjectRequired = errors.New("messaging: nats subject is required")
)

type NATSConfig struct {
	URL     string
	Options []nats.Option
}

// NATS uses core NATS subjects. Delivery is at most once, so settling a
// message has no effect on the server.
type NATS struct {
	conn *nats.Conn

	mu     sync.Mutex
	subs   []*nats.Subscription
	closed bool
}

func NewNATS(cfg NATSConfig) (*NATS, error) {
	if cfg.URL == "" {
		return nil, ErrNATSURLRequired
	}

	conn, err := nats.Connect(cfg.URL, cfg.Options...)
	if err != nil {
		return nil, fmt.Errorf("messaging: nats connect: %w", err)
	}
	return &NATS{conn: conn}, nil
}

// Close drains every subscription, then the connection.
func (n *NATS) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	subs := n.subs
	n.subs = nil
	n.mu.Unlock()

	var err error
	for _, sub := range subs {
		err = errors.Join(err, sub.Drain())
	}
	err = errors.Join(err, n.conn.Drain())
	n.conn.Close()
	return err
}

func (n *NATS) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if destination == "" {
		return PublishResult{}, ErrNATSSubjectRequired
	}

	nm := nats.NewMsg(destination)
	nm.Data = msg.Body
	for _, h := range msg.Headers {
		if h.Key != "" {
			nm.Header.Add(h.Key, string(h.Value))
		}
	}

	if err := n.conn.PublishMsg(nm); err != nil {
		return PublishResult{}, fmt.Errorf("messaging: nats publish to %s: %w", destination, err)
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return PublishResult{}, fmt.Errorf("messaging: nats flush: %w", err)
	}

	return PublishResult{Topic: destination, Timestamp: time.Now()}, nil
}

// Consume joins the WithQueueGroup queue on source. An empty queue group
// subscribes every consumer to every message.
func (n *NATS) Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error {
	co := newConsumeOptions(opts...)
	switch {
	case source == "":
		return ErrNATSSubjectRequired
	case handler == nil:
		return errors.New("messaging: nats handler is required")
	}

	inbox := make(chan *nats.Msg, co.maxInFlight)
	sub, err := n.conn.ChanQueueSubscribe(source, co.queueGroup, inbox)
	if err != nil {
		return fmt.Errorf("messaging: nats subscribe: %w", err)
	}
	if err := n.register(sub); err != nil {
		return errors.Join(err, sub.Unsubscribe())
	}

	var wg sync.WaitGroup
	for range co.concurrency {
		wg.Go(func() {
			for {
				select {
				case <-ctx.Done():
					return
				case m := <-inbox:
					msg := &natsMessage{msg: m, received: time.Now()}
					//nolint:errcheck // core nats settles locally
					_ = dispatch(ctx, DriverNATS, msg, handler, co.autoAck)
				}
			}
		})
	}

	<-ctx.Done()
	err = sub.Unsubscribe()
	wg.Wait()
	if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
		err = nil
	}
	return errors.Join(ctx.Err(), err)
}

func (n *NATS) register(sub *nats.Subscription) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return io.ErrClosedPipe
	}
	n.subs = append(n.subs, sub)
	return nil
}

type natsMessage struct {
	receipt

	msg      *nats.Msg
	received time.Time
}

func (m *natsMessage) Body() []byte         { return m.msg.Data }
func (m *natsMessage) Key() []byte          { return nil }
func (m *natsMessage) ID() string           { return m.msg.Header.Get(nats.MsgIdHdr) }
func (m *natsMessage) Topic() string        { return m.msg.Subject }
func (m *natsMessage) Timestamp() time.Time { return m.received }

func (m *natsMessage) Headers() []Header {
	var out []Header
	for k, values := range m.msg.Header {
		for _, v := range values {
			out = append(out, Header{Key: k, Value: []byte(v)})
		}
	}
	return out
}

func (m *natsMessage) Ack(context.Context) error {
	m.claim()
	return nil
}

func (m *natsMessage) nack(context.Context) error {
	m.claim()
	return nil
}
