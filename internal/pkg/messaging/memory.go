package messaging

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"time"

	"go.uber.org/atomic"
)

var (
	// ErrMemoryDestinationRequired is returned when the destination or source is empty.
	ErrMemoryDestinationRequired = errors.New("messaging: memory destination is required")
	// ErrMemoryHandlerRequired is returned when Consume is called with a nil handler.
	ErrMemoryHandlerRequired = errors.New("messaging: memory handler is required")
)

// MemoryConfig configures the in-process broker.
type MemoryConfig struct {
	// Buffer is the per consumer-group queue size. Defaults to 64.
	Buffer int
	// MaxAttempts bounds redeliveries of a nacked message. Defaults to 3.
	MaxAttempts int
}

// Memory is an in-process broker. Every consumer group on a destination gets
// its own copy of each message; consumers sharing a group split the load.
// Messages published to a destination without consumers are dropped.
type Memory struct {
	buffer      int
	maxAttempts int
	seq         atomic.Uint64

	mu     sync.Mutex
	queues map[string]map[string]chan *memoryMessage
	closed bool
}

// NewMemory constructs an in-process broker.
func NewMemory(cfg MemoryConfig) *Memory {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 64
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}

	return &Memory{
		buffer:      cfg.Buffer,
		maxAttempts: cfg.MaxAttempts,
		queues:      map[string]map[string]chan *memoryMessage{},
	}
}

// Close stops accepting publishes and new consumers.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	return nil
}

// Publish enqueues msg for every consumer group of destination.
func (m *Memory) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}
	if destination == "" {
		return PublishResult{}, ErrMemoryDestinationRequired
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return PublishResult{}, io.ErrClosedPipe
	}
	targets := make([]chan *memoryMessage, 0, len(m.queues[destination]))
	for _, q := range m.queues[destination] {
		targets = append(targets, q)
	}
	m.mu.Unlock()

	now := time.Now()
	id := strconv.FormatUint(m.seq.Inc(), 10)
	for _, q := range targets {
		mm := &memoryMessage{
			id:        id,
			topic:     destination,
			body:      append([]byte(nil), msg.Body...),
			key:       append([]byte(nil), msg.Key...),
			headers:   append([]Header(nil), msg.Headers...),
			timestamp: now,
		}
		select {
		case q <- mm:
		case <-ctx.Done():
			return PublishResult{}, ctx.Err()
		}
	}

	return PublishResult{
		MessageID: id,
		Topic:     destination,
		Timestamp: now,
	}, nil
}

// Consume delivers messages of source to handler until ctx is done. The
// consumer group is whichever grouping option is set.
func (m *Memory) Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if source == "" {
		return ErrMemoryDestinationRequired
	}
	if handler == nil {
		return ErrMemoryHandlerRequired
	}

	co := newConsumeOptions(opts...)
	q, err := m.queue(source, co.anyGroup())
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for range co.concurrency {
		wg.Go(func() {
			for {
				select {
				case <-ctx.Done():
					return
				case msg := <-q:
					m.deliver(ctx, q, msg, handler, co.autoAck)
				}
			}
		})
	}
	wg.Wait()

	return ctx.Err()
}

func (m *Memory) deliver(ctx context.Context, q chan *memoryMessage, msg *memoryMessage, handler Handler, autoAck bool) {
	msg.attempts++
	//nolint:errcheck // memory settles cannot fail
	_ = dispatch(ctx, DriverMemory, msg, handler, autoAck)

	if !msg.requeue.Load() || msg.attempts >= m.maxAttempts {
		return
	}

	select {
	case q <- msg.redeliver():
	case <-ctx.Done():
	}
}

func (m *Memory) queue(source, group string) (chan *memoryMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, io.ErrClosedPipe
	}

	groups, ok := m.queues[source]
	if !ok {
		groups = map[string]chan *memoryMessage{}
		m.queues[source] = groups
	}

	q, ok := groups[group]
	if !ok {
		q = make(chan *memoryMessage, m.buffer)
		groups[group] = q
	}

	return q, nil
}

type memoryMessage struct {
	receipt

	id        string
	topic     string
	body      []byte
	key       []byte
	headers   []Header
	timestamp time.Time
	attempts  int
	requeue   atomic.Bool
}

func (m *memoryMessage) redeliver() *memoryMessage {
	return &memoryMessage{
		id:        m.id,
		topic:     m.topic,
		body:      m.body,
		key:       m.key,
		headers:   m.headers,
		timestamp: m.timestamp,
		attempts:  m.attempts,
	}
}

func (m *memoryMessage) Body() []byte         { return m.body }
func (m *memoryMessage) Key() []byte          { return m.key }
func (m *memoryMessage) Headers() []Header    { return m.headers }
func (m *memoryMessage) ID() string           { return m.id }
func (m *memoryMessage) Topic() string        { return m.topic }
func (m *memoryMessage) Timestamp() time.Time { return m.timestamp }

func (m *memoryMessage) Ack(context.Context) error {
	m.claim()
	return nil
}

func (m *memoryMessage) nack(context.Context) error {
	if m.claim() {
		m.requeue.Store(true)
	}
	return nil
}
