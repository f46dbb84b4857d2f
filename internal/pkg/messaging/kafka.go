package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

var (
	ErrKafkaBrokersRequired = errors.New("messaging: kafka brokers are required")
	ErrKafkaTopicRequired   = errors.New("messaging: kafka topic is required")
	ErrKafkaGroupRequired   = errors.New("messaging: kafka consumer group is required")
)

type KafkaConfig struct {
	Brokers     []string
	ClientID    string
	DialTimeout time.Duration
}

// Kafka publishes through a single writer shared by every topic. Messages are
// hashed on Key so one key always lands on the same partition.
type Kafka struct {
	cfg    KafkaConfig
	writer *kafka.Writer

	mu      sync.Mutex
	readers map[*kafka.Reader]struct{}
	closed  bool
}

func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrKafkaBrokersRequired
	}

	return &Kafka{
		cfg: cfg,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Transport: &kafka.Transport{
				ClientID:    cfg.ClientID,
				DialTimeout: cfg.DialTimeout,
			},
		},
		readers: map[*kafka.Reader]struct{}{},
	}, nil
}

func (k *Kafka) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	readers := k.readers
	k.readers = nil
	k.mu.Unlock()

	var err error
	for r := range readers {
		err = errors.Join(err, r.Close())
	}
	return errors.Join(err, k.writer.Close())
}

func (k *Kafka) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if destination == "" {
		return PublishResult{}, ErrKafkaTopicRequired
	}

	km := kafka.Message{
		Topic: destination,
		Key:   msg.Key,
		Value: msg.Body,
		Time:  time.Now(),
	}
	for _, h := range msg.Headers {
		if h.Key != "" {
			km.Headers = append(km.Headers, kafka.Header{Key: h.Key, Value: h.Value})
		}
	}

	if err := k.writer.WriteMessages(ctx, km); err != nil {
		return PublishResult{}, fmt.Errorf("messaging: kafka publish to %s: %w", destination, err)
	}

	return PublishResult{Topic: destination, Timestamp: km.Time}, nil
}

// Consume reads source as part of the WithGroup consumer group. Offsets are
// committed when a delivery is acked.
func (k *Kafka) Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error {
	co := newConsumeOptions(opts...)
	switch {
	case source == "":
		return ErrKafkaTopicRequired
	case co.group == "":
		return ErrKafkaGroupRequired
	case handler == nil:
		return errors.New("messaging: kafka handler is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:       k.cfg.Brokers,
		GroupID:       co.group,
		Topic:         source,
		MaxBytes:      10e6,
		QueueCapacity: co.maxInFlight,
		Dialer: &kafka.Dialer{
			ClientID:  k.cfg.ClientID,
			Timeout:   k.cfg.DialTimeout,
			DualStack: true,
		},
	})
	if err := k.track(reader); err != nil {
		return errors.Join(err, reader.Close())
	}
	defer k.untrack(reader)

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	fetched := make(chan kafka.Message)
	var wg sync.WaitGroup
	for range co.concurrency {
		wg.Go(func() {
			for m := range fetched {
				msg := &kafkaMessage{reader: reader, msg: m}
				if err := dispatch(ctx, DriverKafka, msg, handler, co.autoAck); err != nil {
					cancel(fmt.Errorf("messaging: kafka commit: %w", err))
					return
				}
			}
		})
	}

	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			close(fetched)
			wg.Wait()
			if cause := context.Cause(ctx); cause != nil {
				return cause
			}
			return fmt.Errorf("messaging: kafka fetch: %w", err)
		}

		select {
		case fetched <- m:
		case <-ctx.Done():
		}
	}
}

func (k *Kafka) track(r *kafka.Reader) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return io.ErrClosedPipe
	}
	k.readers[r] = struct{}{}
	return nil
}

func (k *Kafka) untrack(r *kafka.Reader) {
	k.mu.Lock()
	_, owned := k.readers[r]
	delete(k.readers, r)
	k.mu.Unlock()

	if owned {
		//nolint:errcheck // reader is done
		_ = r.Close()
	}
}

type kafkaMessage struct {
	receipt

	reader *kafka.Reader
	msg    kafka.Message
}

func (m *kafkaMessage) Body() []byte         { return m.msg.Value }
func (m *kafkaMessage) Key() []byte          { return m.msg.Key }
func (m *kafkaMessage) Topic() string        { return m.msg.Topic }
func (m *kafkaMessage) Timestamp() time.Time { return m.msg.Time }

func (m *kafkaMessage) ID() string {
	return m.msg.Topic + "/" + strconv.Itoa(m.msg.Partition) + "/" + strconv.FormatInt(m.msg.Offset, 10)
}

func (m *kafkaMessage) Headers() []Header {
	out := make([]Header, 0, len(m.msg.Headers))
	for _, h := range m.msg.Headers {
		out = append(out, Header{Key: h.Key, Value: h.Value})
	}
	return out
}

func (m *kafkaMessage) Ack(ctx context.Context) error {
	if !m.claim() {
		return nil
	}
	return m.reader.CommitMessages(ctx, m.msg)
}

// nack leaves the offset uncommitted. The group re-reads it after a
// rebalance or restart.
func (m *kafkaMessage) nack(context.Context) error {
	m.claim()
	return nil
}
