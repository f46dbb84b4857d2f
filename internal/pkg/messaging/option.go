package messaging

// Each broker names its competing-consumer grouping differently. Callers set
// the one their driver reads; the memory broker accepts any of them.
type consumeOptions struct {
	group       string // kafka consumer group
	channel     string // nsq channel
	queueGroup  string // nats queue group
	sub         string // pubsub subscription
	concurrency int
	maxInFlight int
	autoAck     bool
}

type ConsumeOption func(*consumeOptions)

func newConsumeOptions(opts ...ConsumeOption) consumeOptions {
	co := consumeOptions{concurrency: 1}
	for _, opt := range opts {
		if opt != nil {
			opt(&co)
		}
	}
	if co.concurrency < 1 {
		co.concurrency = 1
	}
	if co.maxInFlight < co.concurrency {
		co.maxInFlight = co.concurrency
	}
	return co
}

func WithGroup(group string) ConsumeOption {
	return func(o *consumeOptions) { o.group = group }
}

func WithChannel(channel string) ConsumeOption {
	return func(o *consumeOptions) { o.channel = channel }
}

func WithQueueGroup(queueGroup string) ConsumeOption {
	return func(o *consumeOptions) { o.queueGroup = queueGroup }
}

// WithSubscription names the Pub/Sub subscription Consume reads. Pub/Sub
// subscriptions are created out of band, each bound to one topic.
func WithSubscription(name string) ConsumeOption {
	return func(o *consumeOptions) { o.sub = name }
}

// WithConcurrency sets how many handlers run at once for one Consume call.
func WithConcurrency(n int) ConsumeOption {
	return func(o *consumeOptions) { o.concurrency = n }
}

// WithMaxInFlight bounds unsettled deliveries. It never drops below the
// concurrency.
func WithMaxInFlight(n int) ConsumeOption {
	return func(o *consumeOptions) { o.maxInFlight = n }
}

// WithAutoAck settles each delivery from the handler's return value unless
// the handler already acked it.
func WithAutoAck(autoAck bool) ConsumeOption {
	return func(o *consumeOptions) { o.autoAck = autoAck }
}

// anyGroup returns the first grouping set, checked kafka, nats, nsq.
func (o consumeOptions) anyGroup() string {
	switch {
	case o.group != "":
		return o.group
	case o.queueGroup != "":
		return o.queueGroup
	default:
		return o.channel
	}
}

// pubsubSubscription prefers WithSubscription over the group names.
func (o consumeOptions) pubsubSubscription() string {
	if o.sub != "" {
		return o.sub
	}
	return o.anyGroup()
}
