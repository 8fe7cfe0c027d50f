package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"google.golang.org/api/option"
)

var ErrPubSubProjectRequired = errors.New("messaging: pubsub project id is required")

type PubSubConfig struct {
	ProjectID string
	// Options are passed to pubsub.NewClient. The emulator is picked up from
	// PUBSUB_EMULATOR_HOST without extra options.
	Options []option.ClientOption
}

// PubSub publishes to topics and consumes from subscriptions. The consumer
// group names the subscription; without one the source itself is used.
// Headers travel as attributes and the key as the ordering key.
type PubSub struct {
	client *pubsub.Client

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
	closed     bool
}

func NewPubSub(ctx context.Context, cfg PubSubConfig) (*PubSub, error) {
	if cfg.ProjectID == "" {
		return nil, ErrPubSubProjectRequired
	}

	c, err := pubsub.NewClient(ctx, cfg.ProjectID, cfg.Options...)
	if err != nil {
		return nil, fmt.Errorf("messaging: pubsub client: %w", err)
	}

	return &PubSub{client: c, publishers: make(map[string]*pubsub.Publisher)}, nil
}

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
	pub.EnableMessageOrdering = true
	p.publishers[topic] = pub
	return pub, nil
}

func (p *PubSub) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}
	if destination == "" {
		return PublishResult{}, ErrDestinationRequired
	}

	pub, err := p.publisher(destination)
	if err != nil {
		return PublishResult{}, err
	}

	pm := &pubsub.Message{Data: msg.Body, OrderingKey: string(msg.Key)}
	if len(msg.Headers) > 0 {
		pm.Attributes = make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			if h.Key != "" {
				pm.Attributes[h.Key] = string(h.Value)
			}
		}
	}

	if _, err := pub.Publish(ctx, pm).Get(ctx); err != nil {
		if pm.OrderingKey != "" {
			// a failed ordered publish pauses the key until resumed
			pub.ResumePublish(pm.OrderingKey)
		}
		return PublishResult{}, fmt.Errorf("messaging: pubsub publish: %w", err)
	}

	return PublishResult{Topic: destination, Timestamp: time.Now()}, nil
}

// Consume blocks in Receive until ctx is done or the subscription fails.
func (p *PubSub) Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if source == "" {
		return ErrDestinationRequired
	}
	if handler == nil {
		return ErrHandlerRequired
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return io.ErrClosedPipe
	}

	co := newConsumeOptions(opts...)
	name := co.group
	if name == "" {
		name = source
	}

	sub := p.client.Subscriber(name)
	sub.ReceiveSettings.NumGoroutines = co.concurrency
	sub.ReceiveSettings.MaxOutstandingMessages = co.concurrency * 10

	err := sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		wrapped := &pubSubMessage{topic: source, msg: m}
		handle(ctx, DriverPubSub, wrapped, handler, co.autoAck, wrapped.responded)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("messaging: pubsub receive: %w", err)
	}
	return ctx.Err()
}

type pubSubMessage struct {
	responder
	topic string
	msg   *pubsub.Message
}

func (m *pubSubMessage) Body() []byte         { return m.msg.Data }
func (m *pubSubMessage) Key() []byte          { return []byte(m.msg.OrderingKey) }
func (m *pubSubMessage) Topic() string        { return m.topic }
func (m *pubSubMessage) ID() string           { return m.msg.ID }
func (m *pubSubMessage) Timestamp() time.Time { return m.msg.PublishTime }

func (m *pubSubMessage) Headers() []Header {
	out := make([]Header, 0, len(m.msg.Attributes))
	for k, v := range m.msg.Attributes {
		out = append(out, Header{Key: k, Value: []byte(v)})
	}
	return out
}

func (m *pubSubMessage) Ack(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.respond() {
		m.msg.Ack()
	}
	return nil
}

func (m *pubSubMessage) Nack(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.respond() {
		m.msg.Nack()
	}
	return nil
}
