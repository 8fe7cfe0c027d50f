package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nsqio/go-nsq"
)

var (
	ErrNSQProducerAddrRequired = errors.New("messaging: nsq producer address is required")
	ErrNSQConsumerAddrRequired = errors.New("messaging: nsq nsqd or lookupd address is required")
	ErrNSQChannelRequired      = errors.New("messaging: nsq channel (consumer group) is required")
)

type NSQConfig struct {
	// ProducerAddr is the nsqd TCP address used for publishing.
	ProducerAddr string
	// LookupdAddrs take precedence over NSQDAddrs for consumers.
	LookupdAddrs []string
	NSQDAddrs    []string
	// Config is copied for every producer and consumer; nil uses defaults.
	Config *nsq.Config
}

// nsqEnvelope wraps the payload because NSQ frames carry only a body.
type nsqEnvelope struct {
	Key     []byte            `json:"k,omitempty"`
	Headers map[string][]byte `json:"h,omitempty"`
	Body    []byte            `json:"b"`
	At      time.Time         `json:"t"`
}

type NSQ struct {
	producer *nsq.Producer
	cfg      NSQConfig

	mu        sync.Mutex
	consumers []*nsq.Consumer
	closed    bool
}

func NewNSQ(cfg NSQConfig) (*NSQ, error) {
	if cfg.ProducerAddr == "" {
		return nil, ErrNSQProducerAddrRequired
	}
	if cfg.Config == nil {
		cfg.Config = nsq.NewConfig()
	}

	p, err := nsq.NewProducer(cfg.ProducerAddr, cfg.Config)
	if err != nil {
		return nil, fmt.Errorf("messaging: nsq producer: %w", err)
	}
	p.SetLoggerLevel(nsq.LogLevelError)

	return &NSQ{producer: p, cfg: cfg}, nil
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
	n.producer.Stop()
	return nil
}

func (n *NSQ) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}
	if destination == "" {
		return PublishResult{}, ErrDestinationRequired
	}

	env := nsqEnvelope{Key: msg.Key, Body: msg.Body, At: time.Now().UTC()}
	if len(msg.Headers) > 0 {
		env.Headers = make(map[string][]byte, len(msg.Headers))
		for _, h := range msg.Headers {
			if h.Key != "" {
				env.Headers[h.Key] = h.Value
			}
		}
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return PublishResult{}, err
	}

	// go-nsq has no context support; Publish blocks until nsqd acknowledges.
	if err := n.producer.Publish(destination, raw); err != nil {
		return PublishResult{}, fmt.Errorf("messaging: nsq publish: %w", err)
	}

	return PublishResult{Topic: destination, Timestamp: env.At}, nil
}

// Consume subscribes to source on the channel named by the consumer group
// and blocks until ctx is done.
func (n *NSQ) Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if source == "" {
		return ErrDestinationRequired
	}
	if handler == nil {
		return ErrHandlerRequired
	}
	if len(n.cfg.LookupdAddrs) == 0 && len(n.cfg.NSQDAddrs) == 0 {
		return ErrNSQConsumerAddrRequired
	}

	co := newConsumeOptions(opts...)
	if co.group == "" {
		return ErrNSQChannelRequired
	}

	ccfg := *n.cfg.Config
	if ccfg.MaxInFlight < co.concurrency {
		ccfg.MaxInFlight = co.concurrency
	}
	consumer, err := nsq.NewConsumer(source, co.group, &ccfg)
	if err != nil {
		return fmt.Errorf("messaging: nsq consumer: %w", err)
	}
	consumer.SetLoggerLevel(nsq.LogLevelError)

	consumer.AddConcurrentHandlers(nsq.HandlerFunc(func(m *nsq.Message) error {
		m.DisableAutoResponse()

		wrapped, err := newNSQMessage(source, m)
		if err != nil {
			// not an envelope; redelivery cannot fix it
			m.Finish()
			return nil
		}
		handle(ctx, DriverNSQ, wrapped, handler, co.autoAck, wrapped.responded)
		return nil
	}), co.concurrency)

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		consumer.Stop()
		return io.ErrClosedPipe
	}
	n.consumers = append(n.consumers, consumer)
	n.mu.Unlock()

	if len(n.cfg.LookupdAddrs) > 0 {
		err = consumer.ConnectToNSQLookupds(n.cfg.LookupdAddrs)
	} else {
		err = consumer.ConnectToNSQDs(n.cfg.NSQDAddrs)
	}
	if err != nil {
		consumer.Stop()
		<-consumer.StopChan
		return fmt.Errorf("messaging: nsq connect: %w", err)
	}

	select {
	case <-ctx.Done():
		consumer.Stop()
		<-consumer.StopChan
		return ctx.Err()
	case <-consumer.StopChan:
		return nil
	}
}

type nsqMessage struct {
	responder
	topic string
	msg   *nsq.Message
	env   nsqEnvelope
}

func newNSQMessage(topic string, m *nsq.Message) (*nsqMessage, error) {
	var env nsqEnvelope
	if err := json.Unmarshal(m.Body, &env); err != nil {
		return nil, err
	}
	return &nsqMessage{topic: topic, msg: m, env: env}, nil
}

func (m *nsqMessage) Body() []byte  { return m.env.Body }
func (m *nsqMessage) Key() []byte   { return m.env.Key }
func (m *nsqMessage) Topic() string { return m.topic }
func (m *nsqMessage) ID() string    { return string(m.msg.ID[:]) }

func (m *nsqMessage) Timestamp() time.Time {
	if !m.env.At.IsZero() {
		return m.env.At
	}
	return time.Unix(0, m.msg.Timestamp)
}

func (m *nsqMessage) Headers() []Header {
	out := make([]Header, 0, len(m.env.Headers))
	for k, v := range m.env.Headers {
		out = append(out, Header{Key: k, Value: v})
	}
	return out
}

func (m *nsqMessage) Ack(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.respond() {
		m.msg.Finish()
	}
	return nil
}

// Nack requeues with the backoff configured on the consumer.
func (m *nsqMessage) Nack(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.respond() {
		m.msg.Requeue(-1)
	}
	return nil
}
