package messaging

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const memoryBuffer = 64

// Memory is an in-process broker for local development and tests.
//
// Each consumer group of a topic owns one buffered queue; members of a group
// share it and every group receives every message. Messages published to a
// topic without consumers are dropped, like core NATS.
type Memory struct {
	mu     sync.RWMutex
	topics map[string]map[string]chan *memoryMessage
	closed bool
	done   chan struct{}
	seq    atomic.Int64
}

// NewMemory returns an empty in-process broker.
func NewMemory() *Memory {
	return &Memory{
		topics: make(map[string]map[string]chan *memoryMessage),
		done:   make(chan struct{}),
	}
}

// Close stops all consumers.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

// Publish enqueues the message for every consumer group of destination.
func (m *Memory) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}
	if destination == "" {
		return PublishResult{}, ErrDestinationRequired
	}

	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return PublishResult{}, io.ErrClosedPipe
	}
	queues := make([]chan *memoryMessage, 0, len(m.topics[destination]))
	for _, q := range m.topics[destination] {
		queues = append(queues, q)
	}
	m.mu.RUnlock()

	offset := m.seq.Add(1)
	now := time.Now()

	for _, q := range queues {
		mm := &memoryMessage{
			topic:   destination,
			offset:  offset,
			body:    append([]byte(nil), msg.Body...),
			key:     append([]byte(nil), msg.Key...),
			headers: append([]Header(nil), msg.Headers...),
			at:      now,
		}

		select {
		case q <- mm:
		case <-ctx.Done():
			return PublishResult{}, ctx.Err()
		case <-m.done:
			return PublishResult{}, io.ErrClosedPipe
		}
	}

	return PublishResult{Topic: destination, Offset: offset, Timestamp: now}, nil
}

// Consume joins the consumer group of source and blocks until ctx is done
// or the broker is closed.
func (m *Memory) Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if source == "" {
		return ErrDestinationRequired
	}
	if handler == nil {
		return ErrHandlerRequired
	}

	co := newConsumeOptions(opts...)
	q, err := m.queue(source, co.group)
	if err != nil {
		return err
	}

	work := make(chan *memoryMessage)
	wg := runWorkers(co.concurrency, work, func(mm *memoryMessage) {
		handle(ctx, DriverMemory, mm, handler, co.autoAck, mm.responded)
	})

	var exitErr error
loop:
	for {
		select {
		case mm := <-q:
			work <- mm
		case <-ctx.Done():
			exitErr = ctx.Err()
			break loop
		case <-m.done:
			break loop
		}
	}

	close(work)
	wg.Wait()
	return exitErr
}

func (m *Memory) queue(topic, group string) (chan *memoryMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, io.ErrClosedPipe
	}

	groups, ok := m.topics[topic]
	if !ok {
		groups = make(map[string]chan *memoryMessage)
		m.topics[topic] = groups
	}

	q, ok := groups[group]
	if !ok {
		q = make(chan *memoryMessage, memoryBuffer)
		groups[group] = q
	}

	return q, nil
}

type memoryMessage struct {
	responder
	topic   string
	offset  int64
	body    []byte
	key     []byte
	headers []Header
	at      time.Time
}

func (m *memoryMessage) Body() []byte         { return m.body }
func (m *memoryMessage) Key() []byte          { return m.key }
func (m *memoryMessage) Headers() []Header    { return m.headers }
func (m *memoryMessage) Topic() string        { return m.topic }
func (m *memoryMessage) Timestamp() time.Time { return m.at }

func (m *memoryMessage) ID() string {
	return fmt.Sprintf("%s/%s", m.topic, strconv.FormatInt(m.offset, 10))
}

func (m *memoryMessage) Ack(context.Context) error {
	m.respond()
	return nil
}

func (m *memoryMessage) Nack(context.Context) error {
	m.respond()
	return nil
}
