package messaging

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

const (
	DriverMemory = "memory"
	DriverNATS   = "nats"
	DriverKafka  = "kafka"
	DriverNSQ    = "nsq"
	DriverPubSub = "pubsub"
)

var ErrUnknownDriver = errors.New("messaging: unknown driver")

// FactoryOptions carries the settings of every backend; only the one matching
// the driver is read.
type FactoryOptions struct {
	Kafka  KafkaConfig
	NATS   NATSConfig
	NSQ    NSQConfig
	PubSub PubSubConfig
}

type builder func(context.Context, FactoryOptions) (Messaging, error)

var drivers = map[string]builder{
	DriverMemory: func(context.Context, FactoryOptions) (Messaging, error) { return NewMemory(), nil },
	DriverKafka:  func(_ context.Context, o FactoryOptions) (Messaging, error) { return NewKafka(o.Kafka) },
	DriverNATS:   func(_ context.Context, o FactoryOptions) (Messaging, error) { return NewNATS(o.NATS) },
	DriverNSQ:    func(_ context.Context, o FactoryOptions) (Messaging, error) { return NewNSQ(o.NSQ) },
	DriverPubSub: func(ctx context.Context, o FactoryOptions) (Messaging, error) { return NewPubSub(ctx, o.PubSub) },
}

// NewFromDriver builds the backend named by driver. An empty name selects
// the in-process broker.
func NewFromDriver(ctx context.Context, driver string, opts FactoryOptions) (Messaging, error) {
	name := strings.ToLower(strings.TrimSpace(driver))
	if name == "" {
		name = DriverMemory
	}

	build, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownDriver, driver,
			strings.Join(slices.Sorted(maps.Keys(drivers)), ", "))
	}

	return build(ctx, opts)
}
