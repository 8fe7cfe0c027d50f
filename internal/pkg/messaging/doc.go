// Package messaging provides a broker-agnostic API for publishing and
// consuming messages.
//
// Business code depends on Publisher and Consumer only. The concrete broker
// (Kafka, NATS, NSQ, Google Pub/Sub or the in-process memory driver) is
// picked from configuration by NewFromDriver.
package messaging
