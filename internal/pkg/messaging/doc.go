// Package messaging provides a broker-agnostic API for publishing and
// consuming messages.
//
// Business code depends on the Messaging interface; the driver (NATS, NSQ,
// Kafka, Google Pub/Sub or the in-process memory broker) is chosen from configuration.
package messaging
