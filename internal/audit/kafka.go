package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// KafkaEmitter produces audit events to a Kafka topic, keyed by actor
// subject so one actor's events stay ordered within a partition.
type KafkaEmitter struct {
	writer *kafka.Writer
	logger zerolog.Logger
}

// NewKafkaEmitter creates a Kafka-backed audit emitter.
func NewKafkaEmitter(brokers []string, topic, clientID string, logger zerolog.Logger) *KafkaEmitter {
	transport := &kafka.Transport{ClientID: clientID}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Transport:    transport,
	}
	return &KafkaEmitter{
		writer: writer,
		logger: logger.With().Str("component", "audit_kafka").Logger(),
	}
}

// Emit marshals the event as JSON and produces it to the audit topic.
func (e *KafkaEmitter) Emit(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("audit: marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(event.ActorSubject),
		Value: payload,
		Time:  event.CreatedAt,
	}
	if err := e.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("audit: produce event: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying Kafka writer.
func (e *KafkaEmitter) Close() error {
	return e.writer.Close()
}
