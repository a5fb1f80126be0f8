package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bamarler/flaZK/internal/platform/kafka/producer"
	dErrors "github.com/bamarler/flaZK/pkg/domain-errors"
)

// DefaultTopic is the Kafka topic audit events are published to.
const DefaultTopic = "flazk.audit.events"

// KafkaStore publishes audit events to a Kafka topic. Events are fire-and-forget:
// the audit trail must never block or fail the session flow.
type KafkaStore struct {
	producer *producer.Producer
	topic    string
}

// NewKafkaStore constructs a Kafka-backed audit sink.
func NewKafkaStore(p *producer.Producer, topic string) *KafkaStore {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaStore{producer: p, topic: topic}
}

func (s *KafkaStore) Append(_ context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	return s.producer.ProduceAsync(&producer.Message{
		Topic: s.topic,
		Key:   []byte(event.SessionID),
		Value: payload,
		Headers: map[string]string{
			"action": event.Action,
		},
	})
}

// ListBySession is not supported by the Kafka sink; consumers own retrieval.
func (s *KafkaStore) ListBySession(_ context.Context, _ string) ([]Event, error) {
	return nil, dErrors.New(dErrors.CodeInternal, "kafka audit sink does not support listing")
}
