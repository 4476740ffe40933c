package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"skillchain/internal/platform/kafka/producer"
)

// KafkaStore publishes audit events to a Kafka topic, keyed by identity so
// one learner's trail stays ordered within a partition. Reads are not
// supported; downstream consumers own querying.
type KafkaStore struct {
	producer *producer.Producer
	topic    string
}

func NewKafkaStore(p *producer.Producer, topic string) *KafkaStore {
	return &KafkaStore{producer: p, topic: topic}
}

func (s *KafkaStore) Append(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	return s.producer.Produce(ctx, &producer.Message{
		Topic: s.topic,
		Key:   []byte(event.IdentityID),
		Value: value,
		Headers: map[string]string{
			"action": event.Action,
		},
	})
}

func (s *KafkaStore) ListByIdentity(_ context.Context, _ string) ([]Event, error) {
	return nil, ErrNotFound
}
