//go:build integration

package audit_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"skillchain/internal/audit"
	"skillchain/internal/platform/kafka/producer"
	"skillchain/pkg/testutil/containers"
)

type KafkaStoreIntegrationSuite struct {
	suite.Suite
	kafka    *containers.KafkaContainer
	producer *producer.Producer
}

func TestKafkaStoreIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaStoreIntegrationSuite))
}

func (s *KafkaStoreIntegrationSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.kafka = mgr.GetKafka(s.T())

	prod, err := producer.New(producer.Config{
		Brokers:         s.kafka.Brokers,
		Retries:         3,
		DeliveryTimeout: 10 * time.Second,
	}, nil)
	s.Require().NoError(err)
	s.producer = prod
}

func (s *KafkaStoreIntegrationSuite) TearDownSuite() {
	if s.producer != nil {
		s.producer.Close()
	}
}

// TestAppendDeliversKeyedEvent verifies the full publish path: the event is
// keyed by identity, carries the action header, and round-trips as JSON.
func (s *KafkaStoreIntegrationSuite) TestAppendDeliversKeyedEvent() {
	ctx := context.Background()
	topic := "audit-events-append"

	err := s.kafka.CreateTopic(ctx, topic, 1, 1)
	s.Require().NoError(err)

	store := audit.NewKafkaStore(s.producer, topic)
	event := audit.Event{
		Timestamp:    time.Now().UTC().Truncate(time.Second),
		IdentityID:   "learner-1",
		CourseID:     "course-1",
		Action:       string(audit.EventIssuanceCompleted),
		TxRef:        "0xabc",
		CredentialID: 7,
	}
	s.Require().NoError(store.Append(ctx, event))

	consumer, err := s.kafka.NewConsumer(ctx, "audit-append-consumer", topic)
	s.Require().NoError(err)
	defer consumer.Close()

	record := s.kafka.WaitForMessage(ctx, consumer, 5*time.Second, func(r *kgo.Record) bool {
		return string(r.Key) == "learner-1"
	})
	s.Require().NotNil(record, "audit event should be consumable")

	headers := make(map[string]string)
	for _, h := range record.Headers {
		headers[h.Key] = string(h.Value)
	}
	s.Equal(string(audit.EventIssuanceCompleted), headers["action"])

	var got audit.Event
	s.Require().NoError(json.Unmarshal(record.Value, &got))
	s.Equal(event.IdentityID, got.IdentityID)
	s.Equal(event.CourseID, got.CourseID)
	s.Equal(event.Action, got.Action)
	s.Equal(event.TxRef, got.TxRef)
	s.Equal(event.CredentialID, got.CredentialID)
}

// TestAppendKeepsIdentityOrdering verifies that one learner's events land on
// the same partition in append order.
func (s *KafkaStoreIntegrationSuite) TestAppendKeepsIdentityOrdering() {
	ctx := context.Background()
	topic := "audit-events-ordering"

	err := s.kafka.CreateTopic(ctx, topic, 3, 1)
	s.Require().NoError(err)

	store := audit.NewKafkaStore(s.producer, topic)
	actions := []audit.AuditEvent{
		audit.EventIssuanceRequested,
		audit.EventIssuanceCompleted,
		audit.EventVerification,
	}
	for _, action := range actions {
		s.Require().NoError(store.Append(ctx, audit.Event{
			IdentityID: "learner-2",
			CourseID:   "course-1",
			Action:     string(action),
		}))
	}

	consumer, err := s.kafka.NewConsumer(ctx, "audit-ordering-consumer", topic)
	s.Require().NoError(err)
	defer consumer.Close()

	pollCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var gotActions []string
	var partitions []int32
	for len(gotActions) < len(actions) && pollCtx.Err() == nil {
		fetches := consumer.PollFetches(pollCtx)
		if fetches.IsClientClosed() {
			break
		}
		fetches.EachRecord(func(r *kgo.Record) {
			if string(r.Key) != "learner-2" {
				return
			}
			var got audit.Event
			s.Require().NoError(json.Unmarshal(r.Value, &got))
			gotActions = append(gotActions, got.Action)
			partitions = append(partitions, r.Partition)
		})
	}

	s.Require().Len(gotActions, len(actions))
	for i, action := range actions {
		s.Equal(string(action), gotActions[i])
	}
	for _, p := range partitions {
		s.Equal(partitions[0], p, "keyed events must share a partition")
	}
}
