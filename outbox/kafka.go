package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaPublisher forwards outbox messages to a single Kafka topic. Records
// are keyed by agreement id so events for one agreement stay ordered.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

func NewKafkaPublisher(brokers, topic string) (*KafkaPublisher, error) {
	if strings.TrimSpace(brokers) == "" {
		return nil, fmt.Errorf("outbox: kafka brokers not configured")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(strings.Split(brokers, ",")...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(5*time.Millisecond),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("outbox: create kafka client: %w", err)
	}
	return &KafkaPublisher{client: client, topic: topic}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, msg Message) error {
	res := p.client.ProduceSync(ctx, Record(p.topic, msg))
	if err := res.FirstErr(); err != nil {
		return fmt.Errorf("outbox: produce: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}

// Record builds the Kafka record for msg.
func Record(topic string, msg Message) *kgo.Record {
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(recordKey(msg)),
		Value: msg.Payload,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(msg.Topic)},
			{Key: "outbox_id", Value: []byte(msg.ID)},
		},
	}
}

func recordKey(msg Message) string {
	var body struct {
		AgreementID string `json:"agreement_id"`
	}
	if err := json.Unmarshal(msg.Payload, &body); err == nil && body.AgreementID != "" {
		return body.AgreementID
	}
	return msg.ID
}
