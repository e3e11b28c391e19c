package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"mailguard/internal/logqueue/models"
)

// Producer is the franz-go surface the sink needs; *kgo.Client satisfies it.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaSink publishes each log as a JSON record keyed by tenant, so one
// tenant's logs stay ordered within a partition. Consumers dedupe on the id
// header.
type KafkaSink struct {
	producer Producer
	topic    string
}

// NewKafkaSink creates a sink. An empty topic uses the client's default topic.
func NewKafkaSink(producer Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) WriteBatch(ctx context.Context, logs []models.ValidationLog) error {
	if len(logs) == 0 {
		return nil
	}
	records := make([]*kgo.Record, 0, len(logs))
	for _, l := range logs {
		value, err := json.Marshal(l)
		if err != nil {
			return fmt.Errorf("marshal validation log: %w", err)
		}
		records = append(records, &kgo.Record{
			Topic: s.topic,
			Key:   []byte(l.TenantID.String()),
			Value: value,
			Headers: []kgo.RecordHeader{
				{Key: "log_id", Value: []byte(l.ID.String())},
			},
			Timestamp: l.CreatedAt,
		})
	}
	if err := s.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce validation logs: %w", err)
	}
	return nil
}
