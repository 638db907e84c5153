package kafka

import (
	"Tracklight/internal/api/config"
	"Tracklight/internal/api/dto"
	"Tracklight/internal/pkg/logger"
	"context"
	"errors"
	log "log/slog"
	"strconv"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
)

// SnapshotProducer 将快照事件同步写入 Kafka，消息 Key 为实体 ID
type SnapshotProducer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewSnapshotProducer 连接 broker 并创建同步生产者
func NewSnapshotProducer(kafkaCfg config.KafkaConfig) (*SnapshotProducer, error) {
	if len(kafkaCfg.Brokers) == 0 || kafkaCfg.SnapshotTopic == "" {
		return nil, errors.New("kafka brokers or snapshot topic not configured")
	}
	producer, err := sarama.NewSyncProducer(kafkaCfg.Brokers, newSaramaConfig(kafkaCfg))
	if err != nil {
		return nil, err
	}
	return newSnapshotProducer(producer, kafkaCfg.SnapshotTopic), nil
}

func newSnapshotProducer(producer sarama.SyncProducer, topic string) *SnapshotProducer {
	return &SnapshotProducer{
		producer: producer,
		topic:    topic,
	}
}

func (p *SnapshotProducer) Publish(ctx context.Context, event *dto.SnapshotEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(event.EntityID, 10)),
		Value: sarama.ByteEncoder(payload),
	}
	if traceID := logger.TraceID(ctx); traceID != "" {
		msg.Headers = []sarama.RecordHeader{{Key: []byte(logger.TraceIDKey), Value: []byte(traceID)}}
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return err
	}
	log.DebugContext(ctx, "snapshot event published",
		"event_id", event.EventID,
		"entity_id", event.EntityID,
		"partition", partition,
		"offset", offset,
	)
	return nil
}

func (p *SnapshotProducer) Close() error {
	return p.producer.Close()
}
