package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/vietddude/stealthwatch/internal/core/domain"
)

// KafkaConfig holds Kafka producer settings.
type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic"`
	ClientID string   `yaml:"client_id"`
}

// Enabled reports whether brokers are configured.
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// Envelope wraps every alert published to Kafka.
type Envelope struct {
	Type string          `json:"type"`
	TS   int64           `json:"ts"`
	Data json.RawMessage `json:"data"`
}

const envelopeType = "correlation_alert"

// KafkaEmitter publishes alerts to a topic, keyed by transaction hash so
// alerts of one transaction land on one partition.
type KafkaEmitter struct {
	topic string
	p     sarama.SyncProducer
	now   func() time.Time
}

// NewKafkaEmitter connects a synchronous producer.
func NewKafkaEmitter(cfg KafkaConfig) (*KafkaEmitter, error) {
	if !cfg.Enabled() {
		return nil, errors.New("no kafka brokers")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic empty")
	}

	sc := sarama.NewConfig()
	if cfg.ClientID != "" {
		sc.ClientID = cfg.ClientID
	}
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 10
	sc.Producer.Retry.Backoff = 200 * time.Millisecond
	// SyncProducer must have Return.Successes=true
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true

	p, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewKafkaEmitterWithProducer(cfg.Topic, p), nil
}

// NewKafkaEmitterWithProducer wraps an existing producer.
func NewKafkaEmitterWithProducer(topic string, p sarama.SyncProducer) *KafkaEmitter {
	return &KafkaEmitter{topic: topic, p: p, now: time.Now}
}

func (e *KafkaEmitter) Name() string { return "kafka" }

func (e *KafkaEmitter) Emit(ctx context.Context, alerts []*domain.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	// SyncProducer does not take a context; only check it before sending.
	if err := ctx.Err(); err != nil {
		return err
	}

	msgs := make([]*sarama.ProducerMessage, 0, len(alerts))
	for _, a := range alerts {
		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("marshal alert %s: %w", a.ID, err)
		}
		b, err := json.Marshal(Envelope{Type: envelopeType, TS: e.now().UnixMilli(), Data: data})
		if err != nil {
			return fmt.Errorf("marshal envelope: %w", err)
		}
		msgs = append(msgs, &sarama.ProducerMessage{
			Topic: e.topic,
			Key:   sarama.StringEncoder(a.TxHash),
			Value: sarama.ByteEncoder(b),
		})
	}

	if err := e.p.SendMessages(msgs); err != nil {
		return fmt.Errorf("kafka emit failed: %w", err)
	}
	return nil
}

func (e *KafkaEmitter) Close() error {
	if e.p != nil {
		return e.p.Close()
	}
	return nil
}
