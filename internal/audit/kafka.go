package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer is the part of *kgo.Client the Kafka sink uses.
type Producer interface {
	Produce(ctx context.Context, record *kgo.Record, fn func(*kgo.Record, error))
	Flush(ctx context.Context) error
	Close()
}

type KafkaConfig struct {
	Logger  *slog.Logger
	Brokers []string
	Topic   string
}

func (cfg *KafkaConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if len(cfg.Brokers) == 0 {
		return errors.New("brokers are required")
	}
	if cfg.Topic == "" {
		cfg.Topic = "rsmcp.audit"
	}
	return nil
}

func NewKafkaClient(cfg *KafkaConfig) (*kgo.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate kafka config: %w", err)
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(100*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return client, nil
}

// KafkaSink produces events asynchronously; delivery failures are logged from
// the produce callback because Publish has already returned by then.
type KafkaSink struct {
	log      *slog.Logger
	producer Producer
	topic    string
}

func NewKafkaSink(log *slog.Logger, producer Producer, topic string) *KafkaSink {
	return &KafkaSink{log: log, producer: producer, topic: topic}
}

func (s *KafkaSink) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	rec := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(ev.Kind),
		Value: data,
	}
	s.producer.Produce(ctx, rec, func(r *kgo.Record, err error) {
		if err != nil {
			s.log.Warn("audit: kafka produce failed", "topic", r.Topic, "error", err)
		}
	})
	return nil
}

func (s *KafkaSink) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.producer.Flush(ctx)
	s.producer.Close()
	return err
}
