package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"github.com/jmerrifield20/sundew/internal/session"
)

// KafkaConfig configures the verdict producer.
type KafkaConfig struct {
	Brokers     []string
	Topic       string
	Acks        string
	Compression string
}

// KafkaSink produces verdicts with key=session_id so consumers can dedupe.
type KafkaSink struct {
	cfg      KafkaConfig
	producer *kafka.Producer
	logger   *zap.Logger
	done     chan struct{}
}

// NewKafkaSink creates the producer and starts draining its event channel.
func NewKafkaSink(cfg KafkaConfig, logger *zap.Logger) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		cfg.Topic = "sundew.verdicts"
	}
	if cfg.Acks == "" {
		cfg.Acks = "all"
	}

	configMap := kafka.ConfigMap{
		"bootstrap.servers": strings.Join(cfg.Brokers, ","),
		"acks":              cfg.Acks,
		"retries":           10,
		"retry.backoff.ms":  100,
		"linger.ms":         10,
	}
	if cfg.Compression != "" {
		configMap["compression.type"] = cfg.Compression
	}

	p, err := kafka.NewProducer(&configMap)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	s := &KafkaSink{cfg: cfg, producer: p, logger: logger, done: make(chan struct{})}
	go s.handleEvents()
	return s, nil
}

// Emit produces v and waits for its delivery report.
func (s *KafkaSink) Emit(ctx context.Context, v session.Verdict) error {
	value, _, err := encodeVerdict(v)
	if err != nil {
		return err
	}

	delivery := make(chan kafka.Event, 1)
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &s.cfg.Topic, Partition: kafka.PartitionAny},
		Key:            []byte(v.SessionID),
		Value:          value,
		Headers: []kafka.Header{
			{Key: "label", Value: []byte(v.Label)},
			{Key: "schema", Value: []byte("v1")},
		},
	}
	if err := s.producer.Produce(msg, delivery); err != nil {
		return fmt.Errorf("produce verdict: %w", err)
	}

	select {
	case ev := <-delivery:
		m, ok := ev.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event %v", ev)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("deliver verdict: %w", m.TopicPartition.Error)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleEvents logs client-level errors until the producer is closed.
func (s *KafkaSink) handleEvents() {
	defer close(s.done)
	for ev := range s.producer.Events() {
		switch e := ev.(type) {
		case kafka.Error:
			s.logger.Warn("kafka: client error", zap.Error(e))
		case *kafka.Message:
			if e.TopicPartition.Error != nil {
				s.logger.Warn("kafka: delivery failed", zap.Error(e.TopicPartition.Error))
			}
		}
	}
}

// Close flushes outstanding messages, waiting up to ten seconds.
func (s *KafkaSink) Close() error {
	remaining := s.producer.Flush(10 * 1000)
	s.producer.Close()
	<-s.done
	if remaining > 0 {
		return fmt.Errorf("kafka: %d verdicts left unflushed", remaining)
	}
	return nil
}
