package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkaGo "github.com/segmentio/kafka-go"
)

// Sink writes JSON events to Kafka; the topic is chosen per message and the
// key keeps events of one aggregate on one partition.
type Sink struct {
	w *kafkaGo.Writer
}

func NewSink(brokers []string) *Sink {
	return &Sink{w: &kafkaGo.Writer{
		Addr:                   kafkaGo.TCP(brokers...),
		Balancer:               &kafkaGo.Hash{},
		RequiredAcks:           kafkaGo.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}}
}

func (s *Sink) Send(ctx context.Context, topic, key string, payload any) error {
	msg, err := newMessage(topic, key, payload)
	if err != nil {
		return err
	}
	if err := s.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write to %s: %w", topic, err)
	}
	return nil
}

func newMessage(topic, key string, payload any) (kafkaGo.Message, error) {
	value, err := json.Marshal(payload)
	if err != nil {
		return kafkaGo.Message{}, fmt.Errorf("kafka: marshal event: %w", err)
	}
	return kafkaGo.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kafkaGo.Header{
			{Key: "content-type", Value: []byte("application/json")},
		},
	}, nil
}

func (s *Sink) Close() error {
	return s.w.Close()
}
