// Package kafka mirrors audit events onto a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "trustex/pkg/platform/audit"
)

// Producer is the slice of *kgo.Client the sink needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

type Sink struct {
	producer Producer
	topic    string
}

func NewSink(producer Producer, topic string) *Sink {
	return &Sink{producer: producer, topic: topic}
}

type payload struct {
	Category     string `json:"category"`
	Timestamp    string `json:"timestamp"`
	Action       string `json:"action"`
	Subject      string `json:"subject"`
	Principal    string `json:"principal,omitempty"`
	Counterparty string `json:"counterparty,omitempty"`
	Amount       int64  `json:"amount,omitempty"`
	Decision     string `json:"decision,omitempty"`
	Reason       string `json:"reason,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
	ActorID      string `json:"actor_id,omitempty"`
}

// Publish writes the event keyed by subject so one company's events stay on
// one partition in order.
func (s *Sink) Publish(ctx context.Context, event audit.Event) error {
	value, err := json.Marshal(payload{
		Category:     string(event.Category),
		Timestamp:    event.Timestamp.UTC().Format(time.RFC3339Nano),
		Action:       event.Action,
		Subject:      event.Subject,
		Principal:    event.Principal,
		Counterparty: event.Counterparty,
		Amount:       event.Amount,
		Decision:     event.Decision,
		Reason:       event.Reason,
		RequestID:    event.RequestID,
		ActorID:      event.ActorID,
	})
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.Subject),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "category", Value: []byte(event.Category)},
		},
	}
	if err := s.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}
