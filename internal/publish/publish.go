// Package publish emits finished metric records to a Kafka topic so
// downstream dashboards pick up new verification runs without polling SQLite.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/lox/gridverify/internal/verify"
)

// Record is one accumulator's derived metrics as published downstream.
type Record struct {
	RunID       int64          `json:"run_id"`
	EntityKind  string         `json:"entity_kind"`
	EntityKey   string         `json:"entity_key"`
	Variable    string         `json:"variable"`
	Metrics     verify.Metrics `json:"metrics"`
	PublishedAt time.Time      `json:"published_at"`
}

type Publisher struct {
	writer *kafkago.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w}
}

// PublishSet serializes and publishes every accumulator's metrics in a single
// WriteMessages call.
func (p *Publisher) PublishSet(ctx context.Context, runID int64, set verify.Set, at time.Time) error {
	if len(set) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, 0, len(set))
	for id, acc := range set {
		msg, err := serializeToMessage(Record{
			RunID:       runID,
			EntityKind:  id.Kind.String(),
			EntityKey:   id.EntityKey(),
			Variable:    id.Variable,
			Metrics:     acc.ComputeMetrics(),
			PublishedAt: at,
		})
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func serializeToMessage(rec Record) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize metric record: %w", err)
	}
	key := fmt.Sprintf("%s/%s/%s", rec.EntityKind, rec.Variable, rec.EntityKey)
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "entity_kind", Value: []byte(rec.EntityKind)},
			{Key: "published_at", Value: []byte(rec.PublishedAt.Format(time.RFC3339))},
		},
	}, nil
}
