package kafka

import (
	"context"
	"time"

	"github.com/jmehdipour/linkdb/internal/model"
	"github.com/segmentio/kafka-go"
)

type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration // default 10ms
}

// UsageProducer publishes usage events as versioned envelopes keyed by
// api key, so one credential's events stay ordered on one partition.
type UsageProducer struct {
	w *kafka.Writer
}

func NewUsageProducer(c ProducerConfig) *UsageProducer {
	bt := c.BatchTimeout
	if bt <= 0 {
		bt = 10 * time.Millisecond
	}
	return &UsageProducer{w: &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Topic:        c.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: bt,
	}}
}

// Write implements the usage meter's sink.
func (p *UsageProducer) Write(ctx context.Context, events []model.UsageEvent) error {
	msgs, err := EncodeUsage(events)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, msgs...)
}

func (p *UsageProducer) Close() error { return p.w.Close() }

// EncodeUsage builds one message per event.
func EncodeUsage(events []model.UsageEvent) ([]Message, error) {
	msgs := make([]Message, 0, len(events))
	for _, ev := range events {
		b, err := model.EncodeEnvelope(ev)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, Message{Key: []byte(ev.APIKey), Value: b, Time: ev.CreatedAt})
	}
	return msgs, nil
}
