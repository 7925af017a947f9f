package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	domoutbox "github.com/namprobe/NekoViBE-sub001/internal/domain/outbox"
	"github.com/namprobe/NekoViBE-sub001/internal/observability"
)

// Publisher writes domain events to a Kafka topic as JSON envelopes, keyed by
// event name so consumers keep per-event ordering. It satisfies
// outbox.Publisher and can stand in for the in-process bus when downstream
// systems (analytics, notifications) need the stream.
type Publisher struct {
	writer *kafka.Writer
	log    observability.Logger
}

type envelope struct {
	Name       string          `json:"name"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

func NewPublisher(brokers []string, topic string, logger observability.Logger) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		Compression:  kafka.Snappy,
	}
	return &Publisher{
		writer: writer,
		log:    logger.With(observability.F("component", "outbox_kafka")),
	}
}

func (p *Publisher) Publish(ctx context.Context, e domoutbox.Event) error {
	if e == nil {
		return nil
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("outbox kafka: marshal %s: %w", e.EventName(), err)
	}
	body, err := json.Marshal(envelope{
		Name:       e.EventName(),
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		return fmt.Errorf("outbox kafka: marshal envelope: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(e.EventName()),
		Value: body,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("outbox kafka: write %s: %w", e.EventName(), err)
	}
	p.log.Debug("event_published", observability.F("event", e.EventName()))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
