// Package events publishes recorded sales to downstream consumers such as the
// reporting pipeline.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"omnistock/backend/internal/domain"
	"omnistock/backend/internal/xid"
)

const EventSalesRecorded = "SalesRecorded"

type SalesRecordedEvent struct {
	EventID   string       `json:"event_id"`
	EventType string       `json:"event_type"`
	Payload   SalesPayload `json:"payload"`
	Timestamp time.Time    `json:"timestamp"`
}

type SalesPayload struct {
	OrderID string         `json:"order_id"`
	Channel domain.Channel `json:"channel"`
	Sales   []domain.Sale  `json:"sales"`
}

type Publisher interface {
	PublishSales(ctx context.Context, order domain.Order, sales []domain.Sale) error
	Close() error
}

type NoopPublisher struct{}

func (NoopPublisher) PublishSales(_ context.Context, _ domain.Order, _ []domain.Sale) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	logger *zap.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
		logger: logger,
	}
}

func (p *KafkaPublisher) PublishSales(ctx context.Context, order domain.Order, sales []domain.Sale) error {
	if len(sales) == 0 {
		return nil
	}
	event := SalesRecordedEvent{
		EventID:   xid.New("evt"),
		EventType: EventSalesRecorded,
		Payload: SalesPayload{
			OrderID: order.ID,
			Channel: order.Channel,
			Sales:   sales,
		},
		Timestamp: time.Now().UTC(),
	}
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(order.ID), Value: value}); err != nil {
		return err
	}
	p.logger.Debug("published sales event", zap.String("order_id", order.ID), zap.Int("sales", len(sales)))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
