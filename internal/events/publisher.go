package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"sales_api/internal/sales"
)

const (
	DefaultTopic = "SaleCompleted"
	BatchTimeout = 10 * time.Millisecond
)

// SaleCompletedEvent is published once a sale has been stored.
type SaleCompletedEvent struct {
	SaleID     string           `json:"sale_id"`
	UserID     int64            `json:"user_id"`
	Subtotal   float64          `json:"subtotal"`
	Tax        float64          `json:"tax"`
	Total      float64          `json:"total"`
	Items      []sales.LineItem `json:"items"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes sale events to a Kafka topic.
type KafkaPublisher struct {
	writer MessageWriter
	logger *zap.Logger
}

// NewKafkaWriter returns a writer for topic on broker.
func NewKafkaWriter(broker, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(broker),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           BatchTimeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaPublisher(writer MessageWriter, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, logger: logger}
}

// PublishSaleCompleted writes the event keyed by user, so every sale of a
// user lands on the same partition.
func (p *KafkaPublisher) PublishSaleCompleted(ctx context.Context, sale *sales.Sale) error {
	payload, err := json.Marshal(SaleCompletedEvent{
		SaleID:     sale.ID,
		UserID:     sale.UserID,
		Subtotal:   sale.Subtotal,
		Tax:        sale.Tax,
		Total:      sale.Total,
		Items:      sale.Items,
		OccurredAt: sale.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode sale completed event: %w", err)
	}

	msg := kafka.Message{
		Key:     []byte(fmt.Sprintf("%d", sale.UserID)),
		Value:   payload,
		Headers: traceHeaders(ctx),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write sale completed event: %w", err)
	}

	p.logger.Debug("published sale completed event", zap.String("sale_id", sale.ID))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// traceHeaders carries the current trace context to consumers.
func traceHeaders(ctx context.Context) []kafka.Header {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := make([]kafka.Header, 0, len(carrier))
	for k, v := range carrier {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return headers
}
