package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"sales_api/internal/sales"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func testSale() *sales.Sale {
	return &sales.Sale{
		ID:        "sale-1",
		UserID:    1,
		CreatedAt: time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC),
		Subtotal:  100,
		Tax:       19,
		Total:     119,
		Status:    sales.StatusCompleted,
		Items:     []sales.LineItem{{ProductID: 100, ProductName: "Pokemon Plush", Quantity: 1, UnitPrice: 100}},
	}
}

func TestKafkaPublisher_PublishSaleCompleted(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w, zaptest.NewLogger(t))

	require.NoError(t, p.PublishSaleCompleted(context.Background(), testSale()))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "1", string(w.msgs[0].Key))

	var ev SaleCompletedEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, "sale-1", ev.SaleID)
	assert.Equal(t, int64(1), ev.UserID)
	assert.InDelta(t, 119.0, ev.Total, 1e-9)
	require.Len(t, ev.Items, 1)
	assert.Equal(t, "Pokemon Plush", ev.Items[0].ProductName)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := NewKafkaPublisher(&fakeWriter{err: errors.New("leader not available")}, zaptest.NewLogger(t))

	err := p.PublishSaleCompleted(context.Background(), testSale())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
}

func TestKafkaPublisher_PropagatesTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "sale")
	defer span.End()

	w := &fakeWriter{}
	p := NewKafkaPublisher(w, zaptest.NewLogger(t))
	require.NoError(t, p.PublishSaleCompleted(ctx, testSale()))

	require.Len(t, w.msgs, 1)
	var traceparent string
	for _, h := range w.msgs[0].Headers {
		if h.Key == "traceparent" {
			traceparent = string(h.Value)
		}
	}
	assert.Contains(t, traceparent, span.SpanContext().TraceID().String())
}
