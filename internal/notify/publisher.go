package notify

import (
	"context"
	"time"

	kafkax "github.com/ariefcatur/drone-orders/internal/kafka"
	"github.com/ariefcatur/drone-orders/internal/orders"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

type publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header) error
}

// Publisher implements orders.Notifier by emitting OrderCreated events.
type Publisher struct {
	Producer    publisher
	ServiceName string
}

func NewPublisher(p *kafkax.Producer, serviceName string) *Publisher {
	return &Publisher{Producer: p, ServiceName: serviceName}
}

func (p *Publisher) NotifyOrderCreated(ctx context.Context, d orders.OrderDetail) error {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      p.ServiceName,
		TraceID:       middleware.GetReqID(ctx),
		CorrelationID: d.Order.ID,
		Payload:       kafkax.MustMarshal(orders.NewOrderCreatedPayload(d)),
	}
	return p.Producer.Publish(orders.PartitionKey(d.Order.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderCreated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
