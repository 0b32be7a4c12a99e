package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	kafkax "github.com/ariefcatur/drone-orders/internal/kafka"
	"github.com/ariefcatur/drone-orders/internal/orders"
	"github.com/ariefcatur/drone-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Message struct {
	OrderID     string
	UserID      string
	Subject     string
	Body        string
	CorrelateTo string
}

// Sender delivers a rendered notification. Delivery channels (email, SMS)
// live outside this service.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// LogSender writes notifications to the log instead of delivering them.
type LogSender struct{ Log *zap.Logger }

func (s LogSender) Send(_ context.Context, m Message) error {
	s.Log.Info("notification",
		zap.String("order_id", m.OrderID),
		zap.String("user_id", m.UserID),
		zap.String("subject", m.Subject),
		zap.String("body", m.Body),
	)
	return nil
}

type Service struct {
	Redis  *redis.Client
	Sender Sender
	Log    *zap.Logger
}

// HandleOrderCreated is the consumer handler for order.created.
func (s *Service) HandleOrderCreated(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		s.Log.Warn("dropping undecodable event", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventOrderCreated {
		return nil
	}

	// SETNX claims the event; a duplicate delivery finds the key and stops.
	dkey := fmt.Sprintf(redisx.KeyDedup, "notifier", env.EventID)
	fresh, err := s.Redis.SetNX(ctx, dkey, "1", redisx.TTLDedup).Result()
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !fresh {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
	if err != nil {
		s.Log.Warn("dropping event with bad payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	if err := s.Sender.Send(ctx, renderOrderCreated(p, env.CorrelationID)); err != nil {
		// Let the event be redelivered.
		_ = s.Redis.Del(ctx, dkey).Err()
		return fmt.Errorf("send notification for %s: %w", p.OrderNumber, err)
	}
	return nil
}

func renderOrderCreated(p orders.OrderCreatedPayload, correlation string) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Thank you for your order %s.\n", p.OrderNumber)
	for _, it := range p.Items {
		fmt.Fprintf(&b, "- %d x %s @ %s %s\n", it.Qty, it.ProductName, it.UnitPrice, p.Currency)
	}
	fmt.Fprintf(&b, "Total: %s %s", p.Total, p.Currency)
	if p.ShipTo.City != "" {
		fmt.Fprintf(&b, "\nShipping to %s, %s", p.ShipTo.City, p.ShipTo.Country)
	}
	return Message{
		OrderID:     p.OrderID,
		UserID:      p.UserID,
		Subject:     "Order " + p.OrderNumber + " received",
		Body:        b.String(),
		CorrelateTo: correlation,
	}
}
