// Package events publishes domain events after they are committed.
// Publication is best effort: a lost event never undoes a payment.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

const TypeOrderPaid = "order.paid"

type OrderPaid struct {
	OrderID              string    `json:"orderId"`
	UserID               *int      `json:"userId,omitempty"`
	Gateway              string    `json:"gateway"`
	GatewayTransactionID string    `json:"gatewayTransactionId"`
	Amount               int64     `json:"amount"`
	Currency             string    `json:"currency"`
	PaidAt               time.Time `json:"paidAt"`
}

type Publisher interface {
	PublishOrderPaid(ctx context.Context, ev OrderPaid) error
	Close() error
}

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}}
}

// PublishOrderPaid keys the message by order id so every event of one order
// lands on the same partition.
func (p *KafkaPublisher) PublishOrderPaid(ctx context.Context, ev OrderPaid) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:     []byte(ev.OrderID),
		Value:   data,
		Time:    time.Now().UTC(),
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(TypeOrderPaid)}},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s for order %s: %w", TypeOrderPaid, ev.OrderID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }

// Noop drops events. Used when no brokers are configured.
type Noop struct{}

func (Noop) PublishOrderPaid(context.Context, OrderPaid) error { return nil }
func (Noop) Close() error                                     { return nil }

// Recorder keeps published events in memory for tests.
type Recorder struct {
	mu     sync.Mutex
	events []OrderPaid
}

func (r *Recorder) PublishOrderPaid(_ context.Context, ev OrderPaid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []OrderPaid {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]OrderPaid(nil), r.events...)
}
