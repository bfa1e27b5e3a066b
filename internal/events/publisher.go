package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	RoutingOrderPaid         = "order.paid"
	RoutingOrderFailed       = "order.failed"
	RoutingOrderRefunded     = "order.refunded"
	RoutingRefundRequired    = "order.refund_required"
	RoutingSubmissionDecided = "submission.decided"
)

// Envelope is the JSON body of every published message.
type Envelope struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// Publisher delivers domain events after the owning transaction committed.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, data any) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }

// AMQPPublisher publishes persistent JSON messages to one durable queue per
// routing key on the default exchange.
type AMQPPublisher struct {
	conn *amqp.Connection
	log  *zap.Logger

	mu       sync.Mutex
	ch       *amqp.Channel
	declared map[string]struct{}
}

func NewAMQPPublisher(url string, log *zap.Logger) (*AMQPPublisher, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("amqp url is required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &AMQPPublisher{
		conn:     conn,
		ch:       ch,
		log:      log.Named("events.amqp"),
		declared: make(map[string]struct{}),
	}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, data any) error {
	body, err := json.Marshal(Envelope{
		Type:       routingKey,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.declared[routingKey]; !ok {
		if _, err := p.ch.QueueDeclare(routingKey, true, false, false, false, nil); err != nil {
			return err
		}
		p.declared[routingKey] = struct{}{}
	}

	return p.ch.PublishWithContext(ctx, "", routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}

// PublishBestEffort logs instead of failing the caller; the database is the
// source of truth for every event.
func PublishBestEffort(ctx context.Context, pub Publisher, log *zap.Logger, routingKey string, data any) {
	if pub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := pub.Publish(ctx, routingKey, data); err != nil && log != nil {
		log.Warn("publish event failed", zap.String("routing_key", routingKey), zap.Error(err))
	}
}
