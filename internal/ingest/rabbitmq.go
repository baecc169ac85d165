package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/example/autoride/internal/models"
)

const DefaultExchange = "ride_topic"

// session is one connection plus the channel events are published on.
type session interface {
	Publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

type dialFunc func(url, exchange string) (session, error)

// RabbitPublisher sends ride events to a durable topic exchange with routing
// key ride.<status>, so consumers can bind to e.g. ride.completed or ride.#.
type RabbitPublisher struct {
	url      string
	exchange string
	log      *slog.Logger
	dial     dialFunc

	mu   sync.Mutex
	sess session
}

func NewRabbitPublisher(url, exchange string, log *slog.Logger) (*RabbitPublisher, error) {
	return newRabbitPublisher(url, exchange, log, dialAMQP)
}

func newRabbitPublisher(url, exchange string, log *slog.Logger, dial dialFunc) (*RabbitPublisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if log == nil {
		log = slog.Default()
	}
	r := &RabbitPublisher{url: url, exchange: exchange, log: log, dial: dial}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.connectLocked(); err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	return r, nil
}

// RoutingKey returns the key an event is published under.
func RoutingKey(ev models.RideEvent) string {
	return "ride." + string(ev.Status)
}

func (r *RabbitPublisher) PublishRideEvent(ctx context.Context, ev models.RideEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode ride event: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sess == nil || r.sess.IsClosed() {
		r.log.Warn("rabbitmq connection lost, reconnecting")
		if err := r.connectLocked(); err != nil {
			return fmt.Errorf("reconnect to rabbitmq: %w", err)
		}
	}
	return r.sess.Publish(ctx, r.exchange, RoutingKey(ev), amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.RideID,
		Type:         ev.Type,
		Timestamp:    ev.At,
		Body:         body,
	})
}

func (r *RabbitPublisher) connectLocked() error {
	if err := r.closeLocked(); err != nil {
		r.log.Debug("closing stale rabbitmq session", "error", err)
	}
	sess, err := r.dial(r.url, r.exchange)
	if err != nil {
		return err
	}
	r.sess = sess
	return nil
}

func (r *RabbitPublisher) closeLocked() error {
	if r.sess == nil {
		return nil
	}
	var err error
	if !r.sess.IsClosed() {
		err = r.sess.Close()
	}
	r.sess = nil
	return err
}

func (r *RabbitPublisher) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked()
}

type amqpSession struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// dialAMQP connects, opens a channel and declares the durable topic exchange.
func dialAMQP(url, exchange string) (session, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &amqpSession{conn: conn, ch: ch}, nil
}

func (s *amqpSession) Publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error {
	return s.ch.PublishWithContext(ctx, exchange, key, false, false, msg)
}

func (s *amqpSession) IsClosed() bool {
	return s.conn.IsClosed() || s.ch.IsClosed()
}

func (s *amqpSession) Close() error {
	var errs []error
	if !s.ch.IsClosed() {
		if err := s.ch.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close rabbitmq channel: %w", err))
		}
	}
	if !s.conn.IsClosed() {
		if err := s.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close rabbitmq connection: %w", err))
		}
	}
	return errors.Join(errs...)
}
