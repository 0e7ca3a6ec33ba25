// ABOUTME: RabbitMQ fan-out over a direct exchange using amqp091-go
// ABOUTME: One shared publishing channel; each subscription gets an exclusive auto-delete queue

package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQP publishes to and consumes from a RabbitMQ direct exchange.
type AMQP struct {
	conn     *amqp.Connection
	exchange string
	logger   *slog.Logger

	mu     sync.Mutex // guards pub; amqp channels are not safe for concurrent publishing
	pub    *amqp.Channel
	closed bool
}

// DialAMQP connects to url and declares the exchange. An empty exchange
// selects DefaultExchange. Pass nil logger for default.
func DialAMQP(url, exchange string, logger *slog.Logger) (*AMQP, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to broker: %w", err)
	}

	pub, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}

	if err := pub.ExchangeDeclare(exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declaring exchange %s: %w", exchange, err)
	}

	logger = logger.With("component", "bus", "driver", "amqp", "exchange", exchange)
	logger.Info("connected to broker")

	return &AMQP{
		conn:     conn,
		exchange: exchange,
		logger:   logger,
		pub:      pub,
	}, nil
}

// Publish sends payload with routingKey. Messages are transient; subscribers
// that are not connected miss them.
func (a *AMQP) Publish(ctx context.Context, routingKey string, payload []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}

	err := a.pub.PublishWithContext(ctx, a.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		Timestamp:    time.Now(),
		Body:         payload,
	})
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", routingKey, err)
	}
	return nil
}

// Subscribe binds a fresh exclusive queue to routingKey and streams its
// payloads until ctx is done or the connection drops.
func (a *AMQP) Subscribe(ctx context.Context, routingKey string) (<-chan []byte, error) {
	ch, err := a.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("opening channel: %w", err)
	}

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("declaring queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, routingKey, a.exchange, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("binding queue: %w", err)
	}
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("consuming: %w", err)
	}

	a.logger.Debug("subscriber added", "routing_key", routingKey, "queue", q.Name)

	out := make(chan []byte, subscriberBufferSize)
	go func() {
		defer close(out)
		defer ch.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					a.logger.Warn("delivery channel closed", "routing_key", routingKey)
					return
				}
				select {
				case out <- d.Body:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close closes the publishing channel and the connection.
func (a *AMQP) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	a.logger.Info("closing broker connection")
	if err := a.pub.Close(); err != nil && err != amqp.ErrClosed {
		a.logger.Warn("closing publish channel", "error", err)
	}
	return a.conn.Close()
}

// Ensure AMQP implements Bus
var _ Bus = (*AMQP)(nil)
