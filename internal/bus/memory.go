// ABOUTME: In-memory fan-out broadcaster for single-process deployments and tests
// ABOUTME: Delivers published payloads to all subscribers of a routing key without blocking

package bus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 64
)

// Broadcaster provides in-memory pub/sub keyed by routing key.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan []byte // routingKey -> subID -> ch
	closed      bool
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]map[string]chan []byte),
		logger:      logger.With("component", "bus", "driver", "memory"),
	}
}

// Subscribe registers a subscriber for routingKey. The subscription is
// cleaned up when ctx is cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context, routingKey string) (<-chan []byte, error) {
	subID := uuid.New().String()
	ch := make(chan []byte, subscriberBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	if _, ok := b.subscribers[routingKey]; !ok {
		b.subscribers[routingKey] = make(map[string]chan []byte)
	}
	b.subscribers[routingKey][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "routing_key", routingKey, "sub_id", subID)

	// Auto-cleanup on context cancellation
	go func() {
		<-ctx.Done()
		b.unsubscribe(routingKey, subID)
	}()

	return ch, nil
}

// Publish sends payload to all subscribers of routingKey.
// Non-blocking: payloads are dropped for subscribers whose channels are full.
func (b *Broadcaster) Publish(ctx context.Context, routingKey string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}

	// Sends never block, so holding the read lock keeps unsubscribe from
	// closing a channel mid-send.
	for subID, ch := range b.subscribers[routingKey] {
		select {
		case ch <- payload:
		default:
			b.logger.Debug("dropped payload for slow subscriber", "routing_key", routingKey, "sub_id", subID)
		}
	}
	return nil
}

// unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) unsubscribe(routingKey, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[routingKey]
	if !ok {
		return
	}
	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)

	if len(subs) == 0 {
		delete(b.subscribers, routingKey)
	}

	b.logger.Debug("subscriber removed", "routing_key", routingKey, "sub_id", subID)
}

// subscriberCount returns the number of live subscriptions for routingKey.
func (b *Broadcaster) subscriberCount(routingKey string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[routingKey])
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for key, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, key)
	}

	b.logger.Debug("broadcaster closed")
	return nil
}

// Ensure Broadcaster implements Bus
var _ Bus = (*Broadcaster)(nil)
