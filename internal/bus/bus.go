// ABOUTME: Fan-out publish contract for newly created messages
// ABOUTME: Routing keys are derived from the owning channel id

package bus

import (
	"context"
	"errors"
	"fmt"
)

// DefaultExchange is the exchange every message is published to.
const DefaultExchange = "channel-messages"

// ErrClosed is returned when publishing or subscribing on a closed bus.
var ErrClosed = errors.New("bus closed")

// Publisher delivers a payload to every current subscriber of routingKey.
// Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
}

// Subscriber streams payloads published to routingKey after the call returns.
// The channel is closed when ctx is done or the bus shuts down.
type Subscriber interface {
	Subscribe(ctx context.Context, routingKey string) (<-chan []byte, error)
}

// Bus is a Publisher and Subscriber with a lifetime.
type Bus interface {
	Publisher
	Subscriber
	Close() error
}

// RoutingKey returns the routing key for messages of a channel.
func RoutingKey(channelID int64) string {
	return fmt.Sprintf("channel-%d", channelID)
}
