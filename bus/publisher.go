package bus

import (
	"context"
	"fmt"

	"github.com/MrEthical07/goRelay/permission"
	"github.com/redis/go-redis/v9"
)

// Publisher is the producer side of the bus.
type Publisher struct {
	client redis.UniversalClient
}

// NewPublisher returns a Publisher bound to client.
func NewPublisher(client redis.UniversalClient) *Publisher {
	return &Publisher{client: client}
}

// Publish encodes an envelope and publishes it on channel. It returns the
// number of Redis subscribers that received it.
func (p *Publisher) Publish(ctx context.Context, channel string, set permission.Set, data any) (int64, error) {
	payload, err := EncodeEnvelope(set, data)
	if err != nil {
		return 0, err
	}
	n, err := p.client.Publish(ctx, channel, payload).Result()
	if err != nil {
		return 0, fmt.Errorf("publish %q: %w", channel, err)
	}
	return n, nil
}
