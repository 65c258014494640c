package relay

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

const jitterWindow = 250 * time.Millisecond

// Publisher sends one message and blocks for the server ack.
type Publisher interface {
	Publish(context.Context, *gcppubsub.Message) (string, error)
	// Resume re-opens an ordering key after a failed publish paused it.
	Resume(orderingKey string)
}

type topicSource interface {
	Publisher(name string) *gcppubsub.Publisher
}

// TopicPublishers adapts a Pub/Sub client into a PublisherFor, caching one
// publisher per topic. Ordered publishers are created with message ordering on.
func TopicPublishers(client topicSource, ordered bool) PublisherFor {
	cache := map[string]Publisher{}
	return func(topic string) Publisher {
		if pub, ok := cache[topic]; ok {
			return pub
		}
		raw := client.Publisher(topic)
		if raw == nil {
			return nil
		}
		raw.EnableMessageOrdering = ordered
		pub := &pubsubPublisher{publisher: raw}
		cache[topic] = pub
		return pub
	}
}

type pubsubPublisher struct {
	publisher *gcppubsub.Publisher
}

func (p *pubsubPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) (string, error) {
	if p == nil || p.publisher == nil {
		return "", errors.New("publisher is nil")
	}
	return p.publisher.Publish(ctx, msg).Get(ctx)
}

func (p *pubsubPublisher) Resume(orderingKey string) {
	if p == nil || p.publisher == nil {
		return
	}
	p.publisher.ResumePublish(orderingKey)
}

type backoff struct {
	base    time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(base, max time.Duration) *backoff {
	return &backoff{base: base, max: max, current: base}
}

// next doubles the delay up to max and returns it with jitter applied.
func (b *backoff) next() time.Duration {
	b.current *= 2
	if b.current <= 0 {
		b.current = b.base
	}
	if b.current > b.max {
		b.current = b.max
	}
	return jitter(b.current)
}

func (b *backoff) reset() {
	b.current = b.base
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
