package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/puncture-ln/punctured/pkg/logger"
)

// DefaultCapacity is the default bounded buffer per subscriber (§4.3).
const DefaultCapacity = 1000

// streamMaxLen bounds each user's Redis stream so a topic with no
// subscribers for a while does not grow unboundedly; this is the Redis
// analogue of "bounded capacity" for the underlying transport, layered
// under the per-subscriber Go-channel bound enforced in Subscribe.
const streamMaxLen = 10000

// ErrLagged is delivered on Subscription.Lagged when a subscriber falls
// behind its bounded buffer (§4.3, §9 "event-bus lag"). The session layer
// translates this into a connection reset.
var ErrLagged = errors.New("eventbus: subscriber lagged past capacity")

// Bus is the process-wide publish/subscribe of §4.3, topic = user public
// key, backed by Redis Streams (adapted from the teacher's
// pkg/queue.StreamQueue). Each subscription creates its own Redis consumer
// group reading from "$" (only new entries), so independent sessions for
// the same user each get an at-most-once, independent view of the stream.
type Bus struct {
	client   *redis.Client
	capacity int
}

// New constructs a Bus. capacity <= 0 uses DefaultCapacity.
func New(client *redis.Client, capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{client: client, capacity: capacity}
}

func streamKey(userPK string) string {
	return "punctured:events:" + userPK
}

// Publish pushes ev to userPK's topic. Per §4.3, publish is non-blocking
// and a no-op when no subscriber consumer groups exist for the topic.
func (b *Bus) Publish(ctx context.Context, userPK string, ev Event) error {
	key := streamKey(userPK)

	groups, err := b.client.XInfoGroups(ctx, key).Result()
	if err != nil && !isNoSuchKey(err) {
		return fmt.Errorf("eventbus: publish: check groups: %w", err)
	}
	if len(groups) == 0 {
		return nil
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("eventbus: publish: marshal: %w", err)
	}

	err = b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: key,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{"data": payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("eventbus: publish: xadd: %w", err)
	}
	return nil
}

// Subscription is a live subscriber's view of a topic.
type Subscription struct {
	Events <-chan Event
	Lagged <-chan error

	cancel func()
}

// Close stops the subscription's background consumer and removes its
// Redis consumer group.
func (s *Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Subscribe attaches a new subscriber to userPK's topic. The returned
// Subscription's Events channel is bounded at the Bus's capacity; if the
// caller falls behind, a signal is sent on Lagged and the subscription
// stops delivering further events (the session layer is expected to reset
// the connection, per §9).
func (b *Bus) Subscribe(ctx context.Context, userPK string) (*Subscription, error) {
	key := streamKey(userPK)
	group := "sub-" + uuid.NewString()

	if err := b.client.XGroupCreateMkStream(ctx, key, group, "$").Err(); err != nil {
		return nil, fmt.Errorf("eventbus: subscribe: create group: %w", err)
	}

	consumer := "c-" + uuid.NewString()
	subCtx, cancel := context.WithCancel(ctx)

	events := make(chan Event, b.capacity)
	lagged := make(chan error, 1)

	go b.consume(subCtx, key, group, consumer, events, lagged)

	return &Subscription{
		Events: events,
		Lagged: lagged,
		cancel: func() {
			cancel()
			b.client.XGroupDestroy(context.Background(), key, group)
		},
	}, nil
}

func (b *Bus) consume(ctx context.Context, key, group, consumer string, events chan<- Event, lagged chan<- error) {
	defer close(events)

	for {
		if ctx.Err() != nil {
			return
		}

		streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{key, ">"},
			Count:    1,
			Block:    0,
		}).Result()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			logger.Error("eventbus: read error", zap.Error(err))
			return
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				raw, _ := msg.Values["data"].(string)
				var ev Event
				if err := json.Unmarshal([]byte(raw), &ev); err != nil {
					logger.Error("eventbus: malformed event", zap.Error(err))
					b.client.XAck(ctx, key, group, msg.ID)
					continue
				}
				select {
				case events <- ev:
					b.client.XAck(ctx, key, group, msg.ID)
				default:
					select {
					case lagged <- ErrLagged:
					default:
					}
					return
				}
			}
		}
	}
}

func isNoSuchKey(err error) bool {
	return strings.Contains(err.Error(), "no such key")
}
