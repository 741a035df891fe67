// Package feed fans match events out to connected players, across instances via Redis Pub/Sub.
package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/score-duel/internal/match"
)

// DefaultChannel is the Pub/Sub channel used when none is configured.
const DefaultChannel = "matchmaking:events"

// Publisher implements match.Notifier by publishing events to Redis.
type Publisher struct {
	redis   *redis.Client
	channel string
	logger  zerolog.Logger
}

var _ match.Notifier = (*Publisher)(nil)

// NewPublisher creates a Redis-backed event publisher.
func NewPublisher(redis *redis.Client, channel string, logger zerolog.Logger) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{
		redis:   redis,
		channel: channel,
		logger:  logger.With().Str("component", "feed_publisher").Logger(),
	}
}

// Notify publishes evt as JSON on the feed channel.
func (p *Publisher) Notify(ctx context.Context, evt match.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	receivers, err := p.redis.Publish(ctx, p.channel, data).Result()
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	p.logger.Debug().Str("event", evt.Type).Int64("receivers", receivers).Msg("event published")
	return nil
}

// Local implements match.Notifier for single-instance deployments by handing
// events straight to the broadcaster.
type Local struct {
	broadcaster *Broadcaster
}

var _ match.Notifier = (*Local)(nil)

// NewLocal creates an in-process notifier.
func NewLocal(b *Broadcaster) *Local {
	return &Local{broadcaster: b}
}

func (l *Local) Notify(_ context.Context, evt match.Event) error {
	return l.broadcaster.Deliver(evt)
}
