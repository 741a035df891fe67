package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/score-duel/internal/match"
	ws "github.com/gokatarajesh/score-duel/pkg/http/ws"
)

// Broadcaster listens for match events and forwards them to the players involved.
type Broadcaster struct {
	redis   *redis.Client
	hub     *ws.Hub
	channel string
	logger  zerolog.Logger
}

// NewBroadcaster creates a broadcaster. redis may be nil when events are
// delivered in-process through Local.
func NewBroadcaster(redis *redis.Client, hub *ws.Hub, channel string, logger zerolog.Logger) *Broadcaster {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Broadcaster{
		redis:   redis,
		hub:     hub,
		channel: channel,
		logger:  logger.With().Str("component", "feed_broadcaster").Logger(),
	}
}

// Run subscribes to the event channel and blocks until the context is cancelled.
func (b *Broadcaster) Run(ctx context.Context) error {
	if b.redis == nil || b.hub == nil {
		return nil
	}

	sub := b.redis.Subscribe(ctx, b.channel)
	defer sub.Close()

	// wait for the subscription to be confirmed so no event published after Run starts is missed
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.forward(msg.Payload)
		}
	}
}

func (b *Broadcaster) forward(payload string) {
	var evt match.Event
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		b.logger.Warn().Err(err).Msg("failed to decode match event payload")
		return
	}
	if err := b.Deliver(evt); err != nil {
		b.logger.Warn().Err(err).Str("event", evt.Type).Msg("failed to deliver match event")
	}
}

// Deliver sends evt to every connected participant of the match.
func (b *Broadcaster) Deliver(evt match.Event) error {
	if evt.Match == nil || b.hub == nil {
		return nil
	}

	matchJSON, err := json.Marshal(evt.Match)
	if err != nil {
		return fmt.Errorf("marshal match: %w", err)
	}
	payload := ws.MatchEventPayload{
		Event:   evt.Type,
		MatchID: evt.Match.ID.String(),
		Match:   matchJSON,
	}
	if evt.Resolution != nil {
		if payload.Resolution, err = json.Marshal(evt.Resolution); err != nil {
			return fmt.Errorf("marshal resolution: %w", err)
		}
	}

	msg, err := ws.NewMessage(ws.TypeMatchEvent, payload)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}
	return b.hub.SendToPlayers(evt.Match.Players(), msg)
}
