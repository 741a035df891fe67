package match

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

type lobbyExpirer interface {
	ExpireLobbies(ctx context.Context, olderThan time.Duration) (int, error)
}

// Sweeper periodically cancels lobbies nobody joined within the TTL.
type Sweeper struct {
	engine   lobbyExpirer
	ttl      time.Duration
	interval time.Duration
	logger   zerolog.Logger
}

// NewSweeper builds an expiry sweeper. The interval defaults to a tenth of the TTL, at least one second.
func NewSweeper(engine lobbyExpirer, ttl, interval time.Duration, logger zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = ttl / 10
	}
	if interval < time.Second {
		interval = time.Second
	}
	return &Sweeper{
		engine:   engine,
		ttl:      ttl,
		interval: interval,
		logger:   logger.With().Str("component", "lobby_sweeper").Logger(),
	}
}

// Run schedules the sweep and blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.engine == nil || s.ttl <= 0 {
		return nil
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() { s.Sweep(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("schedule lobby sweep: %w", err)
	}

	sched.Start()
	s.logger.Info().Dur("ttl", s.ttl).Dur("interval", s.interval).Msg("lobby sweeper started")

	<-ctx.Done()
	if err := sched.Shutdown(); err != nil {
		s.logger.Warn().Err(err).Msg("scheduler shutdown")
	}
	return ctx.Err()
}

// Sweep runs a single expiry pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	if _, err := s.engine.ExpireLobbies(ctx, s.ttl); err != nil {
		s.logger.Warn().Err(err).Msg("lobby sweep failed")
	}
}
