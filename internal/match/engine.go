package match

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultClaimAttempts = 5
	defaultScanPage      = 50
	defaultHistoryLimit  = 10
	maxHistoryLimit      = 100
)

// EngineOptions configures the matchmaking engine.
type EngineOptions struct {
	ClaimAttempts int // claims tried before falling back to a new lobby (default 5)
	ScanPage      int // lobby ids fetched per queue page (default 50)
	Notifier      Notifier
	Metrics       *Metrics
	Now           func() time.Time
}

// Engine owns lobby creation, pairing and resolution. All coordination
// between concurrent submissions happens through Store.UpdateMatch.
type Engine struct {
	store         Store
	stats         *StatsAggregator
	notifier      Notifier
	metrics       *Metrics
	claimAttempts int
	scanPage      int
	now           func() time.Time
	logger        zerolog.Logger
}

// NewEngine creates a matchmaking engine over the given store.
func NewEngine(store Store, opts EngineOptions, logger zerolog.Logger) *Engine {
	attempts := opts.ClaimAttempts
	if attempts <= 0 {
		attempts = defaultClaimAttempts
	}
	page := opts.ScanPage
	if page <= 0 {
		page = defaultScanPage
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		store:         store,
		stats:         NewStatsAggregator(store),
		notifier:      notifier,
		metrics:       metrics,
		claimAttempts: attempts,
		scanPage:      page,
		now:           now,
		logger:        logger.With().Str("component", "matchmaking").Logger(),
	}
}

// SubmitScore pairs the submission with the oldest eligible lobby, or opens a
// new lobby when none can be claimed.
func (e *Engine) SubmitScore(ctx context.Context, sub Submission) (*Outcome, error) {
	entry, err := sub.participant(e.timestamp())
	if err != nil {
		e.metrics.Submissions.WithLabelValues("rejected").Inc()
		return nil, err
	}

	for attempt := 1; attempt <= e.claimAttempts; attempt++ {
		target, err := e.oldestEligible(ctx, entry.PlayerName)
		if err != nil {
			return nil, e.failSubmission(err)
		}
		if target == nil {
			break
		}

		outcome, err := e.claim(ctx, target, entry)
		if errors.Is(err, ErrClaimConflict) {
			e.metrics.ClaimConflicts.Inc()
			e.logger.Debug().
				Str("match_id", target.ID.String()).
				Str("player", entry.PlayerName).
				Int("attempt", attempt).
				Msg("lobby claim lost, re-evaluating")
			continue
		}
		if err != nil {
			return nil, e.failSubmission(err)
		}

		e.metrics.Submissions.WithLabelValues(string(StateCompleted)).Inc()
		e.notify(ctx, Event{Type: EventMatchResolved, Match: outcome.Match, Resolution: outcome.Resolution})
		return outcome, nil
	}

	return e.openLobby(ctx, entry)
}

// CancelMatch cancels a waiting lobby on behalf of its creator.
func (e *Engine) CancelMatch(ctx context.Context, matchID uuid.UUID, requestingPlayer string) (*Match, error) {
	requester := strings.TrimSpace(requestingPlayer)
	if requester == "" {
		return nil, &ValidationError{Field: "playerName", Message: "playerName is required"}
	}

	// A waiting match changes state at most once, so a lost race is settled by one re-read.
	for attempt := 0; attempt < 2; attempt++ {
		current, err := e.load(ctx, matchID)
		if err != nil {
			return nil, err
		}
		if current.Creator.PlayerName != requester {
			return nil, ErrNotAuthorized
		}
		if err := stateError(current.State); err != nil {
			return nil, err
		}

		next := e.cancelled(current, CancelReasonCreator)
		err = e.store.UpdateMatch(ctx, next, current.Version)
		if errors.Is(err, ErrClaimConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: cancel match %s: %w", ErrStoreUnavailable, matchID, err)
		}

		e.metrics.Cancellations.Inc()
		e.logger.Info().
			Str("match_id", matchID.String()).
			Str("player", requester).
			Msg("lobby cancelled")
		e.notify(ctx, Event{Type: EventMatchCancelled, Match: next})
		return next, nil
	}

	return nil, fmt.Errorf("%w: cancel match %s: %w", ErrStoreUnavailable, matchID, ErrClaimConflict)
}

// GetMatch returns a single match by id.
func (e *Engine) GetMatch(ctx context.Context, matchID uuid.UUID) (*Match, error) {
	return e.load(ctx, matchID)
}

// PlayerMatches returns up to limit matches the player took part in, most recent first.
func (e *Engine) PlayerMatches(ctx context.Context, player string, limit int) ([]*Match, error) {
	name := strings.TrimSpace(player)
	if name == "" {
		return nil, &ValidationError{Field: "playerName", Message: "playerName is required"}
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	matches, err := e.store.ListPlayerMatches(ctx, name, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: player matches: %w", ErrStoreUnavailable, err)
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Stats returns the current matchmaking counters.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	return e.stats.Snapshot(ctx)
}

// ExpireLobbies cancels waiting lobbies created more than olderThan ago.
// Lobbies claimed or cancelled concurrently are skipped.
func (e *Engine) ExpireLobbies(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := e.timestamp().Add(-olderThan)

	var stale []*Match
	for offset := 0; ; offset += e.scanPage {
		ids, err := e.store.ListWaiting(ctx, offset, e.scanPage)
		if err != nil {
			return 0, fmt.Errorf("%w: list lobbies: %w", ErrStoreUnavailable, err)
		}
		reachedFresh := false
		for _, id := range ids {
			m, err := e.store.GetMatch(ctx, id)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return 0, fmt.Errorf("%w: get lobby: %w", ErrStoreUnavailable, err)
			}
			if !m.CreatedAt.Before(cutoff) {
				reachedFresh = true
				break
			}
			if m.State == StateWaiting {
				stale = append(stale, m)
			}
		}
		if reachedFresh || len(ids) < e.scanPage {
			break
		}
	}

	expired := 0
	for _, m := range stale {
		next := e.cancelled(m, CancelReasonExpired)
		err := e.store.UpdateMatch(ctx, next, m.Version)
		if errors.Is(err, ErrClaimConflict) {
			continue
		}
		if err != nil {
			return expired, fmt.Errorf("%w: expire lobby %s: %w", ErrStoreUnavailable, m.ID, err)
		}
		expired++
		e.metrics.Expirations.Inc()
		e.notify(ctx, Event{Type: EventMatchExpired, Match: next})
	}

	if expired > 0 {
		e.logger.Info().Int("expired", expired).Dur("older_than", olderThan).Msg("expired stale lobbies")
	}
	return expired, nil
}

// oldestEligible walks the lobby queue oldest-first and returns the first
// waiting match not created by player.
func (e *Engine) oldestEligible(ctx context.Context, player string) (*Match, error) {
	for offset := 0; ; offset += e.scanPage {
		ids, err := e.store.ListWaiting(ctx, offset, e.scanPage)
		if err != nil {
			return nil, fmt.Errorf("list lobbies: %w", err)
		}
		for _, id := range ids {
			m, err := e.store.GetMatch(ctx, id)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("get lobby %s: %w", id, err)
			}
			if m.State != StateWaiting || m.Creator.PlayerName == player {
				continue
			}
			return m, nil
		}
		if len(ids) < e.scanPage {
			return nil, nil
		}
	}
}

func (e *Engine) claim(ctx context.Context, target *Match, entry Participant) (*Outcome, error) {
	res := Resolve(target.Creator, entry)
	resolvedAt := e.timestamp()

	next := target.Clone()
	next.State = StateCompleted
	next.Opponent = &entry
	next.Winner = res.Winner
	next.Loser = res.Loser
	next.ResolvedAt = &resolvedAt
	next.Version = target.Version + 1

	if err := e.store.UpdateMatch(ctx, next, target.Version); err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("match_id", next.ID.String()).
		Str("winner", res.Winner).
		Str("loser", res.Loser).
		Int("winner_score", res.WinnerScore).
		Int("loser_score", res.LoserScore).
		Bool("tie", res.Tie).
		Msg("match resolved")

	return &Outcome{State: StateCompleted, Match: next, Resolution: &res}, nil
}

func (e *Engine) openLobby(ctx context.Context, entry Participant) (*Outcome, error) {
	m := &Match{
		ID:        uuid.New(),
		State:     StateWaiting,
		Creator:   entry,
		Version:   1,
		CreatedAt: entry.SubmittedAt,
	}
	if err := e.store.CreateMatch(ctx, m); err != nil {
		return nil, e.failSubmission(fmt.Errorf("create lobby: %w", err))
	}

	e.metrics.Submissions.WithLabelValues(string(StateWaiting)).Inc()
	e.logger.Info().
		Str("match_id", m.ID.String()).
		Str("player", entry.PlayerName).
		Int("score", entry.Score).
		Msg("lobby opened")
	e.notify(ctx, Event{Type: EventMatchCreated, Match: m})

	return &Outcome{State: StateWaiting, Match: m}, nil
}

func (e *Engine) load(ctx context.Context, matchID uuid.UUID) (*Match, error) {
	m, err := e.store.GetMatch(ctx, matchID)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("match %s: %w", matchID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get match %s: %w", ErrStoreUnavailable, matchID, err)
	}
	return m, nil
}

func (e *Engine) cancelled(m *Match, reason string) *Match {
	at := e.timestamp()
	next := m.Clone()
	next.State = StateCancelled
	next.CancelReason = reason
	next.CancelledAt = &at
	next.Version = m.Version + 1
	return next
}

func (e *Engine) failSubmission(err error) error {
	e.metrics.Submissions.WithLabelValues("error").Inc()
	e.logger.Error().Err(err).Msg("score submission failed")
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

func (e *Engine) notify(ctx context.Context, evt Event) {
	if err := e.notifier.Notify(ctx, evt); err != nil {
		e.logger.Warn().Err(err).Str("event", evt.Type).Str("match_id", evt.Match.ID.String()).Msg("match event not delivered")
	}
}

// timestamp is truncated to microseconds so every backend round-trips it exactly.
func (e *Engine) timestamp() time.Time {
	return e.now().UTC().Truncate(time.Microsecond)
}

// Resolve compares two scores. The strictly higher score wins; on a tie the
// lobby creator wins.
func Resolve(creator, opponent Participant) Resolution {
	if opponent.Score > creator.Score {
		return Resolution{
			Winner:      opponent.PlayerName,
			Loser:       creator.PlayerName,
			WinnerScore: opponent.Score,
			LoserScore:  creator.Score,
		}
	}
	return Resolution{
		Winner:      creator.PlayerName,
		Loser:       opponent.PlayerName,
		WinnerScore: creator.Score,
		LoserScore:  opponent.Score,
		Tie:         creator.Score == opponent.Score,
	}
}

func (s Submission) participant(at time.Time) (Participant, error) {
	name := strings.TrimSpace(s.PlayerName)
	if name == "" {
		return Participant{}, &ValidationError{Field: "playerName", Message: "playerName is required"}
	}
	if !utf8.ValidString(name) {
		return Participant{}, &ValidationError{Field: "playerName", Message: "playerName must be valid UTF-8"}
	}
	if utf8.RuneCountInString(name) > MaxPlayerNameLength {
		return Participant{}, &ValidationError{
			Field:   "playerName",
			Message: fmt.Sprintf("playerName must be at most %d characters", MaxPlayerNameLength),
		}
	}
	if s.Score < 0 {
		return Participant{}, &ValidationError{Field: "score", Message: "score must be a non-negative integer"}
	}
	if s.Score > MaxScore {
		return Participant{}, &ValidationError{Field: "score", Message: fmt.Sprintf("score must be at most %d", MaxScore)}
	}
	if s.Level < MinLevel {
		return Participant{}, &ValidationError{Field: "level", Message: "level must be a positive integer"}
	}
	if s.Level > MaxLevel {
		return Participant{}, &ValidationError{Field: "level", Message: fmt.Sprintf("level must be at most %d", MaxLevel)}
	}
	return Participant{PlayerName: name, Score: s.Score, Level: s.Level, SubmittedAt: at}, nil
}
