package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/gokatarajesh/score-duel/internal/match"
)

// querier is the subset of pgx shared by pools and transactions.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type matchDB interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// MatchRepository is the Postgres-backed match store. The lobby queue is the
// set of rows in state 'waiting'; conditional updates compare the version column.
type MatchRepository struct {
	db matchDB
}

var _ match.Store = (*MatchRepository)(nil)

// NewMatchRepository constructs a new match repository.
func NewMatchRepository(db matchDB) *MatchRepository {
	return &MatchRepository{db: db}
}

const matchColumns = `match_id, state, version,
	creator_name, creator_score, creator_level, creator_submitted_at,
	opponent_name, opponent_score, opponent_level, opponent_submitted_at,
	winner, loser, cancel_reason, created_at, resolved_at, cancelled_at`

const (
	insertMatchSQL = `INSERT INTO matches (` + matchColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	insertPlayerMatchSQL = `INSERT INTO player_matches (player_name, match_id, joined_at)
	VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`

	selectMatchSQL = `SELECT ` + matchColumns + ` FROM matches WHERE match_id = $1`

	updateMatchSQL = `UPDATE matches SET
		state = $3, version = $4,
		opponent_name = $5, opponent_score = $6, opponent_level = $7, opponent_submitted_at = $8,
		winner = $9, loser = $10, cancel_reason = $11, resolved_at = $12, cancelled_at = $13
	WHERE match_id = $1 AND version = $2`

	matchExistsSQL = `SELECT EXISTS (SELECT 1 FROM matches WHERE match_id = $1)`

	listWaitingSQL = `SELECT match_id FROM matches WHERE state = 'waiting'
	ORDER BY created_at, match_id OFFSET $1 LIMIT $2`

	listPlayerMatchesSQL = `SELECT m.match_id, m.state, m.version,
		m.creator_name, m.creator_score, m.creator_level, m.creator_submitted_at,
		m.opponent_name, m.opponent_score, m.opponent_level, m.opponent_submitted_at,
		m.winner, m.loser, m.cancel_reason, m.created_at, m.resolved_at, m.cancelled_at
	FROM player_matches p JOIN matches m ON m.match_id = p.match_id
	WHERE p.player_name = $1
	ORDER BY p.joined_at DESC, p.match_id DESC
	LIMIT $2`

	countsSQL = `SELECT
		(SELECT count(*) FROM matches WHERE state = 'waiting'),
		(SELECT count(*) FROM matches),
		(SELECT count(DISTINCT player_name) FROM player_matches)`
)

// CreateMatch inserts the match row and its player index rows in one transaction.
func (r *MatchRepository) CreateMatch(ctx context.Context, m *match.Match) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertMatchSQL, insertArgs(m)...); err != nil {
			return fmt.Errorf("insert match: %w", err)
		}
		for _, p := range participants(m) {
			if _, err := tx.Exec(ctx, insertPlayerMatchSQL, p.PlayerName, m.ID, p.SubmittedAt); err != nil {
				return fmt.Errorf("index player %s: %w", p.PlayerName, err)
			}
		}
		return nil
	})
}

// GetMatch fetches a match by id.
func (r *MatchRepository) GetMatch(ctx context.Context, id uuid.UUID) (*match.Match, error) {
	m, err := scanMatch(r.db.QueryRow(ctx, selectMatchSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, match.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select match: %w", err)
	}
	return m, nil
}

// UpdateMatch writes next only while the stored version equals expectedVersion.
func (r *MatchRepository) UpdateMatch(ctx context.Context, next *match.Match, expectedVersion int64) error {
	newVersion := expectedVersion + 1

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, updateMatchSQL, updateArgs(next, expectedVersion, newVersion)...)
		if err != nil {
			return fmt.Errorf("update match: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, matchExistsSQL, next.ID).Scan(&exists); err != nil {
				return fmt.Errorf("check match: %w", err)
			}
			if !exists {
				return match.ErrNotFound
			}
			return match.ErrClaimConflict
		}

		if next.Opponent != nil {
			opp := next.Opponent
			if _, err := tx.Exec(ctx, insertPlayerMatchSQL, opp.PlayerName, next.ID, opp.SubmittedAt); err != nil {
				return fmt.Errorf("index player %s: %w", opp.PlayerName, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	next.Version = newVersion
	return nil
}

// ListWaiting returns waiting match ids, oldest first.
func (r *MatchRepository) ListWaiting(ctx context.Context, offset, limit int) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, listWaitingSQL, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list waiting: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scan waiting: %w", err)
	}
	return ids, nil
}

// ListPlayerMatches returns the player's matches, most recent first.
func (r *MatchRepository) ListPlayerMatches(ctx context.Context, player string, limit int) ([]*match.Match, error) {
	rows, err := r.db.Query(ctx, listPlayerMatchesSQL, player, limit)
	if err != nil {
		return nil, fmt.Errorf("list player matches: %w", err)
	}
	matches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*match.Match, error) {
		return scanMatch(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan player matches: %w", err)
	}
	return matches, nil
}

// Counts returns lobby, match and player totals.
func (r *MatchRepository) Counts(ctx context.Context) (match.Stats, error) {
	var stats match.Stats
	err := r.db.QueryRow(ctx, countsSQL).Scan(&stats.OpenLobbies, &stats.TotalMatches, &stats.ActivePlayers)
	if err != nil {
		return match.Stats{}, fmt.Errorf("count matches: %w", err)
	}
	return stats, nil
}

func participants(m *match.Match) []match.Participant {
	out := []match.Participant{m.Creator}
	if m.Opponent != nil {
		out = append(out, *m.Opponent)
	}
	return out
}

func insertArgs(m *match.Match) []any {
	opp := opponentColumns(m.Opponent)
	return []any{
		m.ID, string(m.State), m.Version,
		m.Creator.PlayerName, int32(m.Creator.Score), int32(m.Creator.Level), m.Creator.SubmittedAt,
		opp.name, opp.score, opp.level, opp.submittedAt,
		text(m.Winner), text(m.Loser), text(m.CancelReason),
		m.CreatedAt, timestamptz(m.ResolvedAt), timestamptz(m.CancelledAt),
	}
}

func updateArgs(m *match.Match, expectedVersion, newVersion int64) []any {
	opp := opponentColumns(m.Opponent)
	return []any{
		m.ID, expectedVersion,
		string(m.State), newVersion,
		opp.name, opp.score, opp.level, opp.submittedAt,
		text(m.Winner), text(m.Loser), text(m.CancelReason),
		timestamptz(m.ResolvedAt), timestamptz(m.CancelledAt),
	}
}

type nullableParticipant struct {
	name        pgtype.Text
	score       pgtype.Int4
	level       pgtype.Int4
	submittedAt pgtype.Timestamptz
}

func opponentColumns(p *match.Participant) nullableParticipant {
	if p == nil {
		return nullableParticipant{}
	}
	return nullableParticipant{
		name:        pgtype.Text{String: p.PlayerName, Valid: true},
		score:       pgtype.Int4{Int32: int32(p.Score), Valid: true},
		level:       pgtype.Int4{Int32: int32(p.Level), Valid: true},
		submittedAt: pgtype.Timestamptz{Time: p.SubmittedAt, Valid: true},
	}
}

func scanMatch(row pgx.Row) (*match.Match, error) {
	var (
		m                           match.Match
		state                       string
		creatorScore, creatorLevel  int32
		opp                         nullableParticipant
		winner, loser, cancelReason pgtype.Text
		resolvedAt, cancelledAt     pgtype.Timestamptz
	)
	err := row.Scan(
		&m.ID, &state, &m.Version,
		&m.Creator.PlayerName, &creatorScore, &creatorLevel, &m.Creator.SubmittedAt,
		&opp.name, &opp.score, &opp.level, &opp.submittedAt,
		&winner, &loser, &cancelReason, &m.CreatedAt, &resolvedAt, &cancelledAt,
	)
	if err != nil {
		return nil, err
	}

	m.State = match.State(state)
	m.Creator.Score = int(creatorScore)
	m.Creator.Level = int(creatorLevel)
	m.Creator.SubmittedAt = m.Creator.SubmittedAt.UTC()
	m.CreatedAt = m.CreatedAt.UTC()
	if opp.name.Valid {
		m.Opponent = &match.Participant{
			PlayerName:  opp.name.String,
			Score:       int(opp.score.Int32),
			Level:       int(opp.level.Int32),
			SubmittedAt: opp.submittedAt.Time.UTC(),
		}
	}
	m.Winner = winner.String
	m.Loser = loser.String
	m.CancelReason = cancelReason.String
	m.ResolvedAt = timePtr(resolvedAt)
	m.CancelledAt = timePtr(cancelledAt)
	return &m, nil
}

func text(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func timestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time.UTC()
	return &t
}
