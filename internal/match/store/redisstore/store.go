package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gokatarajesh/score-duel/internal/match"
)

const defaultPrefix = "mm"

// Store persists matches in Redis so every service instance shares one lobby queue.
//
// Layout:
//
//	<prefix>:match:<id>      JSON match record
//	<prefix>:lobby           ZSET of waiting ids scored by createdAt (µs)
//	<prefix>:player:<name>   ZSET of match ids scored by join time (µs)
//	<prefix>:players         SET of every player name seen
//	<prefix>:matches:total   all-time match counter
type Store struct {
	client *redis.Client
	prefix string
}

var _ match.Store = (*Store)(nil)

// Options configures the Redis store.
type Options struct {
	KeyPrefix string
}

// New creates a Redis-backed match store.
func New(client *redis.Client, opts Options) *Store {
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// CreateMatch writes the record, enqueues the lobby and indexes the creator in one MULTI/EXEC.
func (s *Store) CreateMatch(ctx context.Context, m *match.Match) error {
	key := s.matchKey(m.ID)
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal match: %w", err)
	}

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("check match: %w", err)
		}
		if exists > 0 {
			return match.ErrClaimConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.Incr(ctx, s.totalKey())
			if m.State == match.StateWaiting {
				pipe.ZAdd(ctx, s.lobbyKey(), redis.Z{Score: micros(m.CreatedAt), Member: m.ID.String()})
			}
			s.indexPlayer(ctx, pipe, m.Creator, m.ID)
			if m.Opponent != nil {
				s.indexPlayer(ctx, pipe, *m.Opponent, m.ID)
			}
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return match.ErrClaimConflict
	}
	return err
}

func (s *Store) GetMatch(ctx context.Context, id uuid.UUID) (*match.Match, error) {
	return s.read(ctx, s.client, s.matchKey(id))
}

// UpdateMatch is a WATCH-guarded compare-and-set on the match version.
func (s *Store) UpdateMatch(ctx context.Context, next *match.Match, expectedVersion int64) error {
	key := s.matchKey(next.ID)
	stored := next.Clone()
	stored.Version = expectedVersion + 1

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := s.read(ctx, tx, key)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return match.ErrClaimConflict
		}

		data, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("marshal match: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			if current.State == match.StateWaiting && stored.State != match.StateWaiting {
				pipe.ZRem(ctx, s.lobbyKey(), stored.ID.String())
			}
			if current.Opponent == nil && stored.Opponent != nil {
				s.indexPlayer(ctx, pipe, *stored.Opponent, stored.ID)
			}
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return match.ErrClaimConflict
	}
	if err != nil {
		return err
	}

	next.Version = stored.Version
	return nil
}

func (s *Store) ListWaiting(ctx context.Context, offset, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		return nil, nil
	}
	members, err := s.client.ZRange(ctx, s.lobbyKey(), int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list lobby: %w", err)
	}
	return parseIDs(members)
}

func (s *Store) ListPlayerMatches(ctx context.Context, player string, limit int) ([]*match.Match, error) {
	if limit <= 0 {
		return nil, nil
	}
	members, err := s.client.ZRevRange(ctx, s.playerKey(player), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list player index: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	keys := make([]string, len(members))
	for i, member := range members {
		keys[i] = s.prefix + ":match:" + member
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load player matches: %w", err)
	}

	matches := make([]*match.Match, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var m match.Match
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("unmarshal match: %w", err)
		}
		matches = append(matches, &m)
	}
	return matches, nil
}

func (s *Store) Counts(ctx context.Context) (match.Stats, error) {
	pipe := s.client.Pipeline()
	lobby := pipe.ZCard(ctx, s.lobbyKey())
	total := pipe.Get(ctx, s.totalKey())
	players := pipe.SCard(ctx, s.playersKey())
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return match.Stats{}, fmt.Errorf("read counters: %w", err)
	}

	totalMatches, err := total.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return match.Stats{}, fmt.Errorf("parse match counter: %w", err)
	}
	return match.Stats{
		OpenLobbies:   lobby.Val(),
		TotalMatches:  totalMatches,
		ActivePlayers: players.Val(),
	}, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *Store) read(ctx context.Context, g getter, key string) (*match.Match, error) {
	data, err := g.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, match.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get match: %w", err)
	}

	var m match.Match
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal match: %w", err)
	}
	return &m, nil
}

func (s *Store) indexPlayer(ctx context.Context, pipe redis.Pipeliner, p match.Participant, id uuid.UUID) {
	pipe.ZAdd(ctx, s.playerKey(p.PlayerName), redis.Z{Score: micros(p.SubmittedAt), Member: id.String()})
	pipe.SAdd(ctx, s.playersKey(), p.PlayerName)
}

func (s *Store) matchKey(id uuid.UUID) string { return s.prefix + ":match:" + id.String() }
func (s *Store) lobbyKey() string { return s.prefix + ":lobby" }
func (s *Store) playerKey(name string) string { return s.prefix + ":player:" + name }
func (s *Store) playersKey() string { return s.prefix + ":players" }
func (s *Store) totalKey() string { return s.prefix + ":matches:total" }

// micros keeps scores exact in a float64 (µs since epoch stays below 2^53).
func micros(t time.Time) float64 {
	return float64(t.UnixMicro())
}

func parseIDs(members []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(members))
	for _, member := range members {
		id, err := uuid.Parse(member)
		if err != nil {
			return nil, fmt.Errorf("parse lobby member %q: %w", member, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
