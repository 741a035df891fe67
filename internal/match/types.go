package match

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a match.
type State string

// Match lifecycle states.
const (
	StateWaiting   State = "waiting"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further transition is allowed from s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// Cancel reasons recorded on cancelled matches.
const (
	CancelReasonCreator = "creator"
	CancelReasonExpired = "expired"
)

// Validation limits for submissions. Scores and levels must fit a 32-bit column.
const (
	MaxPlayerNameLength = 64
	MinLevel            = 1
	MaxLevel            = math.MaxInt32
	MaxScore            = math.MaxInt32
)

// Participant is one side of a match: who submitted which score at which level.
type Participant struct {
	PlayerName  string    `json:"playerName"`
	Score       int       `json:"score"`
	Level       int       `json:"level"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Match pairs a lobby creator with (eventually) an opponent.
type Match struct {
	ID           uuid.UUID    `json:"id"`
	State        State        `json:"state"`
	Creator      Participant  `json:"creator"`
	Opponent     *Participant `json:"opponent,omitempty"`
	Winner       string       `json:"winner,omitempty"`
	Loser        string       `json:"loser,omitempty"`
	CancelReason string       `json:"cancelReason,omitempty"`
	Version      int64        `json:"version"`
	CreatedAt    time.Time    `json:"createdAt"`
	ResolvedAt   *time.Time   `json:"resolvedAt,omitempty"`
	CancelledAt  *time.Time   `json:"cancelledAt,omitempty"`
}

// Clone returns a deep copy so callers never share pointers with a store.
func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	c := *m
	if m.Opponent != nil {
		opp := *m.Opponent
		c.Opponent = &opp
	}
	if m.ResolvedAt != nil {
		t := *m.ResolvedAt
		c.ResolvedAt = &t
	}
	if m.CancelledAt != nil {
		t := *m.CancelledAt
		c.CancelledAt = &t
	}
	return &c
}

// Players lists the names participating in the match, creator first.
func (m *Match) Players() []string {
	if m.Opponent == nil {
		return []string{m.Creator.PlayerName}
	}
	return []string{m.Creator.PlayerName, m.Opponent.PlayerName}
}

// Resolution describes the outcome of a paired match.
type Resolution struct {
	Winner      string `json:"winner"`
	Loser       string `json:"loser"`
	WinnerScore int    `json:"winnerScore"`
	LoserScore  int    `json:"loserScore"`
	Tie         bool   `json:"tie,omitempty"`
}

// Submission is a single score report entering the engine.
type Submission struct {
	PlayerName string
	Score      int
	Level      int
}

// Outcome is what SubmitScore returns: either a fresh lobby or a resolved match.
type Outcome struct {
	State      State       `json:"state"`
	Match      *Match      `json:"match"`
	Resolution *Resolution `json:"resolution,omitempty"`
}

// Stats is an eventually-consistent snapshot of matchmaking counters.
type Stats struct {
	OpenLobbies   int64 `json:"openLobbies"`
	TotalMatches  int64 `json:"totalMatches"`
	ActivePlayers int64 `json:"activePlayers"`
}

// SubmitScoreRequest is the HTTP payload for POST /api/score.
type SubmitScoreRequest struct {
	PlayerName string `json:"playerName"`
	Score      *int   `json:"score"`
	Level      *int   `json:"level"`
}

// CancelMatchRequest is the HTTP payload for cancelling a lobby.
type CancelMatchRequest struct {
	PlayerName string `json:"playerName"`
}
