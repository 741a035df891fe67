package match

import (
	"context"

	"github.com/google/uuid"
)

// Store is the shared persistence every engine instance synchronizes through.
//
// UpdateMatch is the load-bearing primitive: it writes next only if the stored
// version still equals expectedVersion, and otherwise returns ErrClaimConflict.
// On success the stored version becomes expectedVersion+1, the match leaves the
// lobby queue once it is no longer waiting, and a newly set opponent is appended
// to their player index. CreateMatch enqueues the lobby and indexes the creator
// in the same atomic write.
type Store interface {
	CreateMatch(ctx context.Context, m *Match) error
	GetMatch(ctx context.Context, id uuid.UUID) (*Match, error)
	UpdateMatch(ctx context.Context, next *Match, expectedVersion int64) error
	ListWaiting(ctx context.Context, offset, limit int) ([]uuid.UUID, error)
	ListPlayerMatches(ctx context.Context, player string, limit int) ([]*Match, error)
	Counts(ctx context.Context) (Stats, error)
}

// Event types published after successful store writes.
const (
	EventMatchCreated   = "match_created"
	EventMatchResolved  = "match_resolved"
	EventMatchCancelled = "match_cancelled"
	EventMatchExpired   = "match_expired"
)

// Event is a match state change fanned out to interested players.
type Event struct {
	Type       string      `json:"type"`
	Match      *Match      `json:"match"`
	Resolution *Resolution `json:"resolution,omitempty"`
}

// Notifier receives match events. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, evt Event) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Event) error { return nil }
