package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/score-duel/internal/match"
)

type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) PlayerMatches(ctx context.Context, player string, limit int) ([]*match.Match, error) {
	args := m.Called(ctx, player, limit)
	matches, _ := args.Get(0).([]*match.Match)
	return matches, args.Error(1)
}

func (m *mockEngine) Stats(ctx context.Context) (match.Stats, error) {
	args := m.Called(ctx)
	return args.Get(0).(match.Stats), args.Error(1)
}

func (m *mockEngine) CancelMatch(ctx context.Context, matchID uuid.UUID, requestingPlayer string) (*match.Match, error) {
	args := m.Called(ctx, matchID, requestingPlayer)
	m2, _ := args.Get(0).(*match.Match)
	return m2, args.Error(1)
}

func newTestGateway(engine *mockEngine) *Gateway {
	return NewGateway(engine, Options{}, zerolog.Nop())
}

func TestHandleIgnoresPlainText(t *testing.T) {
	engine := new(mockEngine)
	reply, err := newTestGateway(engine).Handle(context.Background(), "alice", "good game everyone")
	require.NoError(t, err)
	assert.Empty(t, reply)
	engine.AssertExpectations(t)
}

func TestHandleUnknownCommand(t *testing.T) {
	reply, err := newTestGateway(new(mockEngine)).Handle(context.Background(), "alice", "!dance")
	require.NoError(t, err)
	assert.Equal(t, "Unknown command !dance. Try !help.", reply)
}

func TestHandleHelp(t *testing.T) {
	reply, err := newTestGateway(new(mockEngine)).Handle(context.Background(), "alice", "!help")
	require.NoError(t, err)
	assert.Contains(t, reply, "!matches <playerName>")
	assert.Contains(t, reply, "!cancel <matchId>")
}

func TestHandleStats(t *testing.T) {
	engine := new(mockEngine)
	engine.On("Stats", mock.Anything).Return(match.Stats{OpenLobbies: 2, TotalMatches: 9, ActivePlayers: 4}, nil)

	reply, err := newTestGateway(engine).Handle(context.Background(), "alice", "!stats")
	require.NoError(t, err)
	assert.Equal(t, "Open lobbies: 2 | Total matches: 9 | Active players: 4", reply)
}

func TestHandleMatchesUsesHistoryLimit(t *testing.T) {
	engine := new(mockEngine)
	now := time.Now().UTC()
	completed := &match.Match{
		ID:       uuid.MustParse("11111111-2222-3333-4444-555555555555"),
		State:    match.StateCompleted,
		Creator:  match.Participant{PlayerName: "bob", Score: 90, Level: 1, SubmittedAt: now},
		Opponent: &match.Participant{PlayerName: "alice", Score: 120, Level: 1, SubmittedAt: now},
		Winner:   "alice",
		Loser:    "bob",
	}
	waiting := &match.Match{
		ID:      uuid.MustParse("aaaaaaaa-2222-3333-4444-555555555555"),
		State:   match.StateWaiting,
		Creator: match.Participant{PlayerName: "alice", Score: 70, Level: 2, SubmittedAt: now},
	}
	engine.On("PlayerMatches", mock.Anything, "alice", 5).Return([]*match.Match{waiting, completed}, nil)

	reply, err := newTestGateway(engine).Handle(context.Background(), "carol", "!matches alice")
	require.NoError(t, err)
	assert.Equal(t, "Last 2 match(es) for alice:\n"+
		"- aaaaaaaa waiting for an opponent (score 70, level 2)\n"+
		"- 11111111 beat bob 120-90", reply)
}

func TestHandleMatchesDefaultsToSender(t *testing.T) {
	engine := new(mockEngine)
	engine.On("PlayerMatches", mock.Anything, "dave", 5).Return(nil, nil)

	reply, err := newTestGateway(engine).Handle(context.Background(), "dave", "!matches")
	require.NoError(t, err)
	assert.Equal(t, "No matches found for dave.", reply)
}

func TestHandleCancelUsesSenderAsRequester(t *testing.T) {
	engine := new(mockEngine)
	id := uuid.New()
	engine.On("CancelMatch", mock.Anything, id, "alice").Return(&match.Match{
		ID:      id,
		State:   match.StateCancelled,
		Creator: match.Participant{PlayerName: "alice", Score: 40},
	}, nil)

	reply, err := newTestGateway(engine).Handle(context.Background(), "alice", "!cancel "+id.String())
	require.NoError(t, err)
	assert.Contains(t, reply, "Cancelled lobby "+id.String())
	engine.AssertExpectations(t)
}

func TestHandleCancelRejections(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not found", match.ErrNotFound, "Match not found."},
		{"not creator", match.ErrNotAuthorized, "Only the player who opened the lobby can cancel it."},
		{"resolved", match.ErrAlreadyResolved, "That match is already resolved."},
		{"cancelled", match.ErrAlreadyCancelled, "That match is already cancelled."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := new(mockEngine)
			engine.On("CancelMatch", mock.Anything, id, "bob").Return(nil, tt.err)

			reply, err := newTestGateway(engine).Handle(context.Background(), "bob", "!cancel "+id.String())
			require.NoError(t, err)
			assert.Equal(t, tt.want, reply)
		})
	}
}

func TestHandleCancelBadID(t *testing.T) {
	reply, err := newTestGateway(new(mockEngine)).Handle(context.Background(), "bob", "!cancel nope")
	require.NoError(t, err)
	assert.Equal(t, `"nope" is not a valid match id.`, reply)
}

func TestHandleStoreFailureIsReturned(t *testing.T) {
	engine := new(mockEngine)
	engine.On("Stats", mock.Anything).Return(match.Stats{}, errors.Join(match.ErrStoreUnavailable, errors.New("dial tcp")))

	_, err := newTestGateway(engine).Handle(context.Background(), "alice", "!stats")
	assert.ErrorIs(t, err, match.ErrStoreUnavailable)
}

func TestCustomPrefix(t *testing.T) {
	engine := new(mockEngine)
	engine.On("Stats", mock.Anything).Return(match.Stats{}, nil)
	gw := NewGateway(engine, Options{Prefix: "/"}, zerolog.Nop())

	reply, err := gw.Handle(context.Background(), "alice", "!stats")
	require.NoError(t, err)
	assert.Empty(t, reply)

	reply, err = gw.Handle(context.Background(), "alice", "/STATS")
	require.NoError(t, err)
	assert.Contains(t, reply, "Open lobbies: 0")
}
