package match

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMatchmaker struct {
	mock.Mock
}

func (m *mockMatchmaker) SubmitScore(ctx context.Context, sub Submission) (*Outcome, error) {
	args := m.Called(ctx, sub)
	out, _ := args.Get(0).(*Outcome)
	return out, args.Error(1)
}

func (m *mockMatchmaker) CancelMatch(ctx context.Context, matchID uuid.UUID, requestingPlayer string) (*Match, error) {
	args := m.Called(ctx, matchID, requestingPlayer)
	out, _ := args.Get(0).(*Match)
	return out, args.Error(1)
}

func (m *mockMatchmaker) GetMatch(ctx context.Context, matchID uuid.UUID) (*Match, error) {
	args := m.Called(ctx, matchID)
	out, _ := args.Get(0).(*Match)
	return out, args.Error(1)
}

func (m *mockMatchmaker) PlayerMatches(ctx context.Context, player string, limit int) ([]*Match, error) {
	args := m.Called(ctx, player, limit)
	out, _ := args.Get(0).([]*Match)
	return out, args.Error(1)
}

func (m *mockMatchmaker) Stats(ctx context.Context) (Stats, error) {
	args := m.Called(ctx)
	return args.Get(0).(Stats), args.Error(1)
}

func do(t *testing.T, svc matchmaker, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	NewHTTPHandlers(svc, zerolog.Nop()).Register(mux)

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func sampleLobby() *Match {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &Match{
		ID:        uuid.New(),
		State:     StateWaiting,
		Creator:   Participant{PlayerName: "alice", Score: 100, Level: 2, SubmittedAt: now},
		Version:   1,
		CreatedAt: now,
	}
}

func TestSubmitScoreHandlerWaiting(t *testing.T) {
	svc := new(mockMatchmaker)
	lobby := sampleLobby()
	svc.On("SubmitScore", mock.Anything, Submission{PlayerName: "alice", Score: 100, Level: 2}).
		Return(&Outcome{State: StateWaiting, Match: lobby}, nil)

	rec := do(t, svc, http.MethodPost, "/api/score", `{"playerName":"alice","score":100,"level":2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)["matchmaking"].(map[string]interface{})
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "waiting", body["state"])
	assert.NotContains(t, body, "resolution")
	assert.Equal(t, lobby.ID.String(), body["match"].(map[string]interface{})["id"])
}

func TestSubmitScoreHandlerCompleted(t *testing.T) {
	svc := new(mockMatchmaker)
	m := sampleLobby()
	m.State = StateCompleted
	res := &Resolution{Winner: "alice", Loser: "bob", WinnerScore: 100, LoserScore: 0}
	svc.On("SubmitScore", mock.Anything, Submission{PlayerName: "bob", Score: 0, Level: 1}).
		Return(&Outcome{State: StateCompleted, Match: m, Resolution: res}, nil)

	rec := do(t, svc, http.MethodPost, "/api/score", `{"playerName":"bob","score":0,"level":1}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)["matchmaking"].(map[string]interface{})
	assert.Equal(t, "completed", body["state"])
	assert.Equal(t, "alice", body["resolution"].(map[string]interface{})["winner"])
}

func TestSubmitScoreHandlerValidation(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		code  string
		field string
	}{
		{"bad json", `{"playerName":`, "invalid_request", ""},
		{"missing name", `{"score":1,"level":1}`, "validation_failed", "playerName"},
		{"missing score", `{"playerName":"a","level":1}`, "validation_failed", "score"},
		{"missing level", `{"playerName":"a","score":1}`, "validation_failed", "level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockMatchmaker)
			rec := do(t, svc, http.MethodPost, "/api/score", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			body := decode(t, rec)
			assert.Equal(t, tt.code, body["error"])
			if tt.field != "" {
				assert.Equal(t, tt.field, body["field"])
			}
			svc.AssertNotCalled(t, "SubmitScore", mock.Anything, mock.Anything)
		})
	}
}

func TestSubmitScoreHandlerEngineErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &ValidationError{Field: "score", Message: "score must be a non-negative integer"}, http.StatusBadRequest, "validation_failed"},
		{"store down", fmt.Errorf("%w: dial tcp", ErrStoreUnavailable), http.StatusServiceUnavailable, "service_unavailable"},
		{"unexpected", fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockMatchmaker)
			svc.On("SubmitScore", mock.Anything, mock.Anything).Return(nil, tt.err)

			rec := do(t, svc, http.MethodPost, "/api/score", `{"playerName":"a","score":-1,"level":1}`)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decode(t, rec)["error"])
		})
	}
}

func TestStatsHandler(t *testing.T) {
	svc := new(mockMatchmaker)
	svc.On("Stats", mock.Anything).Return(Stats{OpenLobbies: 1, TotalMatches: 4, ActivePlayers: 5}, nil)

	rec := do(t, svc, http.MethodGet, "/api/matchmaking/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"stats":{"openLobbies":1,"totalMatches":4,"activePlayers":5}}`, rec.Body.String())
}

func TestPlayerMatchesHandler(t *testing.T) {
	svc := new(mockMatchmaker)
	svc.On("PlayerMatches", mock.Anything, "alice", 3).Return([]*Match{sampleLobby()}, nil)
	svc.On("PlayerMatches", mock.Anything, "bob", defaultHistoryLimit).Return(nil, nil)

	rec := do(t, svc, http.MethodGet, "/api/matchmaking/player/alice/matches?limit=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(1), body["count"])
	assert.Len(t, body["matches"], 1)

	rec = do(t, svc, http.MethodGet, "/api/matchmaking/player/bob/matches", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":0,"matches":[]}`, rec.Body.String())

	rec = do(t, svc, http.MethodGet, "/api/matchmaking/player/alice/matches?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "limit", decode(t, rec)["field"])
}

func TestGetMatchHandler(t *testing.T) {
	svc := new(mockMatchmaker)
	lobby := sampleLobby()
	missing := uuid.New()
	svc.On("GetMatch", mock.Anything, lobby.ID).Return(lobby, nil)
	svc.On("GetMatch", mock.Anything, missing).Return(nil, fmt.Errorf("match %s: %w", missing, ErrNotFound))

	rec := do(t, svc, http.MethodGet, "/api/matchmaking/matches/"+lobby.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "waiting", decode(t, rec)["match"].(map[string]interface{})["state"])

	rec = do(t, svc, http.MethodGet, "/api/matchmaking/matches/"+missing.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode(t, rec)["error"])

	rec = do(t, svc, http.MethodGet, "/api/matchmaking/matches/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_match_id", decode(t, rec)["error"])
}

func TestCancelMatchHandler(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name   string
		ret    *Match
		err    error
		status int
		code   string
	}{
		{"ok", &Match{ID: id, State: StateCancelled, CancelReason: CancelReasonCreator}, nil, http.StatusOK, ""},
		{"not creator", nil, ErrNotAuthorized, http.StatusForbidden, "not_authorized"},
		{"resolved", nil, ErrAlreadyResolved, http.StatusConflict, "already_resolved"},
		{"cancelled", nil, ErrAlreadyCancelled, http.StatusConflict, "already_cancelled"},
		{"missing", nil, ErrNotFound, http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockMatchmaker)
			svc.On("CancelMatch", mock.Anything, id, "alice").Return(tt.ret, tt.err)

			rec := do(t, svc, http.MethodPost, "/api/matchmaking/matches/"+id.String()+"/cancel", `{"playerName":"alice"}`)
			assert.Equal(t, tt.status, rec.Code)
			body := decode(t, rec)
			if tt.code == "" {
				assert.Equal(t, true, body["success"])
				assert.Equal(t, "cancelled", body["match"].(map[string]interface{})["state"])
				return
			}
			assert.Equal(t, tt.code, body["error"])
		})
	}
}
