package match

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	httperrors "github.com/gokatarajesh/score-duel/pkg/http/errors"
)

type matchmaker interface {
	SubmitScore(ctx context.Context, sub Submission) (*Outcome, error)
	CancelMatch(ctx context.Context, matchID uuid.UUID, requestingPlayer string) (*Match, error)
	GetMatch(ctx context.Context, matchID uuid.UUID) (*Match, error)
	PlayerMatches(ctx context.Context, player string, limit int) ([]*Match, error)
	Stats(ctx context.Context) (Stats, error)
}

// HTTPHandlers provides REST endpoints for matchmaking operations.
type HTTPHandlers struct {
	service matchmaker
	logger  zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers for matchmaking endpoints.
func NewHTTPHandlers(service matchmaker, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		service: service,
		logger:  logger.With().Str("component", "match_http").Logger(),
	}
}

// Register mounts the matchmaking routes on mux.
func (h *HTTPHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/score", h.SubmitScore)
	mux.HandleFunc("GET /api/matchmaking/stats", h.Stats)
	mux.HandleFunc("GET /api/matchmaking/player/{name}/matches", h.PlayerMatches)
	mux.HandleFunc("GET /api/matchmaking/matches/{id}", h.GetMatch)
	mux.HandleFunc("POST /api/matchmaking/matches/{id}/cancel", h.CancelMatch)
}

// SubmitScore handles POST /api/score
func (h *HTTPHandlers) SubmitScore(w http.ResponseWriter, r *http.Request) {
	var req SubmitScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	if err := validateSubmitScoreRequest(&req); err != nil {
		h.respondError(w, err)
		return
	}

	outcome, err := h.service.SubmitScore(r.Context(), Submission{
		PlayerName: req.PlayerName,
		Score:      *req.Score,
		Level:      *req.Level,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("player", req.PlayerName).Msg("score submission failed")
		h.respondError(w, err)
		return
	}

	result := map[string]interface{}{
		"success": true,
		"state":   outcome.State,
		"match":   outcome.Match,
	}
	if outcome.Resolution != nil {
		result["resolution"] = outcome.Resolution
	}
	httperrors.RespondJSON(w, http.StatusOK, map[string]interface{}{"matchmaking": result})
}

// Stats handles GET /api/matchmaking/stats
func (h *HTTPHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load stats")
		h.respondError(w, err)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, map[string]interface{}{"stats": stats})
}

// PlayerMatches handles GET /api/matchmaking/player/{name}/matches?limit=N
func (h *HTTPHandlers) PlayerMatches(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "limit must be a positive integer", "limit")
			return
		}
		limit = parsed
	}

	matches, err := h.service.PlayerMatches(r.Context(), name, limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if matches == nil {
		matches = []*Match{}
	}

	httperrors.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(matches),
		"matches": matches,
	})
}

// GetMatch handles GET /api/matchmaking/matches/{id}
func (h *HTTPHandlers) GetMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidMatchID, "Invalid match id")
		return
	}

	m, err := h.service.GetMatch(r.Context(), matchID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, map[string]interface{}{"match": m})
}

// CancelMatch handles POST /api/matchmaking/matches/{id}/cancel
func (h *HTTPHandlers) CancelMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidMatchID, "Invalid match id")
		return
	}

	var req CancelMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	m, err := h.service.CancelMatch(r.Context(), matchID, req.PlayerName)
	if err != nil {
		h.logger.Warn().Err(err).Str("match_id", matchID.String()).Str("player", req.PlayerName).Msg("cancel rejected")
		h.respondError(w, err)
		return
	}

	httperrors.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"match":   m,
	})
}

// validateSubmitScoreRequest catches fields missing from the payload; value checks live in the engine.
func validateSubmitScoreRequest(req *SubmitScoreRequest) error {
	if req.PlayerName == "" {
		return &ValidationError{Field: "playerName", Message: "playerName is required"}
	}
	if req.Score == nil {
		return &ValidationError{Field: "score", Message: "score is required"}
	}
	if req.Level == nil {
		return &ValidationError{Field: "level", Message: "level is required"}
	}
	return nil
}

func (h *HTTPHandlers) respondError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, verr.Message, verr.Field)
	case errors.Is(err, ErrNotFound):
		httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, "Match not found")
	case errors.Is(err, ErrNotAuthorized):
		httperrors.RespondForbidden(w, httperrors.ErrCodeNotAuthorized, err.Error())
	case errors.Is(err, ErrAlreadyResolved):
		httperrors.RespondConflict(w, httperrors.ErrCodeAlreadyResolved, "Match already resolved")
	case errors.Is(err, ErrAlreadyCancelled):
		httperrors.RespondConflict(w, httperrors.ErrCodeAlreadyCancelled, "Match already cancelled")
	case errors.Is(err, ErrStoreUnavailable):
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeServiceUnavailable, "Matchmaking temporarily unavailable, please resubmit")
	default:
		httperrors.RespondInternalError(w, "Unexpected error")
	}
}
