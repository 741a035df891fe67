package bot

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	httperrors "github.com/gokatarajesh/score-duel/pkg/http/errors"
)

type commandHandler interface {
	Handle(ctx context.Context, sender, text string) (string, error)
}

// CommandRequest is the webhook payload for POST /api/bot/command.
type CommandRequest struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// CommandResponse carries the reply; an empty reply means the message was not a command.
type CommandResponse struct {
	Reply string `json:"reply"`
}

// HTTPHandler exposes the gateway as a chat webhook.
type HTTPHandler struct {
	gateway commandHandler
	logger  zerolog.Logger
}

// NewHTTPHandler creates the bot webhook handler.
func NewHTTPHandler(gateway commandHandler, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		gateway: gateway,
		logger:  logger.With().Str("component", "bot_http").Logger(),
	}
}

// Register mounts the webhook route on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/bot/command", h.Command)
}

// Command handles POST /api/bot/command
func (h *HTTPHandler) Command(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	if req.Sender == "" {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "sender is required", "sender")
		return
	}

	reply, err := h.gateway.Handle(r.Context(), req.Sender, req.Text)
	if err != nil {
		h.logger.Error().Err(err).Str("sender", req.Sender).Msg("bot command failed")
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeCommandFailed, "Command could not be completed, please retry")
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, CommandResponse{Reply: reply})
}
