package feed

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	httperrors "github.com/gokatarajesh/score-duel/pkg/http/errors"
	ws "github.com/gokatarajesh/score-duel/pkg/http/ws"
)

// Handler serves GET /ws/matches?player=NAME, streaming the player's match events.
type Handler struct {
	hub    *ws.Hub
	logger zerolog.Logger
}

// NewHandler creates the websocket feed handler.
func NewHandler(hub *ws.Hub, logger zerolog.Logger) *Handler {
	return &Handler{
		hub:    hub,
		logger: logger.With().Str("component", "feed_ws").Logger(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	player := strings.TrimSpace(r.URL.Query().Get("player"))
	if player == "" {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "player is required", "player")
		return
	}

	conn, err := ws.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	logger := h.logger.With().Str("player", player).Logger()
	client := ws.NewConnection(conn, logger)
	h.hub.RegisterConnection(player, client)
	go client.WritePump()

	if welcome, err := ws.NewMessage(ws.TypeWelcome, ws.WelcomePayload{PlayerName: player}); err == nil {
		_ = client.Send(welcome)
	}

	client.ReadPump(func(msg ws.Message) error {
		switch msg.Type {
		case ws.TypePing:
			return client.Send(ws.Message{Type: ws.TypePong, RequestID: msg.RequestID})
		default:
			reply, err := ws.NewMessage(ws.TypeError, ws.ErrorPayload{Code: "unsupported_message", Message: "Unsupported message type"})
			if err != nil {
				return err
			}
			reply.RequestID = msg.RequestID
			return client.Send(reply)
		}
	})
	h.hub.UnregisterConnection(player, client)
}
