package ws

import "encoding/json"

// MessageType constants for the match feed protocol.
const (
	// Client -> Server
	TypePing = "ping"

	// Server -> Client
	TypeWelcome    = "welcome"
	TypeMatchEvent = "match_event"
	TypePong       = "pong"
	TypeError      = "error"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// NewMessage marshals payload into a typed message.
func NewMessage(msgType string, payload interface{}) (Message, error) {
	if payload == nil {
		return Message{Type: msgType}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: msgType, Payload: raw}, nil
}

type WelcomePayload struct {
	PlayerName string `json:"player_name"`
}

// MatchEventPayload carries a match state change. Match and Resolution are the
// JSON documents served by the REST API.
type MatchEventPayload struct {
	Event      string          `json:"event"`
	MatchID    string          `json:"match_id"`
	Match      json.RawMessage `json:"match"`
	Resolution json.RawMessage `json:"resolution,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
