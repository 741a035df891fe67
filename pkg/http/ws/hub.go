package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Upgrader handles WebSocket upgrades for the match feed.
var Upgrader = websocket.Upgrader{
	// TODO: restrict origins once the feed is served behind the public domain.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub tracks one feed connection per player and routes messages by player name.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*Connection // player name -> connection
	logger      zerolog.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		logger:      logger,
	}
}

// RegisterConnection adds a connection for a player, replacing any previous one.
func (h *Hub) RegisterConnection(player string, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, exists := h.connections[player]; exists && old != conn {
		old.Close()
	}

	h.connections[player] = conn
	h.logger.Info().Str("player", player).Msg("connection registered")
}

// UnregisterConnection removes conn if it is still the player's active connection.
func (h *Hub) UnregisterConnection(player string, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, exists := h.connections[player]
	if !exists || current != conn {
		conn.Close()
		return
	}
	current.Close()
	delete(h.connections, player)
	h.logger.Info().Str("player", player).Msg("connection unregistered")
}

// SendToPlayer delivers a message to a specific player.
func (h *Hub) SendToPlayer(player string, msg Message) error {
	h.mu.RLock()
	conn, exists := h.connections[player]
	h.mu.RUnlock()

	if !exists {
		return ErrConnectionNotFound
	}
	return conn.Send(msg)
}

// SendToPlayers delivers msg to every connected player in the list and returns the first error.
// Players without a connection are skipped.
func (h *Hub) SendToPlayers(players []string, msg Message) error {
	var firstErr error
	for _, player := range players {
		err := h.SendToPlayer(player, msg)
		if err == nil || err == ErrConnectionNotFound {
			continue
		}
		h.logger.Warn().Err(err).Str("player", player).Msg("send_failed")
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Connected reports whether the player has a live connection.
func (h *Hub) Connected(player string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, exists := h.connections[player]
	return exists
}

// Connection represents a WebSocket connection with send queue.
type Connection struct {
	conn   *websocket.Conn
	sendCh chan Message
	mu     sync.Mutex
	closed bool
	logger zerolog.Logger
}

// NewConnection wraps a WebSocket connection.
func NewConnection(conn *websocket.Conn, logger zerolog.Logger) *Connection {
	return &Connection{
		conn:   conn,
		sendCh: make(chan Message, 256),
		logger: logger,
	}
}

// Send queues a message for delivery.
func (c *Connection) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.sendCh <- msg:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close shuts down the send queue; WritePump then closes the socket.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.sendCh)
}

// WritePump sends queued messages and keepalive pings until the queue closes.
func (c *Connection) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.sendCh:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Warn().Err(err).Msg("write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump receives messages and calls the handler until the peer goes away.
func (c *Connection) ReadPump(handler func(Message) error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("read error")
			}
			return
		}

		if err := handler(msg); err != nil {
			c.logger.Warn().Err(err).Msg("message handler error")
		}
	}
}

var (
	ErrConnectionNotFound = &Error{Code: "connection_not_found", Message: "Player connection not found"}
	ErrConnectionClosed   = &Error{Code: "connection_closed", Message: "Connection is closed"}
	ErrSendQueueFull      = &Error{Code: "send_queue_full", Message: "Send queue is full"}
)

type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
