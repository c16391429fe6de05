package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/digihome/digihome-core/internal/infrastructure/config"
	"github.com/digihome/digihome-core/internal/infrastructure/logging"
)

// WebSocket message types a client may send. Everything the server sends
// unprompted is a raw telemetry object.
const (
	WSTypePing  = "ping"
	WSTypePong  = "pong"
	WSTypeError = "error"

	// defaultSendBuffer is the per-session outbound queue length.
	defaultSendBuffer = 64
)

// WSMessage is a control message exchanged with a client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// wsSession is one account's live connection. It implements
// realtime.Session: Send never blocks and drops when the queue is full.
type wsSession struct {
	conn      *websocket.Conn
	accountID string
	logger    *logging.Logger

	mu     sync.RWMutex
	send   chan []byte
	closed bool
}

func newWSSession(conn *websocket.Conn, accountID string, buffer int, logger *logging.Logger) *wsSession {
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	return &wsSession{
		conn:      conn,
		accountID: accountID,
		logger:    logger,
		send:      make(chan []byte, buffer),
	}
}

// Send queues payload. It returns false if the session is closed or its
// queue is full.
func (c *wsSession) Send(payload []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Open reports whether the session still accepts payloads.
func (c *wsSession) Open() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

// close stops accepting payloads and ends the write pump. Safe to call twice.
func (c *wsSession) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// handleWebSocket upgrades an authenticated request and registers the
// session as the account's live connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	accountID := accountIDFromContext(r.Context())
	if accountID == "" {
		writeUnauthorized(w, "valid bearer token required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	session := newWSSession(conn, accountID, s.wsCfg.SendBuffer, s.logger)
	s.router.Register(accountID, session)

	go session.writePump(s.wsCfg)
	go s.readPump(session)
}

// readPump reads control messages until the connection ends, then
// unregisters and closes the session.
func (s *Server) readPump(c *wsSession) {
	defer func() {
		s.router.Unregister(c.accountID, c)
		c.close()
		c.conn.Close()
	}()

	if s.wsCfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(int64(s.wsCfg.MaxMessageSize))
	}
	pingInterval, pongWait := wsTimings(s.wsCfg)
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "account_id", c.accountID, "error", err)
			} else {
				c.logger.Debug("websocket closed", "account_id", c.accountID)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.handleMessage(message)
	}
}

// writePump writes queued payloads and keepalive pings.
func (c *wsSession) writePump(cfg config.WebSocketConfig) {
	pingInterval, writeWait := wsTimings(cfg)
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// wsTimings returns the keepalive interval and the pong/write wait,
// falling back to 30s and 10s for unset values.
func wsTimings(cfg config.WebSocketConfig) (ping, wait time.Duration) {
	ping = time.Duration(cfg.PingInterval) * time.Second
	if ping <= 0 {
		ping = 30 * time.Second
	}
	wait = time.Duration(cfg.PongTimeout) * time.Second
	if wait <= 0 {
		wait = 10 * time.Second
	}
	return ping, wait
}

// handleMessage answers application-level pings; other input is rejected.
func (c *wsSession) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply("", WSTypeError, map[string]string{"message": "invalid JSON message"})
		return
	}

	switch msg.Type {
	case WSTypePing:
		c.reply(msg.ID, WSTypePong, nil)
	default:
		c.reply(msg.ID, WSTypeError, map[string]string{"message": "unknown message type: " + msg.Type})
	}
}

func (c *wsSession) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.Send(data)
}
