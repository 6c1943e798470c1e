package hub

import (
	"campuswhisper/backend/internal/apperrors"
	"campuswhisper/backend/internal/models"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

var (
	ErrClosed       = errors.New("connection closed")
	ErrSlowConsumer = errors.New("client is not reading")
)

// Client is one live feed WebSocket connection. It satisfies feed.Conn.
type Client struct {
	UserID    string
	token     string
	expiresAt time.Time

	conn *websocket.Conn
	send chan models.SessionMessage
	log  zerolog.Logger

	mu      sync.Mutex
	closed  bool
	running bool
	hooks   map[int]func()
	hookSeq int
}

// NewClient wraps an upgraded connection. token is re-checked whenever the
// user's sign-in state changes; the connection closes when it stops being valid.
func NewClient(conn *websocket.Conn, userID, token string, expiresAt time.Time, log zerolog.Logger) *Client {
	return &Client{
		UserID:    userID,
		token:     token,
		expiresAt: expiresAt,
		conn:      conn,
		send:      make(chan models.SessionMessage, sendBuffer),
		log:       log.With().Str("userId", userID).Logger(),
	}
}

// Send queues msg for writing. A client whose buffer is full is dropped
// rather than stalling the sender.
func (c *Client) Send(msg models.SessionMessage) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	select {
	case c.send <- msg:
		c.mu.Unlock()
		return nil
	default:
		c.mu.Unlock()
		c.log.Warn().Msg("send buffer full, dropping client")
		go c.Close()
		return ErrSlowConsumer
	}
}

// OnDisconnect registers fn to run once when the connection closes. If it is
// already closed fn runs immediately. The returned func unregisters fn.
func (c *Client) OnDisconnect(fn func()) (remove func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		fn()
		return func() {}
	}
	if c.hooks == nil {
		c.hooks = make(map[int]func())
	}
	c.hookSeq++
	id := c.hookSeq
	c.hooks[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.hooks, id)
		c.mu.Unlock()
	}
}

func (c *Client) hookCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.hooks)
}

// Run запускає read/write pumps. handle receives every decoded inbound message.
func (c *Client) Run(handle func(models.SessionMessage)) {
	c.mu.Lock()
	if c.closed || c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	go c.writePump()
	go c.readPump(handle)
}

// Close shuts the connection down and runs the disconnect hooks. Safe to call
// any number of times.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	hooks := c.hooks
	c.hooks = nil
	close(c.send) // writePump надішле close frame і закриє з'єднання
	running := c.running
	c.mu.Unlock()

	if !running {
		c.conn.Close()
	}
	for _, fn := range hooks {
		fn()
	}
}

// Closed reports whether Close has run.
func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) readPump(handle func(models.SessionMessage)) {
	defer func() {
		c.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("connection lost")
			}
			return
		}

		var msg models.SessionMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Debug().Err(err).Msg("malformed message")
			c.Send(errorMessage(apperrors.CodeInvalidInput, "malformed message"))
			continue
		}
		handle(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Канал закрито, закриваємо з'єднання WS
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.log.Debug().Err(err).Msg("write failed")
				go c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				go c.Close()
				return
			}
		}
	}
}

func errorMessage(code, message string) models.SessionMessage {
	payload, _ := json.Marshal(models.ErrorPayload{Code: code, Message: message})
	return models.SessionMessage{Type: models.MsgError, Payload: payload}
}
