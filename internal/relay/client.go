package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/checkin-relay-go/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 32

	// joinWait bounds how long a fresh connection may sit without sending
	// its join frame.
	joinWait = 10 * time.Second
)

// Client is one live endpoint attached to a session. Role and session id
// are set on join and never change afterwards.
type Client struct {
	conn      *websocket.Conn
	role      model.Role
	sessionID string
	send      chan Envelope
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		conn: conn,
		send: make(chan Envelope, sendBufferSize),
		done: make(chan struct{}),
	}
}

func (c *Client) Role() model.Role { return c.role }

func (c *Client) SessionID() string { return c.sessionID }

// enqueue hands an envelope to the write pump. Delivery is best effort: a
// client that cannot drain its buffer loses events rather than stalling
// the session.
func (c *Client) enqueue(env Envelope) {
	select {
	case c.send <- env:
	default:
		log.Warn().
			Str("deskId", c.sessionID).
			Str("role", string(c.role)).
			Str("event", env.Type).
			Msg("client send buffer full, dropping event")
	}
}

// Close shuts the connection down. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// writePump drains the send channel onto the wire and keeps the
// connection alive with pings. One per connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case env := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
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
