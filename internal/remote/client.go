package remote

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 16
)

var disconnectedMessage = []byte(`{"type":"disconnected"}`)

var commands = map[string]bool{
	"play":     true,
	"pause":    true,
	"next":     true,
	"previous": true,
	"volume":   true,
}

type message struct {
	Type    string `json:"type"`
	Command string `json:"command,omitempty"`
}

type client struct {
	hub   *Hub
	conn  *websocket.Conn
	token string
	role  Role
	send  chan []byte
	log   *zap.Logger

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(hub *Hub, conn *websocket.Conn, token string, role Role, log *zap.Logger) *client {
	return &client{
		hub:   hub,
		conn:  conn,
		token: token,
		role:  role,
		send:  make(chan []byte, sendBuffer),
		log:   log,
		done:  make(chan struct{}),
	}
}

// deliver queues msg without blocking; a full buffer drops the message.
func (c *client) deliver(msg []byte) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		c.log.Debug("remote send buffer full, dropping message")
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("remote socket closed", zap.Error(err))
			}
			return
		}
		c.route(raw)
	}
}

func (c *client) route(raw []byte) {
	var msg message
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.log.Debug("ignoring malformed remote message", zap.Error(err))
		return
	}
	switch {
	case msg.Type == "command" && c.role == RoleController && commands[msg.Command]:
		c.hub.toPlayer(c.token, raw)
	case msg.Type == "status" && c.role == RolePlayer:
		c.hub.toControllers(c.token, raw)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
