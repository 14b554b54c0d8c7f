package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 64
)

const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// handshake is the first client→server message. The token is verified and
// its claims win; a declared role or accountId that contradicts them closes
// the connection.
type handshake struct {
	Type      string `json:"type"`
	Token     string `json:"token"`
	Role      string `json:"role"`
	AccountID string `json:"accountId"`
}

type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	auth      Authenticator
	principal Principal
}

func newClient(hub *Hub, conn *websocket.Conn, auth Authenticator) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		auth: auth,
	}
}

// readPump waits for the handshake, registers the client, then drains the
// connection until it drops. Before the handshake completes the client is
// not in the hub registry and receives no scoped notifications.
func (c *Client) readPump() {
	registered := false
	defer func() {
		if registered {
			c.hub.unregister <- c
		}
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
			return
		}
		if registered {
			continue
		}
		var hs handshake
		if err := json.Unmarshal(data, &hs); err != nil || hs.Type != "authenticate" {
			continue
		}
		principal, err := c.auth(hs.Token)
		if err != nil {
			return
		}
		if hs.Role != "" && hs.Role != principal.Role {
			return
		}
		if hs.AccountID != "" && hs.AccountID != principal.AccountID {
			return
		}
		c.principal = principal
		c.hub.register <- c
		registered = true
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
