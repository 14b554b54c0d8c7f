package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins; the in-band handshake token is the gate.
		return true
	},
}

// Handler upgrades the connection and leaves authentication to the in-band
// handshake message.
func Handler(hub *Hub, auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if hub == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Realtime not available", "kind": "storage"})
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		client := newClient(hub, conn, auth)
		go client.writePump()
		client.readPump()
	}
}
