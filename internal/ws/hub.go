package ws

import (
	"encoding/json"
	"log"
)

// Notification kinds pushed over the channel.
const (
	KindEventCreated            = "eventCreated"
	KindEventUpdated            = "eventUpdated"
	KindEventDeleted            = "eventDeleted"
	KindAttendanceSubmitted     = "attendanceSubmitted"
	KindAttendanceStatusUpdated = "attendanceStatusUpdated"
)

// Principal is the verified identity of a connected session.
type Principal struct {
	Role      string
	AccountID string
}

// Authenticator verifies a handshake token into a principal.
type Authenticator func(token string) (Principal, error)

// Message is the named server→client push payload.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type envelope struct {
	// accountID scopes delivery to one account's connections; when empty,
	// role scopes it to every connection with that role.
	role      string
	accountID string
	payload   []byte
}

// Hub owns the registry of connected clients and fans notifications out to
// them. Delivery is fire-and-forget: disconnected sessions miss messages
// and reconcile on their next full fetch.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan envelope
	clients    map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan envelope, 256),
		clients:    make(map[*Client]struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case msg := <-h.broadcast:
			for client := range h.clients {
				if msg.accountID != "" {
					if client.principal.AccountID != msg.accountID {
						continue
					}
				} else if client.principal.Role != msg.role {
					continue
				}
				select {
				case client.send <- msg.payload:
				default:
					// Slow consumer: drop it rather than stall the rest.
					delete(h.clients, client)
					close(client.send)
					client.conn.Close()
				}
			}
		}
	}
}

// NotifyStudents pushes a message to every authenticated student session.
func (h *Hub) NotifyStudents(kind string, data any) {
	h.send(envelope{role: RoleStudent}, kind, data)
}

// NotifyAdmins pushes a message to every authenticated admin session.
func (h *Hub) NotifyAdmins(kind string, data any) {
	h.send(envelope{role: RoleAdmin}, kind, data)
}

// NotifyAccount pushes a message only to the given account's sessions.
func (h *Hub) NotifyAccount(accountID, kind string, data any) {
	h.send(envelope{accountID: accountID}, kind, data)
}

func (h *Hub) send(env envelope, kind string, data any) {
	if h == nil {
		return
	}
	payload, err := json.Marshal(Message{Type: kind, Data: data})
	if err != nil {
		log.Printf("ws: failed to marshal %s payload: %v", kind, err)
		return
	}
	env.payload = payload
	select {
	case h.broadcast <- env:
	default:
		// Never block the mutating request behind the fan-out.
	}
}
