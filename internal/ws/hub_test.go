package ws_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"cpesync/internal/ws"
)

// stubAuth accepts "admin" and "student:<accountId>" tokens.
func stubAuth(token string) (ws.Principal, error) {
	if token == "admin" {
		return ws.Principal{Role: ws.RoleAdmin}, nil
	}
	if id, ok := strings.CutPrefix(token, "student:"); ok {
		return ws.Principal{Role: ws.RoleStudent, AccountID: id}, nil
	}
	return ws.Principal{}, errors.New("bad token")
}

func newWSServer(t *testing.T) (*httptest.Server, *ws.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := ws.NewHub()
	go hub.Run()
	r := gin.New()
	r.GET("/ws", ws.Handler(hub, stubAuth))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, hub
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func authenticate(t *testing.T, conn *websocket.Conn, token string) {
	t.Helper()
	msg := fmt.Sprintf(`{"type":"authenticate","token":%q}`, token)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("handshake: %v", err)
	}
	// Registration is asynchronous; give the hub a moment.
	time.Sleep(200 * time.Millisecond)
}

func expectMessage(t *testing.T, conn *websocket.Conn, kind string) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("expected %q message, read failed: %v", kind, err)
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	if msg["type"] != kind {
		t.Fatalf("expected type %q, got %v", kind, msg["type"])
	}
	return msg
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, data, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected no message, got %s", data)
	}
}

func TestRoleScopedFanOut(t *testing.T) {
	srv, hub := newWSServer(t)

	student := dial(t, srv)
	authenticate(t, student, "student:acct1")
	admin := dial(t, srv)
	authenticate(t, admin, "admin")

	hub.NotifyStudents(ws.KindEventCreated, map[string]string{"id": "e1"})
	msg := expectMessage(t, student, ws.KindEventCreated)
	if data := msg["data"].(map[string]any); data["id"] != "e1" {
		t.Fatalf("unexpected payload: %v", msg)
	}
	expectSilence(t, admin)

	hub.NotifyAdmins(ws.KindAttendanceSubmitted, map[string]string{"id": "r1"})
	expectMessage(t, admin, ws.KindAttendanceSubmitted)
	expectSilence(t, student)
}

func TestAccountScopedDelivery(t *testing.T) {
	srv, hub := newWSServer(t)

	owner := dial(t, srv)
	authenticate(t, owner, "student:acct1")
	bystander := dial(t, srv)
	authenticate(t, bystander, "student:acct2")

	hub.NotifyAccount("acct1", ws.KindAttendanceStatusUpdated, map[string]string{"recordId": "r1", "status": "verified"})
	expectMessage(t, owner, ws.KindAttendanceStatusUpdated)
	expectSilence(t, bystander)
}

func TestNoDeliveryBeforeHandshake(t *testing.T) {
	srv, hub := newWSServer(t)

	silent := dial(t, srv)
	// Connected but never authenticated.
	time.Sleep(100 * time.Millisecond)

	hub.NotifyStudents(ws.KindEventCreated, map[string]string{"id": "e1"})
	expectSilence(t, silent)
}

func TestHandshakeRoleMismatchCloses(t *testing.T) {
	srv, _ := newWSServer(t)

	conn := dial(t, srv)
	// Student token declaring the admin role: the server drops the link.
	msg := `{"type":"authenticate","token":"student:acct1","role":"admin"}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("handshake: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected the connection to be closed")
	}
}
