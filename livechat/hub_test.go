package livechat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"verda/globals"
	"verda/middleware"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

func attach(h *Hub, sessionID string) *Client {
	c := &Client{Send: make(chan []byte, 4), Session: sessionID}
	h.register <- c
	return c
}

func receive(t *testing.T, c *Client) ReplyEvent {
	t.Helper()
	select {
	case data := <-c.Send:
		var ev ReplyEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("bad event payload: %v", err)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return ReplyEvent{}
	}
}

func TestHubPushReply(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	c := attach(hub, "s1")
	hub.PushReply("s1", "Sounds like a plan!", true)

	ev := receive(t, c)
	if ev.Action != "assistant_reply" {
		t.Fatalf("action = %s", ev.Action)
	}
	if ev.Session != "s1" || ev.Reply != "Sounds like a plan!" || !ev.ReadyToCreate {
		t.Fatalf("event = %+v", ev)
	}
}

func TestHubRoomsAreIsolated(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	a := attach(hub, "s1")
	b := attach(hub, "s2")

	hub.PushReply("s1", "only for s1", false)

	receive(t, a)
	select {
	case data := <-b.Send:
		t.Fatalf("s2 client received s1 event: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubFanOut(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	a := attach(hub, "s1")
	b := attach(hub, "s1")

	hub.PushReply("s1", "hello both", false)

	if receive(t, a).Reply != "hello both" {
		t.Fatal("first client missed broadcast")
	}
	if receive(t, b).Reply != "hello both" {
		t.Fatal("second client missed broadcast")
	}
}

func TestHubUnregisterClosesSend(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	c := attach(hub, "s1")
	hub.unregister <- c

	select {
	case _, open := <-c.Send:
		if open {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel not closed on unregister")
	}
}

// evictSlowClient registers an unbuffered client with no reader alongside a
// buffered witness in the same room, then broadcasts twice. The hub handles
// one channel operation at a time, so once the witness has both events the
// first broadcast, and with it the slow client's eviction, has fully
// completed.
func evictSlowClient(t *testing.T, hub *Hub) (slow, witness *Client) {
	t.Helper()
	slow = &Client{Send: make(chan []byte), Session: "s1"}
	hub.register <- slow
	witness = attach(hub, "s1")

	hub.PushReply("s1", "first", false)
	hub.PushReply("s1", "second", false)
	receive(t, witness)
	receive(t, witness)
	return slow, witness
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	slow, _ := evictSlowClient(t, hub)

	if _, open := <-slow.Send; open {
		t.Fatal("expected closed channel after eviction")
	}
}

// A client evicted by the broadcast path is still unregistered by its read
// pump when the socket drops; that second pass must not close the Send
// channel again or the hub goroutine dies.
func TestHubUnregisterAfterEviction(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	slow, witness := evictSlowClient(t, hub)

	hub.unregister <- slow

	hub.PushReply("s1", "still here", false)
	if receive(t, witness).Reply != "still here" {
		t.Fatal("hub did not survive unregister of an evicted client")
	}
}

// PushReply after Stop must return, not block on a hub loop that is gone.
func TestHubPushAfterStop(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	attach(hub, "s1")
	hub.Stop()

	done := make(chan struct{})
	go func() {
		hub.PushReply("s1", "too late", false)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PushReply blocked after Stop")
	}
}

func TestWebSocketAuth(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	router := httprouter.New()
	router.GET("/ws/sessions/:id", WebSocketHandler(hub))
	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sessions/s1"

	// Anonymous listeners are allowed, like the session routes.
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("anonymous dial failed: %v", err)
	}
	conn.Close()

	// A presented token must be valid.
	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token=not-a-token", nil)
	if err == nil {
		t.Fatal("invalid token accepted")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %+v", resp)
	}

	claims := middleware.Claims{
		Username: "tester",
		UserID:   "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(globals.JwtSecret)
	if err != nil {
		t.Fatal(err)
	}

	conn, _, err = websocket.DefaultDialer.Dial(wsURL+"?token="+token, nil)
	if err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}
	conn.Close()
}
