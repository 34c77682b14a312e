// Package livechat pushes assistant replies to connected clients of a
// session over WebSocket, so a phone that re-opens the conversation screen
// mid-turn still sees the reply land.
package livechat

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"verda/middleware"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

type Client struct {
	Conn    *websocket.Conn
	Send    chan []byte
	Session string
}

type broadcastMsg struct {
	Session string
	Data    []byte
}

type Hub struct {
	sessions   map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMsg
	done       chan struct{}
	mu         sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		sessions:   make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastMsg),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			return

		case c := <-h.register:
			h.mu.Lock()
			if h.sessions[c.Session] == nil {
				h.sessions[c.Session] = make(map[*Client]bool)
			}
			h.sessions[c.Session][c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			// A slow client may already be evicted by the broadcast path;
			// only members still in the room own an open Send channel.
			if conns := h.sessions[c.Session]; conns != nil {
				if _, in := conns[c]; in {
					delete(conns, c)
					close(c.Send)
				}
			}
			h.mu.Unlock()

		case m := <-h.broadcast:
			h.mu.Lock()
			for c := range h.sessions[m.Session] {
				select {
				case c.Send <- m.Data:
				default:
					close(c.Send)
					delete(h.sessions[m.Session], c)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) Stop() {
	close(h.done)
	h.mu.Lock()
	for _, conns := range h.sessions {
		for c := range conns {
			close(c.Send)
			delete(conns, c)
		}
	}
	h.mu.Unlock()
}

// ReplyEvent is what gets pushed to listeners of a session.
type ReplyEvent struct {
	Action        string `json:"action"` // "assistant_reply"
	Session       string `json:"session"`
	Reply         string `json:"reply"`
	ReadyToCreate bool   `json:"readyToCreate"`
	Timestamp     int64  `json:"timestamp"`
}

// PushReply broadcasts an assistant reply to every client watching the
// session. Best effort: marshal errors are logged, never surfaced.
func (h *Hub) PushReply(sessionID, reply string, readyToCreate bool) {
	data, err := json.Marshal(ReplyEvent{
		Action:        "assistant_reply",
		Session:       sessionID,
		Reply:         reply,
		ReadyToCreate: readyToCreate,
		Timestamp:     time.Now().Unix(),
	})
	if err != nil {
		log.Println("livechat marshal error:", err)
		return
	}
	select {
	case h.broadcast <- broadcastMsg{Session: sessionID, Data: data}:
	case <-h.done:
		// Hub stopped during shutdown; the HTTP response already carries
		// the reply, so the push is just dropped.
	}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// WebSocketHandler upgrades GET /ws/sessions/:id and keeps the connection
// in the session's room until it drops. Auth mirrors the session routes:
// anonymous listeners are allowed, but a presented token must be valid.
// Browsers cannot set headers on the upgrade, so the token rides a query
// parameter.
func WebSocketHandler(hub *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		sessionID := ps.ByName("id")
		if sessionID == "" {
			http.Error(w, "Missing session id", http.StatusBadRequest)
			return
		}

		if token := r.URL.Query().Get("token"); token != "" {
			if _, err := middleware.ValidateJWT(token); err != nil {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("websocket upgrade error:", err)
			return
		}

		client := &Client{Conn: conn, Send: make(chan []byte, 16), Session: sessionID}
		hub.register <- client

		go func() {
			defer conn.Close()
			for msg := range client.Send {
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					break
				}
			}
		}()

		go func() {
			defer func() { hub.unregister <- client }()
			for {
				// Clients only listen; reads just detect disconnects.
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}
