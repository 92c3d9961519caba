package stub

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	gin "github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"waxtrade/internal/infra/stream"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Hub tracks websocket connections per user and pushes conversation-updated
// hints. Connections that cannot keep up are dropped; the client's polling
// covers anything a hint would have delivered.
type Hub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[string][]*hubClient
}

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// NewHub builds an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[string][]*hubClient),
	}
}

// Serve upgrades the request and registers the connection for the
// authenticated user.
func (h *Hub) Serve(c *gin.Context) {
	userID := principalID(c)
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("ws upgrade failed", "error", err)
		}
		return
	}
	client := &hubClient{conn: conn, send: make(chan []byte, 16)}

	h.mu.Lock()
	h.clients[userID] = append(h.clients[userID], client)
	h.mu.Unlock()

	go h.writeLoop(client)
	go h.readLoop(userID, client)
}

// Notify pushes a hint to every connection of the given user.
func (h *Hub) Notify(userID, conversationID string) {
	payload, err := json.Marshal(stream.Event{
		Type:           stream.EventConversationUpdated,
		ConversationID: conversationID,
	})
	if err != nil {
		return
	}
	h.mu.Lock()
	clients := append([]*hubClient(nil), h.clients[userID]...)
	h.mu.Unlock()
	for _, client := range clients {
		select {
		case client.send <- payload:
		default:
			h.drop(userID, client)
		}
	}
}

func (h *Hub) writeLoop(client *hubClient) {
	for payload := range client.send {
		if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// readLoop drains the connection so close frames are processed, then
// unregisters it.
func (h *Hub) readLoop(userID string, client *hubClient) {
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			h.drop(userID, client)
			return
		}
	}
}

func (h *Hub) drop(userID string, client *hubClient) {
	h.mu.Lock()
	clients := h.clients[userID]
	for i, c := range clients {
		if c == client {
			h.clients[userID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	h.mu.Unlock()
	client.once.Do(func() {
		close(client.send)
		_ = client.conn.Close()
	})
}
