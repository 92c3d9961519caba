// Package stream subscribes to the backend's websocket hint channel. Hints
// only tell the client that a conversation changed; the data itself is
// always re-fetched over REST, so polling remains a complete fallback and
// the poll interval stays the staleness bound.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Event is one hint from the backend.
type Event struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
}

// EventConversationUpdated marks any server-side mutation of a conversation.
const EventConversationUpdated = "conversation_updated"

// Subscriber maintains a websocket connection and fans hints out to one
// channel of conversation ids.
type Subscriber struct {
	url    string
	token  string
	logger *slog.Logger

	hints chan string
}

// NewSubscriber builds a subscriber for the given ws endpoint.
func NewSubscriber(url, bearerToken string, logger *slog.Logger) (*Subscriber, error) {
	if url == "" {
		return nil, errors.New("stream: url required")
	}
	return &Subscriber{
		url:    url,
		token:  bearerToken,
		logger: logger,
		hints:  make(chan string, 16),
	}, nil
}

// Hints delivers conversation ids that changed server-side.
func (s *Subscriber) Hints() <-chan string {
	return s.hints
}

// Run dials and reads until the context is cancelled, reconnecting with a
// flat backoff on failure. The hints channel is closed on return.
func (s *Subscriber) Run(ctx context.Context) {
	defer close(s.hints)
	for {
		if err := s.readLoop(ctx); err != nil && s.logger != nil {
			s.logger.Warn("stream disconnected", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(3 * time.Second):
		}
	}
}

func (s *Subscriber) readLoop(ctx context.Context) error {
	header := http.Header{}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, header)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			continue
		}
		if event.Type != EventConversationUpdated || event.ConversationID == "" {
			continue
		}
		select {
		case s.hints <- event.ConversationID:
		default:
			// hint dropped; the next poll covers it
		}
	}
}
