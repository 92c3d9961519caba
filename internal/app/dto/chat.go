package dto

import "time"

// Conversation is the full chat thread for one listing, including trade state.
// The server owns it; clients replace their copy wholesale on every fetch.
type Conversation struct {
	ID           string        `json:"id"`
	Participants []UserRef     `json:"participants"`
	Record       RecordSummary `json:"record"`
	Messages     []Message     `json:"messages"`
	TradeStatus  TradeStatus   `json:"trade_status"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Message contains a single message payload. Immutable except read_by,
// which only grows.
type Message struct {
	ID        string    `json:"id"`
	Sender    UserRef   `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	ReadBy    []string  `json:"read_by"`
}

// ReadByUser reports whether the given user id is in the read set.
func (m Message) ReadByUser(userID string) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// TradeStatus tracks the two-step completion handshake.
// initiated_by is empty until one party proposes completion; is_completed
// flips true once the other party confirms and never reverts.
type TradeStatus struct {
	InitiatedBy      string   `json:"initiated_by,omitempty"`
	IsCompleted      bool     `json:"is_completed"`
	FeedbackProvided []string `json:"feedback_provided,omitempty"`
}

// FeedbackFrom reports whether the given user already submitted feedback.
func (t TradeStatus) FeedbackFrom(userID string) bool {
	for _, id := range t.FeedbackProvided {
		if id == userID {
			return true
		}
	}
	return false
}

// Other returns the participant that is not the given user.
func (c Conversation) Other(userID string) UserRef {
	for _, p := range c.Participants {
		if p.ID != userID {
			return p
		}
	}
	return UserRef{}
}

// SendMessageRequest is the body for POST /messages/send.
type SendMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

// TradeActionRequest is the body for trade initiate/confirm.
type TradeActionRequest struct {
	ConversationID string `json:"conversation_id"`
}

// FeedbackRequest is the body for POST /trades/feedback.
type FeedbackRequest struct {
	ConversationID string `json:"conversation_id"`
	Rating         int    `json:"rating"`
	Comment        string `json:"comment,omitempty"`
}

// StartConversationRequest opens (or returns) the thread between the
// current user and a record's owner.
type StartConversationRequest struct {
	RecordID string `json:"record_id"`
}

// UnreadSummary is the payload of GET /messages/unread-count.
type UnreadSummary struct {
	UnreadCount int `json:"unread_count"`
}
