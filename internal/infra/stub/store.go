package stub

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"waxtrade/internal/app/dto"
)

var (
	// ErrNotFound is returned when a user, record, or conversation is missing.
	ErrNotFound = errors.New("stub: not found")
	// ErrNotParticipant is returned when a user touches someone else's conversation.
	ErrNotParticipant = errors.New("stub: not a participant")
	// ErrEmailTaken is returned on duplicate registration.
	ErrEmailTaken = errors.New("stub: email already registered")
	// ErrOwnRecord is returned when a user opens a conversation about their own listing.
	ErrOwnRecord = errors.New("stub: cannot start a conversation about your own record")

	// ErrAlreadyInitiated rejects a second initiation while one is pending.
	ErrAlreadyInitiated = errors.New("stub: trade completion already initiated")
	// ErrTradeCompleted rejects mutations of a completed trade.
	ErrTradeCompleted = errors.New("stub: trade already completed")
	// ErrNotInitiated rejects confirmation before any initiation.
	ErrNotInitiated = errors.New("stub: trade completion not initiated")
	// ErrSelfConfirm rejects the initiator confirming their own proposal.
	ErrSelfConfirm = errors.New("stub: initiator cannot confirm their own proposal")
	// ErrTradeOpen rejects feedback before the trade completed.
	ErrTradeOpen = errors.New("stub: trade is not completed yet")
	// ErrDuplicateFeedback rejects a second feedback by the same participant.
	ErrDuplicateFeedback = errors.New("stub: feedback already submitted")
	// ErrBadRating rejects ratings outside 1..5.
	ErrBadRating = errors.New("stub: rating must be between 1 and 5")
)

// User is a stored account. PasswordHash is a bcrypt hash.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	RecordIDs    []string
	CreatedAt    time.Time
}

// Feedback is one stored rating for a completed trade.
type Feedback struct {
	ConversationID string
	AuthorID       string
	Rating         int
	Comment        string
	CreatedAt      time.Time
}

// Store keeps all backend state in memory behind one mutex. Not suitable
// for production; it exists so the client can be developed and tested
// without the real backend.
type Store struct {
	mu            sync.RWMutex
	users         map[string]*User
	byEmail       map[string]string
	records       map[string]*dto.Record
	conversations map[string]*dto.Conversation
	feedback      map[string][]Feedback
	idem          map[string]idemRecord
	now           func() time.Time
}

type idemRecord struct {
	Status int
	Body   []byte
}

// NewStore builds an empty store.
func NewStore() *Store {
	return &Store{
		users:         make(map[string]*User),
		byEmail:       make(map[string]string),
		records:       make(map[string]*dto.Record),
		conversations: make(map[string]*dto.Conversation),
		feedback:      make(map[string][]Feedback),
		idem:          make(map[string]idemRecord),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// CreateUser registers an account with a pre-hashed password.
func (s *Store) CreateUser(username, email, passwordHash string) (*User, error) {
	emailKey := strings.ToLower(strings.TrimSpace(email))
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[emailKey]; ok {
		return nil, ErrEmailTaken
	}
	user := &User{
		ID:           uuid.NewString(),
		Username:     strings.TrimSpace(username),
		Email:        emailKey,
		PasswordHash: passwordHash,
		CreatedAt:    s.now(),
	}
	s.users[user.ID] = user
	s.byEmail[emailKey] = user.ID
	return cloneUser(user), nil
}

// UserByEmail looks an account up for login.
func (s *Store) UserByEmail(email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(s.users[id]), nil
}

// UserByID returns a stored account.
func (s *Store) UserByID(id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(user), nil
}

// CreateRecord stores a listing for the given owner.
func (s *Store) CreateRecord(ownerID string, req dto.CreateRecordRequest) (dto.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.users[ownerID]
	if !ok {
		return dto.Record{}, ErrNotFound
	}
	rec := &dto.Record{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Title:       strings.TrimSpace(req.Title),
		Artist:      strings.TrimSpace(req.Artist),
		Genre:       req.Genre,
		ReleaseYear: req.ReleaseYear,
		Label:       req.Label,
		Condition:   req.Condition,
		Description: req.Description,
		CoverURL:    req.CoverURL,
		CreatedAt:   s.now(),
	}
	s.records[rec.ID] = rec
	owner.RecordIDs = append(owner.RecordIDs, rec.ID)
	return *rec, nil
}

// RecordByID returns one listing.
func (s *Store) RecordByID(id string) (dto.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return dto.Record{}, ErrNotFound
	}
	return *rec, nil
}

// Records returns all listings, newest first.
func (s *Store) Records() []dto.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]dto.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// StartConversation opens the thread between userID and the record's owner,
// returning the existing one when the pair already talked about the record.
func (s *Store) StartConversation(userID, recordID string) (dto.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[recordID]
	if !ok {
		return dto.Conversation{}, ErrNotFound
	}
	if rec.OwnerID == userID {
		return dto.Conversation{}, ErrOwnRecord
	}
	buyer, ok := s.users[userID]
	if !ok {
		return dto.Conversation{}, ErrNotFound
	}
	seller := s.users[rec.OwnerID]
	for _, conv := range s.conversations {
		if conv.Record.ID == recordID && isParticipant(conv, userID) {
			return cloneConversation(conv), nil
		}
	}
	conv := &dto.Conversation{
		ID: uuid.NewString(),
		Participants: []dto.UserRef{
			{ID: buyer.ID, Username: buyer.Username},
			{ID: seller.ID, Username: seller.Username},
		},
		Record:    rec.Summary(),
		CreatedAt: s.now(),
	}
	s.conversations[conv.ID] = conv
	return cloneConversation(conv), nil
}

// ConversationFor returns a conversation, enforcing participation.
func (s *Store) ConversationFor(userID, conversationID string) (dto.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return dto.Conversation{}, ErrNotFound
	}
	if !isParticipant(conv, userID) {
		return dto.Conversation{}, ErrNotParticipant
	}
	return cloneConversation(conv), nil
}

// ConversationsFor lists every conversation the user participates in.
func (s *Store) ConversationsFor(userID string) []dto.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]dto.Conversation, 0)
	for _, conv := range s.conversations {
		if isParticipant(conv, userID) {
			out = append(out, cloneConversation(conv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ParticipantsOf returns the participants of a conversation, or nil when
// it does not exist.
func (s *Store) ParticipantsOf(conversationID string) []dto.UserRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return nil
	}
	return append([]dto.UserRef(nil), conv.Participants...)
}

// AppendMessage adds a message and returns its stored form.
func (s *Store) AppendMessage(userID, conversationID, text string) (dto.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return dto.Message{}, errors.New("stub: message text required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return dto.Message{}, ErrNotFound
	}
	if !isParticipant(conv, userID) {
		return dto.Message{}, ErrNotParticipant
	}
	sender := s.users[userID]
	msg := dto.Message{
		ID:        uuid.NewString(),
		Sender:    dto.UserRef{ID: sender.ID, Username: sender.Username},
		Text:      text,
		Timestamp: s.now(),
		ReadBy:    []string{userID},
	}
	conv.Messages = append(conv.Messages, msg)
	return msg, nil
}

// MarkRead adds the user to the read set of every message they have not
// authored. Read sets only grow.
func (s *Store) MarkRead(userID, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return ErrNotFound
	}
	if !isParticipant(conv, userID) {
		return ErrNotParticipant
	}
	for i := range conv.Messages {
		msg := &conv.Messages[i]
		if msg.Sender.ID == userID || msg.ReadByUser(userID) {
			continue
		}
		msg.ReadBy = append(msg.ReadBy, userID)
	}
	return nil
}

// UnreadTotal sums unread messages for the user across all conversations.
func (s *Store) UnreadTotal(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, conv := range s.conversations {
		if !isParticipant(conv, userID) {
			continue
		}
		for _, msg := range conv.Messages {
			if msg.Sender.ID != userID && !msg.ReadByUser(userID) {
				total++
			}
		}
	}
	return total
}

// InitiateTrade records the first completion proposal. A second initiation,
// by either party, is rejected while the first is pending.
func (s *Store) InitiateTrade(userID, conversationID string) (dto.TradeStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return dto.TradeStatus{}, ErrNotFound
	}
	if !isParticipant(conv, userID) {
		return dto.TradeStatus{}, ErrNotParticipant
	}
	if conv.TradeStatus.IsCompleted {
		return dto.TradeStatus{}, ErrTradeCompleted
	}
	if conv.TradeStatus.InitiatedBy != "" {
		return dto.TradeStatus{}, ErrAlreadyInitiated
	}
	conv.TradeStatus.InitiatedBy = userID
	return cloneStatus(conv.TradeStatus), nil
}

// ConfirmTrade completes the trade. Only the non-initiator may confirm, and
// completion is monotonic.
func (s *Store) ConfirmTrade(userID, conversationID string) (dto.TradeStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return dto.TradeStatus{}, ErrNotFound
	}
	if !isParticipant(conv, userID) {
		return dto.TradeStatus{}, ErrNotParticipant
	}
	if conv.TradeStatus.IsCompleted {
		return dto.TradeStatus{}, ErrTradeCompleted
	}
	if conv.TradeStatus.InitiatedBy == "" {
		return dto.TradeStatus{}, ErrNotInitiated
	}
	if conv.TradeStatus.InitiatedBy == userID {
		return dto.TradeStatus{}, ErrSelfConfirm
	}
	conv.TradeStatus.IsCompleted = true
	return cloneStatus(conv.TradeStatus), nil
}

// SubmitFeedback stores one rating per (trade, participant).
func (s *Store) SubmitFeedback(userID, conversationID string, rating int, comment string) error {
	if rating < 1 || rating > 5 {
		return ErrBadRating
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return ErrNotFound
	}
	if !isParticipant(conv, userID) {
		return ErrNotParticipant
	}
	if !conv.TradeStatus.IsCompleted {
		return ErrTradeOpen
	}
	if conv.TradeStatus.FeedbackFrom(userID) {
		return ErrDuplicateFeedback
	}
	conv.TradeStatus.FeedbackProvided = append(conv.TradeStatus.FeedbackProvided, userID)
	s.feedback[conversationID] = append(s.feedback[conversationID], Feedback{
		ConversationID: conversationID,
		AuthorID:       userID,
		Rating:         rating,
		Comment:        strings.TrimSpace(comment),
		CreatedAt:      s.now(),
	})
	return nil
}

// FeedbackFor returns stored feedback entries for a conversation.
func (s *Store) FeedbackFor(conversationID string) []Feedback {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Feedback(nil), s.feedback[conversationID]...)
}

// IdempotencyGet returns a recorded response for the key, if any.
func (s *Store) IdempotencyGet(key string) (int, []byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.idem[key]
	return rec.Status, rec.Body, ok
}

// IdempotencySave records a response for replay.
func (s *Store) IdempotencySave(key string, status int, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idem[key] = idemRecord{Status: status, Body: append([]byte(nil), body...)}
}

func isParticipant(conv *dto.Conversation, userID string) bool {
	for _, p := range conv.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

func cloneUser(u *User) *User {
	if u == nil {
		return nil
	}
	out := *u
	out.RecordIDs = append([]string(nil), u.RecordIDs...)
	return &out
}

func cloneStatus(t dto.TradeStatus) dto.TradeStatus {
	out := t
	out.FeedbackProvided = append([]string(nil), t.FeedbackProvided...)
	return out
}

func cloneConversation(c *dto.Conversation) dto.Conversation {
	out := *c
	out.Participants = append([]dto.UserRef(nil), c.Participants...)
	out.TradeStatus = cloneStatus(c.TradeStatus)
	out.Messages = make([]dto.Message, len(c.Messages))
	for i, msg := range c.Messages {
		msg.ReadBy = append([]string(nil), msg.ReadBy...)
		out.Messages[i] = msg
	}
	return out
}
