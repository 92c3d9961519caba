// Package session maintains a locally-refreshed view of one conversation
// and mediates every user-initiated state transition on it. The server is
// the single source of truth: each action is followed by a full refresh and
// the local snapshot is only ever replaced wholesale, never merged.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"waxtrade/internal/app/dto"
	"waxtrade/internal/app/notify"
	"waxtrade/internal/infra/api"
)

var (
	// ErrClosed is returned once the session has been torn down.
	ErrClosed = errors.New("session: closed")
	// ErrAuthExpired is returned after the backend rejected the credential.
	// The state is terminal; the session stops issuing calls.
	ErrAuthExpired = errors.New("session: credential rejected, re-authentication required")
	// ErrAlreadyInitiated guards initiation when a proposal already exists.
	ErrAlreadyInitiated = errors.New("session: trade completion already initiated")
	// ErrCannotConfirm guards confirmation by the initiator or on an open trade.
	ErrCannotConfirm = errors.New("session: not allowed to confirm this trade")
	// ErrRatingRequired guards feedback submission without a rating.
	ErrRatingRequired = errors.New("session: rating is required")
)

// Config defines one conversation session.
type Config struct {
	ConversationID string
	PollInterval   time.Duration
	// Hints delivers conversation ids from a push channel; a matching hint
	// triggers an immediate refresh. Optional, polling works without it.
	Hints <-chan string
}

// Session owns one conversation's client-side state.
type Session struct {
	client         *api.Client
	logger         *slog.Logger
	conversationID string
	interval       time.Duration
	hints          <-chan string

	mu                sync.Mutex
	conversation      *dto.Conversation
	composing         string
	feedbackOpen      bool
	feedbackDismissed bool
	pendingRating     int
	pendingComment    string
	authFailed        bool
	closed            bool

	done           chan struct{}
	closeOnce      sync.Once
	tradeConfirmed chan struct{}
}

// New builds a session for one conversation.
func New(client *api.Client, cfg Config, logger *slog.Logger) (*Session, error) {
	if client == nil {
		return nil, errors.New("session: client required")
	}
	if strings.TrimSpace(cfg.ConversationID) == "" {
		return nil, errors.New("session: conversation id required")
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Session{
		client:         client,
		logger:         logger,
		conversationID: cfg.ConversationID,
		interval:       interval,
		hints:          cfg.Hints,
		done:           make(chan struct{}),
		tradeConfirmed: make(chan struct{}, 1),
	}, nil
}

// UserID is the id of the viewing user, taken from the installed credential.
func (s *Session) UserID() string {
	return s.client.Credential().UserID
}

// ConversationID returns the id this session is bound to.
func (s *Session) ConversationID() string {
	return s.conversationID
}

// Conversation returns the latest fetched snapshot, if any.
func (s *Session) Conversation() (dto.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conversation == nil {
		return dto.Conversation{}, false
	}
	return *s.conversation, true
}

// Refresh fetches the conversation and replaces the local snapshot. It also
// marks the thread read for the current user; a mark-read failure is logged
// and otherwise ignored. On success the feedback prompt may open (once) if
// the trade completed and the user has not rated it yet.
func (s *Session) Refresh(ctx context.Context) error {
	if err := s.guard(); err != nil {
		return err
	}
	conv, err := s.client.Conversation(ctx, s.conversationID)
	if err != nil {
		s.observeFailure("refresh", err)
		return err
	}
	if err := s.client.MarkRead(ctx, s.conversationID); err != nil {
		if s.logger != nil {
			s.logger.Warn("mark read failed", "conversation_id", s.conversationID, "error", err)
		}
	}
	s.apply(conv)
	return nil
}

// apply installs a fetched snapshot unless the session was torn down while
// the request was in flight.
func (s *Session) apply(conv dto.Conversation) {
	userID := s.UserID()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.conversation = &conv
	if !s.feedbackOpen && !s.feedbackDismissed &&
		notify.ShouldPromptFeedback(conv.TradeStatus, userID) {
		s.feedbackOpen = true
	}
}

// Composing returns the current draft text.
func (s *Session) Composing() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.composing
}

// SetComposing updates the draft text.
func (s *Session) SetComposing(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.composing = text
}

// SendMessage sends the given text. Blank text is a no-op: no call is made
// and the draft is left untouched. On success the draft is cleared and the
// conversation refreshed immediately; the message itself only appears via
// that refresh, since server id and timestamp are authoritative.
func (s *Session) SendMessage(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if err := s.guard(); err != nil {
		return err
	}
	if err := s.client.SendMessage(ctx, s.conversationID, text); err != nil {
		s.observeFailure("send message", err)
		return err
	}
	s.mu.Lock()
	s.composing = ""
	s.mu.Unlock()
	return s.Refresh(ctx)
}

// InitiateTrade proposes completing the trade. Valid only while nobody has
// initiated; the server re-checks and its rejection is surfaced unchanged.
func (s *Session) InitiateTrade(ctx context.Context) error {
	if err := s.guard(); err != nil {
		return err
	}
	if conv, ok := s.Conversation(); ok && !notify.CanInitiate(conv.TradeStatus) {
		return ErrAlreadyInitiated
	}
	if _, err := s.client.InitiateTrade(ctx, s.conversationID); err != nil {
		s.observeFailure("initiate trade", err)
		return err
	}
	return s.Refresh(ctx)
}

// ConfirmTrade confirms a completion proposed by the other participant.
// The initiator can never confirm their own proposal. On success a nudge is
// emitted on TradeConfirmed so badge watchers can re-poll immediately.
func (s *Session) ConfirmTrade(ctx context.Context) error {
	if err := s.guard(); err != nil {
		return err
	}
	if conv, ok := s.Conversation(); ok && !notify.CanConfirm(conv.TradeStatus, s.UserID()) {
		return ErrCannotConfirm
	}
	if _, err := s.client.ConfirmTrade(ctx, s.conversationID); err != nil {
		s.observeFailure("confirm trade", err)
		return err
	}
	err := s.Refresh(ctx)
	select {
	case s.tradeConfirmed <- struct{}{}:
	default:
	}
	return err
}

// TradeConfirmed signals successful confirmations. The channel holds at
// most one pending nudge.
func (s *Session) TradeConfirmed() <-chan struct{} {
	return s.tradeConfirmed
}

// FeedbackPromptOpen reports whether the feedback prompt should be shown.
func (s *Session) FeedbackPromptOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feedbackOpen
}

// DismissFeedbackPrompt closes the prompt without submitting. Dismissal is
// sticky for the lifetime of the session: later refreshes will not reopen
// the prompt, but a fresh session for the same conversation will prompt
// again while feedback is still missing.
func (s *Session) DismissFeedbackPrompt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedbackOpen = false
	s.feedbackDismissed = true
}

// PendingFeedback returns the draft rating and comment.
func (s *Session) PendingFeedback() (int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingRating, s.pendingComment
}

// SetPendingFeedback updates the draft rating and comment.
func (s *Session) SetPendingFeedback(rating int, comment string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingRating = rating
	s.pendingComment = comment
}

// SubmitFeedback submits the pending rating and comment. A zero rating is a
// guarded no-op: no call is issued and the prompt stays open. On success the
// prompt closes and the draft is cleared; on failure both are kept so the
// user can retry.
func (s *Session) SubmitFeedback(ctx context.Context) error {
	rating, comment := s.PendingFeedback()
	if rating == 0 {
		return ErrRatingRequired
	}
	if err := s.guard(); err != nil {
		return err
	}
	if err := s.client.SubmitFeedback(ctx, s.conversationID, rating, comment); err != nil {
		s.observeFailure("submit feedback", err)
		return err
	}
	s.mu.Lock()
	s.feedbackOpen = false
	s.feedbackDismissed = true
	s.pendingRating = 0
	s.pendingComment = ""
	s.mu.Unlock()
	return s.Refresh(ctx)
}

// Run polls the conversation until the context is cancelled, the session is
// closed, or the credential is rejected. Push hints, when wired, trigger an
// immediate refresh; the poll interval remains the staleness bound.
func (s *Session) Run(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil && s.logger != nil {
		s.logger.Warn("initial refresh failed", "conversation_id", s.conversationID, "error", err)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case id, ok := <-s.hints:
			if !ok {
				s.hints = nil
				continue
			}
			if id != s.conversationID {
				continue
			}
			if !s.pollOnce(ctx) {
				return
			}
		case <-ticker.C:
			if !s.pollOnce(ctx) {
				return
			}
		}
	}
}

func (s *Session) pollOnce(ctx context.Context) bool {
	err := s.Refresh(ctx)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrClosed), errors.Is(err, ErrAuthExpired), api.IsAuth(err):
		return false
	default:
		if s.logger != nil {
			s.logger.Warn("poll refresh failed", "conversation_id", s.conversationID, "error", err)
		}
		return true
	}
}

// Close tears the session down. Responses still in flight are discarded
// instead of being applied to a closed session.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
	})
}

func (s *Session) guard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.authFailed {
		return ErrAuthExpired
	}
	return nil
}

func (s *Session) observeFailure(op string, err error) {
	if api.IsAuth(err) {
		s.mu.Lock()
		s.authFailed = true
		s.mu.Unlock()
	}
	if s.logger != nil {
		s.logger.Warn(op+" failed", "conversation_id", s.conversationID, "error", err)
	}
}
