// Package inbox presents the current user's conversations with derived
// attention indicators. It is a read-only layer: it never mutates
// conversation state, and every indicator is recomputed from the latest
// fetched snapshot.
package inbox

import (
	"context"
	"log/slog"
	"sync"

	"waxtrade/internal/app/dto"
	"waxtrade/internal/app/notify"
	"waxtrade/internal/infra/api"
)

// Summary is one conversation row with its badge state.
type Summary struct {
	ConversationID      string
	Other               dto.UserRef
	Record              dto.RecordSummary
	UnreadCount         int
	PendingConfirmation bool
	TotalNotifications  int
}

// ListView owns a snapshot of the conversation list.
type ListView struct {
	client *api.Client
	logger *slog.Logger

	mu            sync.RWMutex
	conversations []dto.Conversation
}

// NewListView builds a list view over the given client.
func NewListView(client *api.Client, logger *slog.Logger) *ListView {
	return &ListView{client: client, logger: logger}
}

// Load fetches all conversations for the current user and replaces the
// snapshot. On failure the previous snapshot is kept.
func (v *ListView) Load(ctx context.Context) error {
	items, err := v.client.Conversations(ctx)
	if err != nil {
		if v.logger != nil {
			v.logger.Warn("load conversations failed", "error", err)
		}
		return err
	}
	v.mu.Lock()
	v.conversations = items
	v.mu.Unlock()
	return nil
}

// Conversations returns the current snapshot.
func (v *ListView) Conversations() []dto.Conversation {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]dto.Conversation(nil), v.conversations...)
}

// Summaries derives one badge row per conversation for the current user.
func (v *ListView) Summaries() []Summary {
	userID := v.client.Credential().UserID
	convs := v.Conversations()
	rows := make([]Summary, 0, len(convs))
	for _, conv := range convs {
		unread := notify.UnreadCount(conv, userID)
		pending := notify.HasPendingConfirmation(conv.TradeStatus, userID)
		total := unread
		if pending {
			total++
		}
		rows = append(rows, Summary{
			ConversationID:      conv.ID,
			Other:               conv.Other(userID),
			Record:              conv.Record,
			UnreadCount:         unread,
			PendingConfirmation: pending,
			TotalNotifications:  total,
		})
	}
	return rows
}
