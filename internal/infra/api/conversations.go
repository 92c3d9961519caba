package api

import (
	"context"
	"net/http"

	"waxtrade/internal/app/dto"
)

// Conversations lists every conversation the current user participates in.
func (c *Client) Conversations(ctx context.Context) ([]dto.Conversation, error) {
	var items []dto.Conversation
	if err := c.do(ctx, "list conversations", http.MethodGet, "/messages/conversations", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Conversation fetches one conversation by id.
func (c *Client) Conversation(ctx context.Context, id string) (dto.Conversation, error) {
	var conv dto.Conversation
	if err := c.do(ctx, "get conversation", http.MethodGet, "/messages/conversation/"+id, nil, &conv); err != nil {
		return dto.Conversation{}, err
	}
	return conv, nil
}

// StartConversation opens (or returns) the thread between the current user
// and the owner of the given record.
func (c *Client) StartConversation(ctx context.Context, recordID string) (dto.Conversation, error) {
	var conv dto.Conversation
	err := c.do(ctx, "start conversation", http.MethodPost, "/messages/conversations", dto.StartConversationRequest{
		RecordID: recordID,
	}, &conv)
	if err != nil {
		return dto.Conversation{}, err
	}
	return conv, nil
}

// MarkRead marks every message in the conversation as read by the current user.
func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	return c.do(ctx, "mark read", http.MethodPost, "/messages/conversation/"+conversationID+"/mark-read", nil, nil)
}

// SendMessage appends a message to the conversation. The server assigns id
// and timestamp; callers observe the result through the next fetch.
func (c *Client) SendMessage(ctx context.Context, conversationID, text string) error {
	return c.do(ctx, "send message", http.MethodPost, "/messages/send", dto.SendMessageRequest{
		ConversationID: conversationID,
		Text:           text,
	}, nil)
}

// UnreadCount returns the total number of unread messages across all
// conversations of the current user.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var summary dto.UnreadSummary
	if err := c.do(ctx, "unread count", http.MethodGet, "/messages/unread-count", nil, &summary); err != nil {
		return 0, err
	}
	return summary.UnreadCount, nil
}
