package api

import (
	"context"
	"net/http"

	"waxtrade/internal/app/dto"
)

// InitiateTrade proposes completing the trade behind the conversation.
func (c *Client) InitiateTrade(ctx context.Context, conversationID string) (dto.TradeStatus, error) {
	var status dto.TradeStatus
	err := c.do(ctx, "initiate trade", http.MethodPost, "/trades/initiate", dto.TradeActionRequest{
		ConversationID: conversationID,
	}, &status)
	if err != nil {
		return dto.TradeStatus{}, err
	}
	return status, nil
}

// ConfirmTrade confirms a completion proposed by the other participant.
func (c *Client) ConfirmTrade(ctx context.Context, conversationID string) (dto.TradeStatus, error) {
	var status dto.TradeStatus
	err := c.do(ctx, "confirm trade", http.MethodPost, "/trades/confirm", dto.TradeActionRequest{
		ConversationID: conversationID,
	}, &status)
	if err != nil {
		return dto.TradeStatus{}, err
	}
	return status, nil
}

// SubmitFeedback rates the counterpart after a completed trade.
func (c *Client) SubmitFeedback(ctx context.Context, conversationID string, rating int, comment string) error {
	return c.do(ctx, "submit feedback", http.MethodPost, "/trades/feedback", dto.FeedbackRequest{
		ConversationID: conversationID,
		Rating:         rating,
		Comment:        comment,
	}, nil)
}
