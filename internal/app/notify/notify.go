// Package notify derives attention indicators and action guards from a
// fetched conversation snapshot. Everything here is a pure function of the
// snapshot and the viewing user: indicators are recomputed on every fetch
// rather than kept as incremental counters, so they can never drift from
// server state.
package notify

import (
	"errors"

	"waxtrade/internal/app/dto"
)

var (
	// ErrInvalidRating is returned when feedback carries a rating outside 1..5.
	ErrInvalidRating = errors.New("notify: rating must be between 1 and 5")
	// ErrFeedbackExists is returned when the user already left feedback for the trade.
	ErrFeedbackExists = errors.New("notify: feedback already submitted for this trade")
	// ErrTradeNotCompleted is returned when feedback is attempted before completion.
	ErrTradeNotCompleted = errors.New("notify: trade is not completed")
)

// UnreadCount counts messages the given user has not read. Messages sent by
// the user are never unread for them, regardless of the read set.
func UnreadCount(conv dto.Conversation, userID string) int {
	n := 0
	for _, msg := range conv.Messages {
		if msg.Sender.ID == userID {
			continue
		}
		if !msg.ReadByUser(userID) {
			n++
		}
	}
	return n
}

// HasPendingConfirmation reports whether the other party initiated trade
// completion and is waiting on this user. The initiator never sees the flag.
func HasPendingConfirmation(status dto.TradeStatus, userID string) bool {
	return status.InitiatedBy != "" &&
		!status.IsCompleted &&
		status.InitiatedBy != userID
}

// TotalNotifications is the combined badge count for one conversation:
// unread messages plus one if a confirmation is pending on this user.
func TotalNotifications(conv dto.Conversation, userID string) int {
	total := UnreadCount(conv, userID)
	if HasPendingConfirmation(conv.TradeStatus, userID) {
		total++
	}
	return total
}

// CanInitiate reports whether the user may propose trade completion:
// nobody has initiated yet and the trade is still open.
func CanInitiate(status dto.TradeStatus) bool {
	return status.InitiatedBy == "" && !status.IsCompleted
}

// CanConfirm reports whether the user may confirm completion. A participant
// can never confirm their own initiation.
func CanConfirm(status dto.TradeStatus, userID string) bool {
	return status.InitiatedBy != "" &&
		status.InitiatedBy != userID &&
		!status.IsCompleted
}

// ShouldPromptFeedback reports whether the feedback prompt applies to the
// user after a refresh: the trade completed and they have not yet rated it.
func ShouldPromptFeedback(status dto.TradeStatus, userID string) bool {
	return status.IsCompleted && !status.FeedbackFrom(userID)
}

// ValidateFeedback checks a feedback submission against the trade state.
func ValidateFeedback(status dto.TradeStatus, userID string, rating int) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}
	if !status.IsCompleted {
		return ErrTradeNotCompleted
	}
	if status.FeedbackFrom(userID) {
		return ErrFeedbackExists
	}
	return nil
}
