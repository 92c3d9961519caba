package stub

import (
	"errors"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"waxtrade/internal/app/dto"
)

func (s *Server) initiateTrade(c *gin.Context) {
	conversationID, ok := tradeConversationID(c)
	if !ok {
		return
	}
	status, err := s.Store.InitiateTrade(principalID(c), conversationID)
	if err != nil {
		s.respondTradeError(c, err)
		return
	}
	s.broadcastUpdate(conversationID)
	c.JSON(http.StatusOK, status)
}

func (s *Server) confirmTrade(c *gin.Context) {
	conversationID, ok := tradeConversationID(c)
	if !ok {
		return
	}
	status, err := s.Store.ConfirmTrade(principalID(c), conversationID)
	if err != nil {
		s.respondTradeError(c, err)
		return
	}
	s.broadcastUpdate(conversationID)
	c.JSON(http.StatusOK, status)
}

func (s *Server) submitFeedback(c *gin.Context) {
	var req dto.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ConversationID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation_id required"})
		return
	}
	if err := s.Store.SubmitFeedback(principalID(c), req.ConversationID, req.Rating, req.Comment); err != nil {
		s.respondTradeError(c, err)
		return
	}
	s.broadcastUpdate(req.ConversationID)
	c.Status(http.StatusNoContent)
}

func tradeConversationID(c *gin.Context) (string, bool) {
	var req dto.TradeActionRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ConversationID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation_id required"})
		return "", false
	}
	return req.ConversationID, true
}

func (s *Server) respondTradeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
	case errors.Is(err, ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
	case errors.Is(err, ErrAlreadyInitiated):
		c.JSON(http.StatusConflict, gin.H{"error": "trade completion already initiated"})
	case errors.Is(err, ErrTradeCompleted):
		c.JSON(http.StatusConflict, gin.H{"error": "trade already completed"})
	case errors.Is(err, ErrNotInitiated):
		c.JSON(http.StatusConflict, gin.H{"error": "trade completion has not been initiated"})
	case errors.Is(err, ErrSelfConfirm):
		c.JSON(http.StatusConflict, gin.H{"error": "initiator cannot confirm their own proposal"})
	case errors.Is(err, ErrTradeOpen):
		c.JSON(http.StatusConflict, gin.H{"error": "trade is not completed yet"})
	case errors.Is(err, ErrDuplicateFeedback):
		c.JSON(http.StatusConflict, gin.H{"error": "feedback already submitted"})
	case errors.Is(err, ErrBadRating):
		c.JSON(http.StatusBadRequest, gin.H{"error": "rating must be between 1 and 5"})
	default:
		if s.Logger != nil {
			s.Logger.Error("trade request failed", "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
