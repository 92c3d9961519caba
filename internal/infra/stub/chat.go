package stub

import (
	"errors"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"waxtrade/internal/app/dto"
)

func (s *Server) listConversations(c *gin.Context) {
	c.JSON(http.StatusOK, s.Store.ConversationsFor(principalID(c)))
}

func (s *Server) getConversation(c *gin.Context) {
	conv, err := s.Store.ConversationFor(principalID(c), c.Param("id"))
	if err != nil {
		s.respondChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (s *Server) startConversation(c *gin.Context) {
	var req dto.StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.RecordID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "record_id required"})
		return
	}
	conv, err := s.Store.StartConversation(principalID(c), req.RecordID)
	if err != nil {
		if errors.Is(err, ErrOwnRecord) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot start a conversation about your own record"})
			return
		}
		s.respondChatError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

func (s *Server) markRead(c *gin.Context) {
	if err := s.Store.MarkRead(principalID(c), c.Param("id")); err != nil {
		s.respondChatError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) sendMessage(c *gin.Context) {
	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message text required"})
		return
	}
	msg, err := s.Store.AppendMessage(principalID(c), req.ConversationID, req.Text)
	if err != nil {
		s.respondChatError(c, err)
		return
	}
	s.broadcastUpdate(req.ConversationID)
	c.JSON(http.StatusCreated, msg)
}

func (s *Server) unreadCount(c *gin.Context) {
	c.JSON(http.StatusOK, dto.UnreadSummary{UnreadCount: s.Store.UnreadTotal(principalID(c))})
}

// broadcastUpdate pushes a conversation-updated hint to both participants.
func (s *Server) broadcastUpdate(conversationID string) {
	if s.Hub == nil {
		return
	}
	for _, p := range s.Store.ParticipantsOf(conversationID) {
		s.Hub.Notify(p.ID, conversationID)
	}
}

func (s *Server) respondChatError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
	case errors.Is(err, ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
	default:
		if s.Logger != nil {
			s.Logger.Error("chat request failed", "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
