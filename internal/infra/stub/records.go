package stub

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"waxtrade/internal/app/dto"
)

func (s *Server) listRecords(c *gin.Context) {
	c.JSON(http.StatusOK, s.Store.Records())
}

func (s *Server) getRecord(c *gin.Context) {
	rec, err := s.Store.RecordByID(c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) createRecord(c *gin.Context) {
	var req dto.CreateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Artist) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and artist are required"})
		return
	}
	rec, err := s.Store.CreateRecord(principalID(c), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// coverUploadURL issues a loopback "presigned" slot served by receiveCover.
// The real backend hands out object-store URLs here; the contract for the
// client is the same either way.
func (s *Server) coverUploadURL(c *gin.Context) {
	filename := strings.TrimSpace(c.Query("filename"))
	if filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "filename required"})
		return
	}
	name := uuid.NewString() + path.Ext(path.Base(filename))
	base := requestBaseURL(c)
	c.JSON(http.StatusOK, dto.UploadTicket{
		UploadURL: base + "/uploads/covers/" + name,
		PublicURL: base + "/uploads/covers/" + name,
	})
}

func (s *Server) receiveCover(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 10<<20))
	if err != nil || len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty upload"})
		return
	}
	s.covers.Store(c.Param("name"), body)
	c.Status(http.StatusOK)
}

func requestBaseURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, c.Request.Host)
}
