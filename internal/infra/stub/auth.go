package stub

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"waxtrade/internal/app/dto"
)

const principalKey = "waxtrade.principal"

func (s *Server) register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Email) == "" || len(req.Password) < 8 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username, email and a password of 8+ chars are required"})
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}
	user, err := s.Store.CreateUser(req.Username, req.Email, string(hash))
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}
	s.respondAuth(c, http.StatusCreated, user)
}

func (s *Server) login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	user, err := s.Store.UserByEmail(req.Email)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	s.respondAuth(c, http.StatusOK, user)
}

func (s *Server) respondAuth(c *gin.Context, status int, user *User) {
	token, err := s.Signer.Sign(user.ID, user.Username, s.Store.now())
	if err != nil {
		if s.Logger != nil {
			s.Logger.Error("token mint failed", "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(status, dto.AuthResponse{Token: token, User: profileOf(user)})
}

func (s *Server) getUser(c *gin.Context) {
	user, err := s.Store.UserByID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	profile := profileOf(user)
	if principalID(c) != user.ID {
		profile.Email = ""
	}
	c.JSON(http.StatusOK, profile)
}

// requireAuth verifies the bearer token and attaches the user id.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
			return
		}
		cred, err := s.Signer.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		if _, err := s.Store.UserByID(cred.UserID); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
			return
		}
		c.Set(principalKey, cred.UserID)
		c.Next()
	}
}

// idempotency replays the recorded response for a repeated mutation key.
func (s *Server) idempotency() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet {
			c.Next()
			return
		}
		key := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		if key == "" {
			c.Next()
			return
		}
		key = principalID(c) + ":" + key
		if status, body, ok := s.Store.IdempotencyGet(key); ok {
			c.Data(status, "application/json", body)
			c.Abort()
			return
		}
		recorder := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = recorder
		c.Next()
		if status := c.Writer.Status(); status < 400 {
			s.Store.IdempotencySave(key, status, recorder.buf.Bytes())
		}
	}
}

type bodyRecorder struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (r *bodyRecorder) Write(p []byte) (int, error) {
	r.buf.Write(p)
	return r.ResponseWriter.Write(p)
}

func principalID(c *gin.Context) string {
	return c.GetString(principalKey)
}

func profileOf(user *User) dto.UserProfile {
	return dto.UserProfile{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		RecordIDs: append([]string(nil), user.RecordIDs...),
		CreatedAt: user.CreatedAt,
	}
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
