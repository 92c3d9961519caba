// Package stub is an in-memory implementation of the waxtrade backend REST
// contract. It exists for local development and tests: it enforces the same
// server-side trade invariants the real backend does, without a database.
package stub

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"waxtrade/internal/infra/obs"
	"waxtrade/internal/infra/security"
)

// Server bundles the stub backend's state and collaborators.
type Server struct {
	Store  *Store
	Signer security.TokenSigner
	Hub    *Hub
	Logger *slog.Logger

	// covers holds uploaded image bytes keyed by object name.
	covers sync.Map
}

// NewServer builds a stub backend with a fresh store.
func NewServer(secret string, tokenTTL time.Duration, logger *slog.Logger) *Server {
	return &Server{
		Store:  NewStore(),
		Signer: security.TokenSigner{Secret: []byte(secret), TTL: tokenTTL},
		Hub:    NewHub(logger),
		Logger: logger,
	}
}

// Router assembles the gin engine with the full route surface.
func (s *Server) Router(env string) *gin.Engine {
	configureGinMode(env)

	router := gin.New()
	router.Use(gin.Recovery())
	mw := obs.Middleware{Logger: s.Logger}
	router.Use(mw.RequestID())
	router.Use(mw.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))

	health := obs.HealthHandlers{Ready: func() error { return nil }}
	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	api.POST("/users/register", s.register)
	api.POST("/users/login", s.login)

	authed := api.Group("")
	authed.Use(s.requireAuth())
	authed.Use(s.idempotency())

	authed.GET("/users/:id", s.getUser)

	authed.GET("/records", s.listRecords)
	authed.GET("/records/:id", s.getRecord)
	authed.POST("/records/create", s.createRecord)
	authed.GET("/uploads/cover-url", s.coverUploadURL)

	authed.GET("/messages/conversations", s.listConversations)
	authed.POST("/messages/conversations", s.startConversation)
	authed.GET("/messages/conversation/:id", s.getConversation)
	authed.POST("/messages/conversation/:id/mark-read", s.markRead)
	authed.POST("/messages/send", s.sendMessage)
	authed.GET("/messages/unread-count", s.unreadCount)

	authed.POST("/trades/initiate", s.initiateTrade)
	authed.POST("/trades/confirm", s.confirmTrade)
	authed.POST("/trades/feedback", s.submitFeedback)

	authed.GET("/ws", s.Hub.Serve)

	// upload target for tickets issued by coverUploadURL
	router.PUT("/uploads/covers/:name", s.receiveCover)

	return router
}

func configureGinMode(env string) {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test", "testing":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}
}
