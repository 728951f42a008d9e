// Package api is the HTTP surface: the recommendation start endpoint, the
// per-session SSE stream, cancellation, and health.
package api

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/carfin-ai/carfin/pkg/config"
	"github.com/carfin-ai/carfin/pkg/database"
	"github.com/carfin-ai/carfin/pkg/events"
	"github.com/carfin-ai/carfin/pkg/models"
)

// Recommender runs one full recommendation flow for a session. Satisfied
// by orchestrator.Orchestrator.
type Recommender interface {
	Recommend(ctx context.Context, sessionID string, profile *models.UserProfile, limit int) (*models.FusedResult, error)
}

// Server represents the API server.
type Server struct {
	cfg         config.ServerConfig
	bus         *events.Bus
	recommender Recommender
	db          *database.Client
	logger      *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewServer creates a new API server. db may be nil when the service runs
// without a database (health then reports only the event bus).
func NewServer(cfg config.ServerConfig, bus *events.Bus, recommender Recommender, db *database.Client, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:         cfg,
		bus:         bus,
		recommender: recommender,
		db:          db,
		logger:      logger,
		cancels:     make(map[string]context.CancelFunc),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(s.cfg.AllowedOrigins))

	router.GET("/health", s.Health)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/recommendations", s.StartRecommendation)
		v1.GET("/recommendations/:sessionId/stream", s.StreamSession)
		v1.POST("/recommendations/:sessionId/cancel", s.CancelSession)
	}
	return router
}

// registerCancel stores the run's cancel func so the cancel endpoint can
// find it. Returns false if the session already has a live run.
func (s *Server) registerCancel(sessionID string, cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.cancels[sessionID]; exists {
		return false
	}
	s.cancels[sessionID] = cancel
	return true
}

// takeCancel removes and returns the cancel func for sessionID.
func (s *Server) takeCancel(sessionID string) (context.CancelFunc, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancel, ok := s.cancels[sessionID]
	if ok {
		delete(s.cancels, sessionID)
	}
	return cancel, ok
}

// corsMiddleware handles cross-origin requests from the marketplace
// frontends listed in allowedOrigins.
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowed[origin] || allowed["*"]) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
