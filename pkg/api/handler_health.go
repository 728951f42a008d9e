package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/carfin-ai/carfin/pkg/database"
	"github.com/carfin-ai/carfin/pkg/version"
)

// Health handles GET /health. Reports service liveness, live session
// count, and database pool health when a database is wired.
func (s *Server) Health(c *gin.Context) {
	body := gin.H{
		"status":        "healthy",
		"service":       version.AppName,
		"version":       version.GitCommit,
		"live_sessions": s.bus.Len(),
	}

	if s.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		dbHealth, err := database.Health(ctx, s.db.DB())
		body["database"] = dbHealth
		if err != nil {
			body["status"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
	}

	c.JSON(http.StatusOK, body)
}
