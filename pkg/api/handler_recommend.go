package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/carfin-ai/carfin/pkg/models"
)

// StartRecommendation handles POST /api/v1/recommendations. It validates
// the profile, opens the session stream, and launches the orchestration in
// the background. The session is open before the response is written, so a
// client that connects to the stream path immediately never misses the run.
func (s *Server) StartRecommendation(c *gin.Context) {
	var req StartRecommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	req.UserProfile.Normalize()
	if err := req.UserProfile.Validate(); err != nil {
		respondError(c, err)
		return
	}
	if req.Limit < 0 || req.Limit > maxRequestLimit {
		respondError(c, models.NewValidationError("limit", "must be between 0 and 50"))
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	ctx, cancel := context.WithCancel(context.Background())
	if !s.registerCancel(sessionID, cancel) {
		cancel()
		c.JSON(http.StatusConflict, ErrorResponse{Error: "session already has a recommendation run in flight"})
		return
	}

	// Open the stream before acknowledging so the ack's streamPath is live.
	s.bus.Open(sessionID)

	go func() {
		defer func() {
			if storedCancel, ok := s.takeCancel(sessionID); ok {
				storedCancel()
			}
		}()
		if _, err := s.recommender.Recommend(ctx, sessionID, req.UserProfile, req.Limit); err != nil {
			if errors.Is(err, models.ErrCancelled) {
				return
			}
			s.logger.Error("Recommendation run failed", "session_id", sessionID, "error", err)
		}
	}()

	c.JSON(http.StatusOK, StartRecommendationResponse{
		Success:    true,
		SessionID:  sessionID,
		StreamPath: "/api/v1/recommendations/" + sessionID + "/stream",
	})
}

// CancelSession handles POST /api/v1/recommendations/:sessionId/cancel.
// Cancelling a session with no run in flight is a 404.
func (s *Server) CancelSession(c *gin.Context) {
	sessionID := c.Param("sessionId")

	cancel, ok := s.takeCancel(sessionID)
	if !ok {
		respondError(c, models.ErrNoSuchSession)
		return
	}
	cancel()
	s.logger.Info("Recommendation run cancellation requested", "session_id", sessionID)

	c.JSON(http.StatusOK, CancelResponse{Success: true, SessionID: sessionID})
}
