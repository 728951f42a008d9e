package api

import "github.com/carfin-ai/carfin/pkg/models"

// Request limit bounds. A zero limit falls back to the configured
// fusion top-K.
const (
	maxRequestLimit = 50
)

// StartRecommendationRequest is the body of POST /api/v1/recommendations.
type StartRecommendationRequest struct {
	UserProfile *models.UserProfile `json:"userProfile" binding:"required"`
	SessionID   string              `json:"sessionId"`
	Limit       int                 `json:"limit"`
}

// StartRecommendationResponse acknowledges an accepted run and tells the
// client where to attach for events.
type StartRecommendationResponse struct {
	Success    bool   `json:"success"`
	SessionID  string `json:"sessionId"`
	StreamPath string `json:"streamPath"`
}

// CancelResponse acknowledges a cancellation request.
type CancelResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId"`
}

// ErrorResponse is the uniform error body. Success is always false.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
