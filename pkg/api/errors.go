package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/carfin-ai/carfin/pkg/models"
)

// respondError maps domain errors to HTTP error responses.
func respondError(c *gin.Context, err error) {
	var validErr *models.ValidationError
	if errors.As(err, &validErr) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: validErr.Error()})
		return
	}
	if errors.Is(err, models.ErrNoSuchSession) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no such session"})
		return
	}

	// Unexpected error
	slog.Error("Unexpected handler error", "error", err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}
