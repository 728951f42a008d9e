package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/carfin-ai/carfin/pkg/events"
)

// StreamSession handles GET /api/v1/recommendations/:sessionId/stream. It
// attaches a subscriber to the session and relays its events as SSE frames
// until the session terminates, the subscriber overflows, or the client
// disconnects. Subscribing creates the session if needed, so clients may
// attach before starting the run.
func (s *Server) StreamSession(c *gin.Context) {
	sessionID := c.Param("sessionId")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "streaming unsupported"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := s.bus.Subscribe(sessionID)
	defer sub.Close()
	s.logger.Debug("Stream attached", "session_id", sessionID, "subscriber_id", sub.ID)

	keepAlive := time.NewTicker(s.cfg.KeepAliveInterval)
	defer keepAlive.Stop()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case env, open := <-sub.Events():
			if !open {
				// An overflow drop still ends the stream with a frame the
				// client can act on; a terminal close already delivered its
				// terminal event.
				if sub.Reason() == events.ReasonOverflow {
					writeFrame(c, flusher, events.OverflowEnvelope(sessionID))
				}
				return
			}
			writeFrame(c, flusher, env)
			keepAlive.Reset(s.cfg.KeepAliveInterval)
		case <-keepAlive.C:
			writeFrame(c, flusher, events.KeepAliveEnvelope(sessionID))
		case <-clientGone:
			s.logger.Debug("Stream client disconnected",
				"session_id", sessionID, "subscriber_id", sub.ID)
			return
		}
	}
}

// writeFrame emits one SSE frame: event name line, data line, blank line.
func writeFrame(c *gin.Context, flusher http.Flusher, env events.Envelope) {
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", env.Type, env.Data)
	flusher.Flush()
}
