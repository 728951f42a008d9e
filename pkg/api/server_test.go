package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carfin-ai/carfin/pkg/config"
	"github.com/carfin-ai/carfin/pkg/events"
	"github.com/carfin-ai/carfin/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRecommender struct {
	run func(ctx context.Context, sessionID string, profile *models.UserProfile, limit int) (*models.FusedResult, error)
}

func (f *fakeRecommender) Recommend(ctx context.Context, sessionID string, profile *models.UserProfile, limit int) (*models.FusedResult, error) {
	if f.run == nil {
		return &models.FusedResult{Method: models.FusionMethodEmpty}, nil
	}
	return f.run(ctx, sessionID, profile, limit)
}

func newTestServer(t *testing.T, rec Recommender, keepAlive time.Duration) (*Server, *events.Bus) {
	t.Helper()
	bus := events.NewBus(events.Config{PerSubscriberBuffer: 256, SessionReapGrace: 50 * time.Millisecond})
	cfg := config.ServerConfig{
		Host:              "127.0.0.1",
		Port:              8080,
		AllowedOrigins:    []string{"http://localhost:3000"},
		KeepAliveInterval: keepAlive,
	}
	return NewServer(cfg, bus, rec, nil, slog.New(slog.DiscardHandler)), bus
}

func validBody(t *testing.T, sessionID string) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"userProfile": map[string]any{
			"budget":  map[string]int{"min": 10_000_000, "max": 30_000_000},
			"purpose": "family",
		},
		"sessionId": sessionID,
	})
	require.NoError(t, err)
	return bytes.NewReader(body)
}

func TestStartRecommendation_AcceptsAndAcksStreamPath(t *testing.T) {
	started := make(chan string, 1)
	rec := &fakeRecommender{run: func(_ context.Context, sessionID string, profile *models.UserProfile, limit int) (*models.FusedResult, error) {
		started <- sessionID
		return &models.FusedResult{Method: models.FusionMethodEmpty}, nil
	}}
	server, bus := newTestServer(t, rec, time.Minute)
	router := server.Router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", validBody(t, "s-42"))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp StartRecommendationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "s-42", resp.SessionID)
	assert.Equal(t, "/api/v1/recommendations/s-42/stream", resp.StreamPath)

	// The session is open before the handler responds.
	assert.Equal(t, 1, bus.Len())

	select {
	case got := <-started:
		assert.Equal(t, "s-42", got)
	case <-time.After(2 * time.Second):
		t.Fatal("orchestration never started")
	}
}

func TestStartRecommendation_GeneratesSessionID(t *testing.T) {
	server, _ := newTestServer(t, &fakeRecommender{}, time.Minute)
	router := server.Router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", validBody(t, ""))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp StartRecommendationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
	assert.Contains(t, resp.StreamPath, resp.SessionID)
}

func TestStartRecommendation_RejectsInvalidProfile(t *testing.T) {
	server, _ := newTestServer(t, &fakeRecommender{}, time.Minute)
	router := server.Router()

	body, err := json.Marshal(map[string]any{
		"userProfile": map[string]any{
			"budget":  map[string]int{"min": 30_000_000, "max": 10_000_000},
			"purpose": "family",
		},
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "budget.min")
}

func TestStartRecommendation_RejectsMissingProfileAndBadLimit(t *testing.T) {
	server, _ := newTestServer(t, &fakeRecommender{}, time.Minute)
	router := server.Router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body, err := json.Marshal(map[string]any{
		"userProfile": map[string]any{
			"budget":  map[string]int{"min": 1, "max": 2},
			"purpose": "general",
		},
		"limit": 500,
	})
	require.NoError(t, err)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "limit")
}

func TestStartRecommendation_RejectsDuplicateInFlightRun(t *testing.T) {
	release := make(chan struct{})
	rec := &fakeRecommender{run: func(ctx context.Context, _ string, _ *models.UserProfile, _ int) (*models.FusedResult, error) {
		<-release
		return &models.FusedResult{Method: models.FusionMethodEmpty}, nil
	}}
	server, _ := newTestServer(t, rec, time.Minute)
	router := server.Router()
	defer close(release)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", validBody(t, "dup"))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", validBody(t, "dup"))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCancelSession_CancelsInFlightRun(t *testing.T) {
	cancelled := make(chan struct{})
	rec := &fakeRecommender{run: func(ctx context.Context, _ string, _ *models.UserProfile, _ int) (*models.FusedResult, error) {
		<-ctx.Done()
		close(cancelled)
		return nil, fmt.Errorf("run: %w", models.ErrCancelled)
	}}
	server, _ := newTestServer(t, rec, time.Minute)
	router := server.Router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", validBody(t, "s-cancel"))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/recommendations/s-cancel/cancel", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("run context was never cancelled")
	}

	// A second cancel finds nothing in flight.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/recommendations/s-cancel/cancel", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelSession_UnknownSessionIs404(t *testing.T) {
	server, _ := newTestServer(t, &fakeRecommender{}, time.Minute)
	router := server.Router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations/ghost/cancel", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth_WithoutDatabase(t *testing.T) {
	server, bus := newTestServer(t, &fakeRecommender{}, time.Minute)
	router := server.Router()
	bus.Open("s1")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "carfin", body["service"])
	assert.InDelta(t, 1, body["live_sessions"], 0.1)
}

func TestCORS_AllowsConfiguredOrigin(t *testing.T) {
	server, _ := newTestServer(t, &fakeRecommender{}, time.Minute)
	router := server.Router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/recommendations", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodOptions, "/api/v1/recommendations", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

// sseFrame is one parsed server-sent event.
type sseFrame struct {
	Event string
	Data  string
}

// readFrames parses SSE frames from body until wanted frames arrive, the
// stream ends, or the deadline passes.
func readFrames(t *testing.T, body io.Reader, wanted int) []sseFrame {
	t.Helper()
	scanner := bufio.NewScanner(body)
	var frames []sseFrame
	var current sseFrame
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.Event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.Data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if current.Event != "" {
				frames = append(frames, current)
				current = sseFrame{}
				if len(frames) >= wanted {
					return frames
				}
			}
		}
	}
	return frames
}

func TestStreamSession_RelaysEventsUntilTerminal(t *testing.T) {
	rec := &fakeRecommender{}
	server, bus := newTestServer(t, rec, time.Minute)
	ts := httptest.NewServer(server.Router())
	defer ts.Close()

	pub := events.NewPublisher(bus)
	bus.Open("s-stream")

	resp, err := http.Get(ts.URL + "/api/v1/recommendations/s-stream/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	go func() {
		// Give the subscriber a moment to attach, then run the flow.
		time.Sleep(50 * time.Millisecond)
		pub.CollaborationStarted("s-stream", []string{"vehicle_expert"})
		pub.AgentProgress("s-stream", "vehicle_expert", events.AgentStatusCompleted, 1.0, "")
		pub.RecommendationCompleted("s-stream", &models.FusedResult{
			Method:        models.FusionMethodWeightedAverage,
			Candidates:    []models.FinalCandidate{{VehicleID: "v1", FinalScore: 0.8}},
			Contributions: map[string]float64{"vehicle_expert": 0.9},
		})
	}()

	frames := readFrames(t, resp.Body, 4)
	require.Len(t, frames, 4)
	assert.Equal(t, events.EventTypeConnectionEstablished, frames[0].Event)
	assert.Equal(t, events.EventTypeCollaborationStarted, frames[1].Event)
	assert.Equal(t, events.EventTypeAgentProgress, frames[2].Event)
	assert.Equal(t, events.EventTypeRecommendationCompleted, frames[3].Event)

	var final events.RecommendationCompletedPayload
	require.NoError(t, json.Unmarshal([]byte(frames[3].Data), &final))
	require.NotNil(t, final.Result)
	assert.Equal(t, "v1", final.Result.Candidates[0].VehicleID)
}

func TestStreamSession_EmitsKeepAliveOnIdle(t *testing.T) {
	server, bus := newTestServer(t, &fakeRecommender{}, 30*time.Millisecond)
	ts := httptest.NewServer(server.Router())
	defer ts.Close()
	bus.Open("s-idle")

	resp, err := http.Get(ts.URL + "/api/v1/recommendations/s-idle/stream")
	require.NoError(t, err)
	defer resp.Body.Close()

	frames := readFrames(t, resp.Body, 3)
	require.Len(t, frames, 3)
	assert.Equal(t, events.EventTypeConnectionEstablished, frames[0].Event)
	assert.Equal(t, events.EventTypeKeepAlive, frames[1].Event)
	assert.Equal(t, events.EventTypeKeepAlive, frames[2].Event)

	var ka events.KeepAlivePayload
	require.NoError(t, json.Unmarshal([]byte(frames[1].Data), &ka))
	assert.Equal(t, "s-idle", ka.SessionID)
}

func TestStreamSession_OverflowDeliversErrorFrame(t *testing.T) {
	bus := events.NewBus(events.Config{PerSubscriberBuffer: 1, SessionReapGrace: 50 * time.Millisecond})
	cfg := config.ServerConfig{Host: "127.0.0.1", Port: 8080, KeepAliveInterval: time.Minute}
	server := NewServer(cfg, bus, &fakeRecommender{}, nil, slog.New(slog.DiscardHandler))
	ts := httptest.NewServer(server.Router())
	defer ts.Close()

	pub := events.NewPublisher(bus)
	bus.Open("s-burst")

	resp, err := http.Get(ts.URL + "/api/v1/recommendations/s-burst/stream")
	require.NoError(t, err)
	defer resp.Body.Close()

	// Burst far past the buffer before the handler can drain.
	for i := 0; i < 200; i++ {
		pub.AgentProgress("s-burst", "vehicle_expert", events.AgentStatusAnalyzing, 0.5, "")
	}

	deadline := time.After(5 * time.Second)
	got := make(chan []sseFrame, 1)
	go func() { got <- readFrames(t, resp.Body, 1000) }()

	select {
	case frames := <-got:
		require.NotEmpty(t, frames)
		last := frames[len(frames)-1]
		require.Equal(t, events.EventTypeError, last.Event)
		var payload events.ErrorPayload
		require.NoError(t, json.Unmarshal([]byte(last.Data), &payload))
		assert.Equal(t, models.ErrorKindOverflow, payload.Kind)
	case <-deadline:
		t.Fatal("stream never ended after overflow")
	}
}
