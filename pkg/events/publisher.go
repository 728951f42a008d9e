package events

import (
	"encoding/json"
	"log/slog"

	"github.com/carfin-ai/carfin/pkg/models"
)

// Publisher is the typed write surface over a Bus. Each method builds the
// corresponding payload, stamps type/session/timestamp, marshals once, and
// publishes. Publishing is best-effort by contract (absent sessions and
// terminal sessions swallow events), so no method returns an error.
type Publisher struct {
	bus *Bus
}

// NewPublisher creates a publisher bound to bus.
func NewPublisher(bus *Bus) *Publisher {
	return &Publisher{bus: bus}
}

func (p *Publisher) publish(sessionID, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		// Payload structs contain only marshalable fields; reaching this
		// is a programming error worth surfacing in logs.
		slog.Error("Failed to marshal event payload",
			"session_id", sessionID, "type", eventType, "error", err)
		return
	}
	p.bus.Publish(sessionID, Envelope{Type: eventType, Data: data})
}

// CollaborationStarted announces the run and the registered agent set.
func (p *Publisher) CollaborationStarted(sessionID string, agents []string) {
	p.publish(sessionID, EventTypeCollaborationStarted, CollaborationStartedPayload{
		Type:      EventTypeCollaborationStarted,
		SessionID: sessionID,
		Agents:    agents,
		Message:   "recommendation run started",
		Timestamp: now(),
	})
}

// AgentProgress reports one analyzer lifecycle step.
func (p *Publisher) AgentProgress(sessionID, agent, status string, progress float64, message string) {
	p.publish(sessionID, EventTypeAgentProgress, AgentProgressPayload{
		Type:      EventTypeAgentProgress,
		SessionID: sessionID,
		Agent:     agent,
		Status:    status,
		Progress:  progress,
		Message:   message,
		Timestamp: now(),
	})
}

// PredictorProgress reports a predictor lifecycle step.
func (p *Publisher) PredictorProgress(sessionID, predictor, status string, progress float64, message string) {
	p.publish(sessionID, EventTypePredictorProgress, PredictorProgressPayload{
		Type:      EventTypePredictorProgress,
		SessionID: sessionID,
		Predictor: predictor,
		Status:    status,
		Progress:  progress,
		Message:   message,
		Timestamp: now(),
	})
}

// PredictorCompleted is the predictor's successful final event.
func (p *Publisher) PredictorCompleted(sessionID string, result *models.PredictorResult) {
	p.publish(sessionID, EventTypePredictorCompleted, PredictorCompletedPayload{
		Type:       EventTypePredictorCompleted,
		SessionID:  sessionID,
		Predictor:  result.PredictorName,
		Confidence: result.Confidence,
		Candidates: len(result.Candidates),
		DurationMS: result.DurationMS,
		Timestamp:  now(),
	})
}

// PredictorError is the predictor's failed final event.
func (p *Publisher) PredictorError(sessionID, predictor string, kind models.ErrorKind, message string) {
	p.publish(sessionID, EventTypePredictorError, PredictorErrorPayload{
		Type:      EventTypePredictorError,
		SessionID: sessionID,
		Predictor: predictor,
		Kind:      kind,
		Message:   message,
		Timestamp: now(),
	})
}

// FusionStarted announces the merge step with the count of sources that
// reported a usable ranking.
func (p *Publisher) FusionStarted(sessionID string, sources int) {
	p.publish(sessionID, EventTypeFusionStarted, FusionStartedPayload{
		Type:      EventTypeFusionStarted,
		SessionID: sessionID,
		Sources:   sources,
		Timestamp: now(),
	})
}

// FusionCompleted reports the fusion outcome.
func (p *Publisher) FusionCompleted(sessionID, method string, candidates int) {
	p.publish(sessionID, EventTypeFusionCompleted, FusionCompletedPayload{
		Type:       EventTypeFusionCompleted,
		SessionID:  sessionID,
		Method:     method,
		Candidates: candidates,
		Timestamp:  now(),
	})
}

// RecommendationCompleted is the successful terminal event.
func (p *Publisher) RecommendationCompleted(sessionID string, result *models.FusedResult) {
	p.publish(sessionID, EventTypeRecommendationCompleted, RecommendationCompletedPayload{
		Type:      EventTypeRecommendationCompleted,
		SessionID: sessionID,
		Result:    result,
		Timestamp: now(),
	})
}

// Error is the failed terminal event.
func (p *Publisher) Error(sessionID string, kind models.ErrorKind, message string) {
	p.publish(sessionID, EventTypeError, ErrorPayload{
		Type:      EventTypeError,
		SessionID: sessionID,
		Kind:      kind,
		Message:   message,
		Timestamp: now(),
	})
}
