package events

import (
	"encoding/json"
	"time"

	"github.com/carfin-ai/carfin/pkg/models"
)

// ConnectionEstablishedPayload is the synthetic first event every
// subscriber receives, regardless of how late it attached.
type ConnectionEstablishedPayload struct {
	Type         string `json:"type"`
	SessionID    string `json:"session_id"`
	SubscriberID string `json:"subscriber_id"`
	Timestamp    string `json:"timestamp"`
}

// CollaborationStartedPayload opens an orchestration run.
type CollaborationStartedPayload struct {
	Type      string   `json:"type"`
	SessionID string   `json:"session_id"`
	Agents    []string `json:"agents"`
	Message   string   `json:"message,omitempty"`
	Timestamp string   `json:"timestamp"`
}

// AgentProgressPayload reports one analyzer's lifecycle. Status is one of
// the AgentStatus* constants; Progress is within [0,1] and non-decreasing
// for non-error statuses within one run.
type AgentProgressPayload struct {
	Type      string  `json:"type"`
	SessionID string  `json:"session_id"`
	Agent     string  `json:"agent"`
	Status    string  `json:"status"`
	Progress  float64 `json:"progress"`
	Message   string  `json:"message,omitempty"`
	Timestamp string  `json:"timestamp"`
}

// PredictorProgressPayload mirrors AgentProgressPayload on the predictor
// channel.
type PredictorProgressPayload struct {
	Type      string  `json:"type"`
	SessionID string  `json:"session_id"`
	Predictor string  `json:"predictor"`
	Status    string  `json:"status"`
	Progress  float64 `json:"progress"`
	Message   string  `json:"message,omitempty"`
	Timestamp string  `json:"timestamp"`
}

// PredictorCompletedPayload is the predictor's successful final event.
type PredictorCompletedPayload struct {
	Type       string  `json:"type"`
	SessionID  string  `json:"session_id"`
	Predictor  string  `json:"predictor"`
	Confidence float64 `json:"confidence"`
	Candidates int     `json:"candidates"`
	DurationMS int64   `json:"duration_ms"`
	Timestamp  string  `json:"timestamp"`
}

// PredictorErrorPayload is the predictor's failed final event.
type PredictorErrorPayload struct {
	Type      string           `json:"type"`
	SessionID string           `json:"session_id"`
	Predictor string           `json:"predictor"`
	Kind      models.ErrorKind `json:"kind"`
	Message   string           `json:"message"`
	Timestamp string           `json:"timestamp"`
}

// FusionStartedPayload announces the merge of collected source results.
type FusionStartedPayload struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Sources   int    `json:"sources"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

// FusionCompletedPayload reports the fusion outcome.
type FusionCompletedPayload struct {
	Type       string `json:"type"`
	SessionID  string `json:"session_id"`
	Method     string `json:"method"`
	Candidates int    `json:"candidates"`
	Timestamp  string `json:"timestamp"`
}

// RecommendationCompletedPayload is the successful terminal event,
// carrying the full fused result.
type RecommendationCompletedPayload struct {
	Type      string              `json:"type"`
	SessionID string              `json:"session_id"`
	Result    *models.FusedResult `json:"result"`
	Timestamp string              `json:"timestamp"`
}

// ErrorPayload is the failed terminal event. Kind follows the error
// taxonomy; the overflow disconnect marker uses Kind=overflow.
type ErrorPayload struct {
	Type      string           `json:"type"`
	SessionID string           `json:"session_id"`
	Kind      models.ErrorKind `json:"kind"`
	Message   string           `json:"message"`
	Timestamp string           `json:"timestamp"`
}

// KeepAlivePayload is the heartbeat frame synthesized after T_idle of
// silence on a stream.
type KeepAlivePayload struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Timestamp string `json:"timestamp"`
}

// now returns the event timestamp in the wire format.
func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// KeepAliveEnvelope builds a heartbeat envelope for the given session.
// Heartbeats are synthesized at the delivery edge and never enqueued.
func KeepAliveEnvelope(sessionID string) Envelope {
	data, _ := json.Marshal(KeepAlivePayload{
		Type:      EventTypeKeepAlive,
		SessionID: sessionID,
		Timestamp: now(),
	})
	return Envelope{Type: EventTypeKeepAlive, Data: data}
}

// OverflowEnvelope builds the terminal marker delivered to a subscriber
// dropped by the overflow policy.
func OverflowEnvelope(sessionID string) Envelope {
	data, _ := json.Marshal(ErrorPayload{
		Type:      EventTypeError,
		SessionID: sessionID,
		Kind:      models.ErrorKindOverflow,
		Message:   "subscriber dropped: event buffer overflow",
		Timestamp: now(),
	})
	return Envelope{Type: EventTypeError, Data: data}
}

func connectionEstablishedEnvelope(sessionID, subscriberID string) Envelope {
	data, _ := json.Marshal(ConnectionEstablishedPayload{
		Type:         EventTypeConnectionEstablished,
		SessionID:    sessionID,
		SubscriberID: subscriberID,
		Timestamp:    now(),
	})
	return Envelope{Type: EventTypeConnectionEstablished, Data: data}
}
