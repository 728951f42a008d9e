// Package events provides the per-session in-process event fabric.
//
// A Bus maps session ids to live Sessions. Producers (the orchestrator and
// its runners) publish typed events; subscribers (stream endpoints) receive
// them over bounded per-subscriber channels. Within a session all publishes
// are serialized through the session monitor, so every surviving subscriber
// observes the same global enqueue order.
//
// Delivery contract:
//   - per-subscriber FIFO, bounded buffer; the slowest subscriber is
//     disconnected on overflow and never blocks a producer
//   - late subscribers see only future events plus a synthetic
//     connection_established
//   - nothing is delivered after the session's terminal event
//
// Keep-alive frames are synthesized at the delivery edge (the stream
// handler) from KeepAliveEnvelope, not queued through the session.
package events

// Event types carried on the session stream.
const (
	EventTypeConnectionEstablished   = "connection_established"
	EventTypeCollaborationStarted    = "collaboration_started"
	EventTypeAgentProgress           = "agent_progress"
	EventTypePredictorProgress       = "predictor_progress"
	EventTypePredictorCompleted      = "predictor_completed"
	EventTypePredictorError          = "predictor_error"
	EventTypeFusionStarted           = "fusion_started"
	EventTypeFusionCompleted         = "fusion_completed"
	EventTypeRecommendationCompleted = "recommendation_completed"
	EventTypeError                   = "error"
	EventTypeKeepAlive               = "keep_alive"
)

// Agent lifecycle status values (used in AgentProgressPayload.Status and
// PredictorProgressPayload.Status).
const (
	AgentStatusStarting  = "starting"
	AgentStatusAnalyzing = "analyzing"
	AgentStatusCompleted = "completed"
	AgentStatusError     = "error"
)

// IsTerminal reports whether eventType ends a session. After a terminal
// event the session accepts no further publishes.
func IsTerminal(eventType string) bool {
	return eventType == EventTypeRecommendationCompleted || eventType == EventTypeError
}

// CloseReason explains why a subscriber's channel was closed.
type CloseReason string

const (
	// ReasonTerminal — the session emitted its terminal event.
	ReasonTerminal CloseReason = "terminal"
	// ReasonOverflow — the subscriber fell behind and was dropped.
	ReasonOverflow CloseReason = "overflow"
	// ReasonDetached — the subscriber disconnected itself.
	ReasonDetached CloseReason = "detached"
)

// Envelope is a single event as it travels through a session queue:
// the routing tag plus the pre-marshaled JSON payload. Payloads are
// marshaled once at publish time and fanned out by reference.
type Envelope struct {
	Type string
	Data []byte
}
