package models

import "time"

// ResultStatus is the terminal status of a single runner execution.
type ResultStatus string

const (
	ResultStatusOK    ResultStatus = "ok"
	ResultStatusError ResultStatus = "error"
)

// ErrorKind tags runner and transport failures for observability.
// The taxonomy is fixed; new kinds require a contract change.
type ErrorKind string

const (
	ErrorKindValidation    ErrorKind = "validation"
	ErrorKindNoSuchSession ErrorKind = "no_such_session"
	ErrorKindTimeout       ErrorKind = "timeout"
	ErrorKindCancelled     ErrorKind = "cancelled"
	ErrorKindAnalyzer      ErrorKind = "analyzer_error"
	ErrorKindInternal      ErrorKind = "internal_error"
	ErrorKindOverflow      ErrorKind = "overflow"
)

// Candidate is a (vehicle, score) pair produced by one source.
// Score is always within [0,1] after the runner clamps it.
type Candidate struct {
	VehicleID string  `json:"vehicleId"`
	Score     float64 `json:"score"`
	Reason    string  `json:"reason,omitempty"`
}

// AgentResult is the outcome of one analyzer run. Produced once by the
// runner, immutable, owned by the orchestrator afterwards.
type AgentResult struct {
	AgentID     string        `json:"agentId"`
	AgentName   string        `json:"agentName"`
	Status      ResultStatus  `json:"status"`
	ErrorKind   ErrorKind     `json:"errorKind,omitempty"`
	Error       string        `json:"error,omitempty"`
	Confidence  float64       `json:"confidence"`
	Candidates  []Candidate   `json:"candidates"`
	Duration    time.Duration `json:"-"`
	DurationMS  int64         `json:"durationMs"`
}

// OK reports whether the run produced a usable ranking.
func (r *AgentResult) OK() bool { return r.Status == ResultStatusOK }

// PredictorResult is the outcome of the collaborative-filtering predictor.
// Same shape as AgentResult; kept distinct for event routing and fusion
// contribution accounting.
type PredictorResult struct {
	PredictorName string        `json:"predictorName"`
	Status        ResultStatus  `json:"status"`
	ErrorKind     ErrorKind     `json:"errorKind,omitempty"`
	Error         string        `json:"error,omitempty"`
	Confidence    float64       `json:"confidence"`
	Candidates    []Candidate   `json:"candidates"`
	Duration      time.Duration `json:"-"`
	DurationMS    int64         `json:"durationMs"`
}

// OK reports whether the predictor produced a usable ranking.
func (r *PredictorResult) OK() bool { return r.Status == ResultStatusOK }

// FinalCandidate is one row of the fused ranking.
type FinalCandidate struct {
	VehicleID           string             `json:"vehicleId"`
	FinalScore          float64            `json:"finalScore"`
	Weight              float64            `json:"weight"`
	ContributingSources []string           `json:"contributingSources"`
	PerSourceScores     map[string]float64 `json:"perSourceScores"`
}

// Fusion method tags reported in FusedResult.Method.
const (
	FusionMethodWeightedAverage = "weighted_average"
	FusionMethodEmpty           = "empty"
)

// FusedResult is the deterministic merge of all source rankings.
// Contributions preserve each reporting source's raw confidence
// (pre-normalization); they are informational and do not re-rank.
type FusedResult struct {
	Candidates            []FinalCandidate     `json:"candidates"`
	Method                string               `json:"method"`
	Contributions         map[string]float64   `json:"contributions"`
	PredictorContribution float64              `json:"predictorContribution"`
	SourceErrors          map[string]ErrorKind `json:"sourceErrors,omitempty"`
	// TotalAnalyzed counts the distinct vehicles considered before the
	// top-K cut; SourceDurations records each source's wall time.
	TotalAnalyzed   int              `json:"totalAnalyzed"`
	SourceDurations map[string]int64 `json:"sourceDurationsMs,omitempty"`
}

// ClampUnit clamps v to the unit interval [0,1]. Scores and confidences
// are clamped at every boundary where they enter the core.
func ClampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
