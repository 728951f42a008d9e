// Package orchestrator coordinates one recommendation run: it fans the
// profile out to every registered analyzer and the predictor, bounds each
// with a watchdog deadline, collects the results, and hands them to fusion.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carfin-ai/carfin/pkg/agent"
	"github.com/carfin-ai/carfin/pkg/events"
	"github.com/carfin-ai/carfin/pkg/models"
)

// errPanicked wraps a recovered plug-in panic so classification can tell
// it apart from an ordinary analyzer error.
var errPanicked = errors.New("plug-in panicked")

// Runner executes a single plug-in under the watchdog deadline and turns
// whatever happens (result, error, timeout, cancellation, panic) into an
// immutable result struct. One failed plug-in never fails the run.
type Runner struct {
	publisher *events.Publisher
	deadline  time.Duration
}

// NewRunner creates a runner. deadline bounds every plug-in call.
func NewRunner(publisher *events.Publisher, deadline time.Duration) *Runner {
	return &Runner{publisher: publisher, deadline: deadline}
}

// RunAnalyzer executes one analyzer, streaming its lifecycle to the session.
func (r *Runner) RunAnalyzer(ctx context.Context, sessionID string, a agent.Analyzer, profile *models.UserProfile) models.AgentResult {
	id := a.ID()
	result := models.AgentResult{AgentID: id, AgentName: a.DisplayName()}

	r.publisher.AgentProgress(sessionID, id, events.AgentStatusStarting, 0.0, "")

	started := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, r.deadline)
	defer cancel()

	r.publisher.AgentProgress(sessionID, id, events.AgentStatusAnalyzing, 0.5, "")
	analysis, err := guardAnalyze(runCtx, a, profile)
	result.Duration = time.Since(started)
	result.DurationMS = result.Duration.Milliseconds()

	if err != nil {
		kind, message := classify(err)
		result.Status = models.ResultStatusError
		result.ErrorKind = kind
		result.Error = message
		r.publisher.AgentProgress(sessionID, id, events.AgentStatusError, 0.0, message)
		return result
	}

	result.Status = models.ResultStatusOK
	result.Confidence = models.ClampUnit(analysis.Confidence)
	result.Candidates = clampCandidates(analysis.Candidates)
	r.publisher.AgentProgress(sessionID, id, events.AgentStatusCompleted, 1.0,
		fmt.Sprintf("%d candidates", len(result.Candidates)))
	return result
}

// RunPredictor executes the predictor, streaming its lifecycle to the
// session. The predictor gets its own event types so clients can render
// it apart from the analyzers.
func (r *Runner) RunPredictor(ctx context.Context, sessionID string, p agent.Predictor, profile *models.UserProfile) models.PredictorResult {
	id := p.ID()
	result := models.PredictorResult{PredictorName: id}

	r.publisher.PredictorProgress(sessionID, id, events.AgentStatusStarting, 0.0, "")

	started := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, r.deadline)
	defer cancel()

	r.publisher.PredictorProgress(sessionID, id, events.AgentStatusAnalyzing, 0.5, "")
	analysis, err := guardPredict(runCtx, p, profile)
	result.Duration = time.Since(started)
	result.DurationMS = result.Duration.Milliseconds()

	if err != nil {
		kind, message := classify(err)
		result.Status = models.ResultStatusError
		result.ErrorKind = kind
		result.Error = message
		r.publisher.PredictorError(sessionID, id, kind, message)
		return result
	}

	result.Status = models.ResultStatusOK
	result.Confidence = models.ClampUnit(analysis.Confidence)
	result.Candidates = clampCandidates(analysis.Candidates)
	r.publisher.PredictorCompleted(sessionID, &result)
	return result
}

// guardAnalyze calls the analyzer with panic containment.
func guardAnalyze(ctx context.Context, a agent.Analyzer, profile *models.UserProfile) (analysis *agent.Analysis, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			analysis, err = nil, fmt.Errorf("%w: %v", errPanicked, rec)
		}
	}()
	analysis, err = a.Analyze(ctx, profile)
	if err == nil && analysis == nil {
		err = fmt.Errorf("%w: returned neither analysis nor error", errPanicked)
	}
	return analysis, err
}

// guardPredict calls the predictor with panic containment.
func guardPredict(ctx context.Context, p agent.Predictor, profile *models.UserProfile) (analysis *agent.Analysis, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			analysis, err = nil, fmt.Errorf("%w: %v", errPanicked, rec)
		}
	}()
	analysis, err = p.Predict(ctx, profile)
	if err == nil && analysis == nil {
		err = fmt.Errorf("%w: returned neither analysis nor error", errPanicked)
	}
	return analysis, err
}

// classify maps a plug-in failure onto the error taxonomy. Context errors
// win over whatever the plug-in wrapped them in.
func classify(err error) (models.ErrorKind, string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.ErrorKindTimeout, "analysis exceeded the deadline"
	case errors.Is(err, context.Canceled):
		return models.ErrorKindCancelled, "analysis cancelled"
	case errors.Is(err, errPanicked):
		return models.ErrorKindInternal, err.Error()
	default:
		return models.ErrorKindAnalyzer, err.Error()
	}
}

// clampCandidates copies the plug-in's ranking with scores clamped to [0,1].
func clampCandidates(in []models.Candidate) []models.Candidate {
	out := make([]models.Candidate, len(in))
	for i, c := range in {
		c.Score = models.ClampUnit(c.Score)
		out[i] = c
	}
	return out
}
