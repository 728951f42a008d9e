package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/carfin-ai/carfin/pkg/agent"
	"github.com/carfin-ai/carfin/pkg/events"
	"github.com/carfin-ai/carfin/pkg/fusion"
	"github.com/carfin-ai/carfin/pkg/models"
)

// Config bounds one recommendation run.
type Config struct {
	// RunnerDeadline is the watchdog deadline per plug-in call.
	RunnerDeadline time.Duration
}

// Orchestrator drives recommendation runs. It owns no session state
// beyond the duration of one Recommend call; the event bus carries all
// observable state.
type Orchestrator struct {
	registry  *agent.Registry
	bus       *events.Bus
	publisher *events.Publisher
	fuser     *fusion.Fuser
	runner    *Runner
	logger    *slog.Logger
}

// New wires an orchestrator.
func New(registry *agent.Registry, bus *events.Bus, fuser *fusion.Fuser, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	publisher := events.NewPublisher(bus)
	return &Orchestrator{
		registry:  registry,
		bus:       bus,
		publisher: publisher,
		fuser:     fuser,
		runner:    NewRunner(publisher, cfg.RunnerDeadline),
		logger:    logger,
	}
}

// Recommend executes one full run against profile: open the session
// stream, announce the roster, run every analyzer and the predictor
// concurrently, await all, fuse, and emit the terminal event. limit
// overrides the configured top-K when positive.
//
// The terminal event is emitted exactly once on every path. Cancellation
// of ctx aborts the run after the in-flight plug-ins unwind and yields
// models.ErrCancelled.
func (o *Orchestrator) Recommend(ctx context.Context, sessionID string, profile *models.UserProfile, limit int) (*models.FusedResult, error) {
	o.bus.Open(sessionID)

	analyzers := o.registry.Analyzers()
	predictor := o.registry.Predictor()
	o.publisher.CollaborationStarted(sessionID, o.registry.AgentIDs())
	o.logger.Info("Recommendation run started",
		"session_id", sessionID, "analyzers", len(analyzers), "purpose", profile.Purpose)

	agentResults := make([]models.AgentResult, len(analyzers))
	var predictorResult *models.PredictorResult

	var wg sync.WaitGroup
	for i, a := range analyzers {
		wg.Add(1)
		go func(i int, a agent.Analyzer) {
			defer wg.Done()
			agentResults[i] = o.runner.RunAnalyzer(ctx, sessionID, a, profile)
		}(i, a)
	}
	if predictor != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := o.runner.RunPredictor(ctx, sessionID, predictor, profile)
			predictorResult = &result
		}()
	}
	wg.Wait()

	// A caller that went away mid-run gets the cancelled terminal instead
	// of a fusion over partial, cancellation-tainted results.
	if err := ctx.Err(); err != nil {
		o.logger.Info("Recommendation run cancelled", "session_id", sessionID)
		o.publisher.Error(sessionID, models.ErrorKindCancelled, "recommendation run cancelled")
		return nil, fmt.Errorf("recommendation run: %w", models.ErrCancelled)
	}

	reporting := 0
	for i := range agentResults {
		if agentResults[i].OK() {
			reporting++
		}
	}
	if predictorResult != nil && predictorResult.OK() {
		reporting++
	}

	o.publisher.FusionStarted(sessionID, reporting)
	result, err := o.fuse(agentResults, predictorResult, limit)
	if err != nil {
		o.logger.Error("Fusion failed", "session_id", sessionID, "error", err)
		o.publisher.Error(sessionID, models.ErrorKindInternal, "fusion failed")
		return nil, err
	}
	o.publisher.FusionCompleted(sessionID, result.Method, len(result.Candidates))

	o.publisher.RecommendationCompleted(sessionID, result)
	o.logger.Info("Recommendation run completed",
		"session_id", sessionID,
		"method", result.Method,
		"candidates", len(result.Candidates),
		"reporting_sources", reporting)
	return result, nil
}

// fuse wraps the fuser with panic containment so a merge bug surfaces as
// the internal_error terminal instead of killing the process.
func (o *Orchestrator) fuse(agents []models.AgentResult, predictor *models.PredictorResult, limit int) (result *models.FusedResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result, err = nil, fmt.Errorf("fusion panicked: %v", rec)
		}
	}()
	return o.fuser.Fuse(agents, predictor, limit), nil
}
