// Package agent defines the plug-in contracts between the orchestrator and
// the domain experts, and ships the built-in analyzers of the marketplace:
// the vehicle expert, the finance expert, the review analyst, and the
// hybrid collaborative-filtering predictor.
package agent

import (
	"context"

	"github.com/carfin-ai/carfin/pkg/models"
)

// Analysis is what a plug-in returns: a ranked candidate list plus a
// single confidence scalar. Both are clamped by the runner before fusion.
type Analysis struct {
	Candidates []models.Candidate
	Confidence float64
}

// Analyzer is a registered domain expert. Analyzers are stateless with
// respect to sessions: the same instance serves concurrent runs.
//
// Analyze must honor ctx cancellation; the runner bounds every call with
// a watchdog deadline. Returning an error marks the run analyzer_error
// unless the error wraps a context cancellation or deadline.
type Analyzer interface {
	ID() string
	DisplayName() string
	Analyze(ctx context.Context, profile *models.UserProfile) (*Analysis, error)
}

// Predictor ranks vehicles from a learned model. The contract is identical
// to Analyzer; the separate type keeps event routing distinct.
type Predictor interface {
	ID() string
	DisplayName() string
	Predict(ctx context.Context, profile *models.UserProfile) (*Analysis, error)
}

// VehicleStore is the data layer the built-in plug-ins query. The
// orchestrator core never touches it; any data fetching is the plug-in's
// concern.
type VehicleStore interface {
	SearchVehicles(ctx context.Context, criteria models.SearchCriteria) ([]models.Vehicle, error)
	ListReviews(ctx context.Context, vehicleID string, limit int) ([]models.VehicleReview, error)
}
