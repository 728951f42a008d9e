package agent

import (
	"context"
	"fmt"
	"math"

	"github.com/carfin-ai/carfin/pkg/models"
)

const (
	// HybridPredictorID is the registered id of the built-in predictor.
	HybridPredictorID = "hybrid_recommender"

	hybridPredictorConfidence = 0.90
)

// HybridPredictor blends a content-based signal (how close the listing is
// to the stated profile) with a popularity signal (review volume and
// rating, standing in for interaction counts). The blend shifts toward
// popularity when a listing has enough reviews to trust, the usual
// cold-start treatment.
type HybridPredictor struct {
	store VehicleStore
}

// NewHybridPredictor wires the predictor to a store.
func NewHybridPredictor(store VehicleStore) *HybridPredictor {
	return &HybridPredictor{store: store}
}

func (p *HybridPredictor) ID() string          { return HybridPredictorID }
func (p *HybridPredictor) DisplayName() string { return "Hybrid Recommender" }

// Predict pulls matching listings and ranks them by the blended signal.
func (p *HybridPredictor) Predict(ctx context.Context, profile *models.UserProfile) (*Analysis, error) {
	vehicles, err := p.store.SearchVehicles(ctx, models.CriteriaFromProfile(profile, candidatePool))
	if err != nil {
		return nil, fmt.Errorf("searching vehicles: %w", err)
	}

	candidates := make([]models.Candidate, 0, len(vehicles))
	for _, v := range vehicles {
		reviews, err := p.store.ListReviews(ctx, v.ID, reviewsPerVehicle)
		if err != nil {
			return nil, fmt.Errorf("listing reviews for %s: %w", v.ID, err)
		}

		content := contentSignal(&v, profile)
		popularity, votes := popularitySignal(reviews)

		// Trust popularity in proportion to evidence volume.
		alpha := 0.35 * evidenceWeight(votes)
		score := models.ClampUnit((1.0-alpha)*content + alpha*popularity)

		candidates = append(candidates, models.Candidate{
			VehicleID: v.ID,
			Score:     score,
			Reason:    fmt.Sprintf("profile similarity %.2f, popularity %.2f over %d reviews", content, popularity, votes),
		})
	}
	sortCandidates(candidates)

	return &Analysis{Candidates: candidates, Confidence: hybridPredictorConfidence}, nil
}

// contentSignal measures profile closeness: preference match plus price
// position inside the budget range.
func contentSignal(v *models.Vehicle, profile *models.UserProfile) float64 {
	return models.ClampUnit(0.6*preferenceFit(v, profile) + 0.4*budgetFit(v.Price, profile.Budget))
}

// popularitySignal reduces the review set to an average rating on [0,1]
// and the vote count.
func popularitySignal(reviews []models.VehicleReview) (float64, int) {
	if len(reviews) == 0 {
		return 0.0, 0
	}
	var sum float64
	for _, r := range reviews {
		sum += models.ClampUnit((r.Rating - 1.0) / 4.0)
	}
	return sum / float64(len(reviews)), len(reviews)
}

// evidenceWeight saturates toward 1 as review volume grows; half weight
// at five reviews.
func evidenceWeight(votes int) float64 {
	return 1.0 - math.Exp(-float64(votes)/7.0)
}
