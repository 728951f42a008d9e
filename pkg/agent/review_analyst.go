package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/carfin-ai/carfin/pkg/models"
)

const (
	// ReviewAnalystID is the registered id of the built-in review analyst.
	ReviewAnalystID = "review_analyst"

	reviewAnalystConfidence = 0.87

	// reviewsPerVehicle bounds the review fetch per listing.
	reviewsPerVehicle = 20
)

// Lexicon for the keyword sentiment pass over review text. Ratings carry
// most of the signal; the lexicon nudges the score for strongly worded
// reviews whose star rating is lukewarm.
var (
	positiveTerms = []string{
		"excellent", "reliable", "comfortable", "smooth", "spacious",
		"efficient", "recommend", "satisfied", "quiet", "great",
	}
	negativeTerms = []string{
		"breakdown", "noisy", "rust", "leak", "expensive",
		"disappointed", "regret", "defect", "vibration", "recall",
	}
)

// ReviewAnalyst scores listings on owner sentiment: average star rating
// blended with keyword sentiment over the review texts. Listings without
// reviews fall back to a neutral prior so they are rankable but never
// outrank a well-reviewed peer.
type ReviewAnalyst struct {
	store VehicleStore
}

// NewReviewAnalyst wires the review analyst to a store.
func NewReviewAnalyst(store VehicleStore) *ReviewAnalyst {
	return &ReviewAnalyst{store: store}
}

func (e *ReviewAnalyst) ID() string          { return ReviewAnalystID }
func (e *ReviewAnalyst) DisplayName() string { return "Review Analyst" }

// Analyze pulls matching listings, fetches their reviews, and ranks by
// sentiment.
func (e *ReviewAnalyst) Analyze(ctx context.Context, profile *models.UserProfile) (*Analysis, error) {
	vehicles, err := e.store.SearchVehicles(ctx, models.CriteriaFromProfile(profile, candidatePool))
	if err != nil {
		return nil, fmt.Errorf("searching vehicles: %w", err)
	}

	candidates := make([]models.Candidate, 0, len(vehicles))
	for _, v := range vehicles {
		reviews, err := e.store.ListReviews(ctx, v.ID, reviewsPerVehicle)
		if err != nil {
			return nil, fmt.Errorf("listing reviews for %s: %w", v.ID, err)
		}
		score, reason := scoreSentiment(reviews)
		candidates = append(candidates, models.Candidate{
			VehicleID: v.ID,
			Score:     score,
			Reason:    reason,
		})
	}
	sortCandidates(candidates)

	return &Analysis{Candidates: candidates, Confidence: reviewAnalystConfidence}, nil
}

// neutralSentiment is the prior for listings with no reviews.
const neutralSentiment = 0.5

func scoreSentiment(reviews []models.VehicleReview) (float64, string) {
	if len(reviews) == 0 {
		return neutralSentiment, "no owner reviews yet"
	}

	var ratingSum, lexiconSum float64
	for _, r := range reviews {
		// 1..5 stars to [0,1].
		ratingSum += models.ClampUnit((r.Rating - 1.0) / 4.0)
		lexiconSum += lexiconSentiment(r.Text)
	}
	n := float64(len(reviews))
	score := models.ClampUnit(0.75*(ratingSum/n) + 0.25*(lexiconSum/n))

	return score, fmt.Sprintf("%d owner reviews, %.0f%% positive sentiment", len(reviews), score*100)
}

// lexiconSentiment maps keyword hits in one review to [0,1], 0.5 neutral.
func lexiconSentiment(text string) float64 {
	lower := strings.ToLower(text)
	hits := 0.0
	for _, term := range positiveTerms {
		if strings.Contains(lower, term) {
			hits++
		}
	}
	for _, term := range negativeTerms {
		if strings.Contains(lower, term) {
			hits--
		}
	}
	// Saturate at three net hits either way.
	return models.ClampUnit(0.5 + hits/6.0)
}
