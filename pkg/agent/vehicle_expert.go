package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/carfin-ai/carfin/pkg/models"
)

const (
	// VehicleExpertID is the registered id of the built-in vehicle expert.
	VehicleExpertID = "vehicle_expert"

	vehicleExpertConfidence = 0.92

	// candidatePool is how many listings each built-in plug-in pulls from
	// the store before scoring. Wide enough that the fusion take window
	// never starves, small enough to keep a run cheap.
	candidatePool = 50
)

// brandReliability is a coarse reliability prior per brand, on [0,1].
// Unlisted brands get the neutral default.
var brandReliability = map[string]float64{
	"Hyundai":    0.86,
	"Kia":        0.85,
	"Genesis":    0.88,
	"Toyota":     0.92,
	"Honda":      0.90,
	"BMW":        0.78,
	"Mercedes":   0.79,
	"Audi":       0.76,
	"Volkswagen": 0.74,
	"Chevrolet":  0.72,
}

const brandReliabilityDefault = 0.70

// VehicleExpert scores listings on how well the vehicle itself fits the
// buyer: budget fit, age and mileage, brand reliability, and stated
// preferences, combined with fixed weights.
type VehicleExpert struct {
	store VehicleStore
}

// NewVehicleExpert wires the vehicle expert to a store.
func NewVehicleExpert(store VehicleStore) *VehicleExpert {
	return &VehicleExpert{store: store}
}

func (e *VehicleExpert) ID() string          { return VehicleExpertID }
func (e *VehicleExpert) DisplayName() string { return "Vehicle Expert" }

// Analyze pulls matching listings and ranks them by the weighted fit score.
func (e *VehicleExpert) Analyze(ctx context.Context, profile *models.UserProfile) (*Analysis, error) {
	vehicles, err := e.store.SearchVehicles(ctx, models.CriteriaFromProfile(profile, candidatePool))
	if err != nil {
		return nil, fmt.Errorf("searching vehicles: %w", err)
	}

	candidates := make([]models.Candidate, 0, len(vehicles))
	for _, v := range vehicles {
		score, reason := e.score(&v, profile)
		candidates = append(candidates, models.Candidate{
			VehicleID: v.ID,
			Score:     score,
			Reason:    reason,
		})
	}
	sortCandidates(candidates)

	return &Analysis{Candidates: candidates, Confidence: vehicleExpertConfidence}, nil
}

// score combines the four fit dimensions. Weights sum to 1 so the result
// stays on [0,1] without clamping.
func (e *VehicleExpert) score(v *models.Vehicle, profile *models.UserProfile) (float64, string) {
	budget := budgetFit(v.Price, profile.Budget)
	condition := ageDistanceFit(v.Year, v.Distance)
	reliability := brandReliabilityOf(v.Brand)
	preference := preferenceFit(v, profile)

	score := 0.30*budget + 0.25*condition + 0.25*reliability + 0.20*preference

	var notes []string
	if budget >= 0.8 {
		notes = append(notes, "strong budget fit")
	}
	if condition >= 0.8 {
		notes = append(notes, "low age and mileage")
	}
	if reliability >= 0.85 {
		notes = append(notes, "reliable brand")
	}
	if preference >= 0.9 {
		notes = append(notes, "matches stated preferences")
	}
	reason := fmt.Sprintf("%d %s %s", v.Year, v.Brand, v.Model)
	if len(notes) > 0 {
		reason += ": " + strings.Join(notes, ", ")
	}
	return score, reason
}

// budgetFit peaks when the price sits in the lower-middle of the budget
// range and falls off toward the ceiling. Prices outside the range score 0
// (the store filter should already exclude them).
func budgetFit(price int, budget models.Budget) float64 {
	if price < budget.Min || price > budget.Max {
		return 0.0
	}
	span := float64(budget.Max - budget.Min)
	if span == 0 {
		return 1.0
	}
	pos := float64(price-budget.Min) / span
	// Sweet spot around 40% into the range.
	const sweet = 0.4
	distance := pos - sweet
	if distance < 0 {
		distance = -distance
	}
	return models.ClampUnit(1.0 - distance/(1.0-sweet))
}

// ageDistanceFit decays linearly with vehicle age (10 year horizon) and
// odometer reading (200k km horizon), averaged.
func ageDistanceFit(year, distance int) float64 {
	age := time.Now().Year() - year
	if age < 0 {
		age = 0
	}
	ageScore := models.ClampUnit(1.0 - float64(age)/10.0)
	distScore := models.ClampUnit(1.0 - float64(distance)/200.0)
	return (ageScore + distScore) / 2.0
}

func brandReliabilityOf(brand string) float64 {
	if r, ok := brandReliability[brand]; ok {
		return r
	}
	return brandReliabilityDefault
}

// preferenceFit scores the explicit preference fields. Each stated
// preference that matches adds its share; unstated preferences match.
func preferenceFit(v *models.Vehicle, profile *models.UserProfile) float64 {
	score := 0.0
	if profile.PrefersBrand(v.Brand) {
		score += 0.4
	}
	if profile.Preferences.FuelType == "" || profile.Preferences.FuelType == v.FuelType {
		score += 0.3
	}
	if profile.Preferences.Transmission == "" || profile.Preferences.Transmission == v.Transmission {
		score += 0.3
	}
	return score
}

// sortCandidates orders by score descending, vehicle id ascending on ties.
// Deterministic ordering keeps the fusion take window stable across runs.
func sortCandidates(candidates []models.Candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].VehicleID < candidates[j].VehicleID
	})
}
