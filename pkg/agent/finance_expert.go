package agent

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/carfin-ai/carfin/pkg/models"
)

const (
	// FinanceExpertID is the registered id of the built-in finance expert.
	FinanceExpertID = "finance_expert"

	financeExpertConfidence = 0.89
)

// Annual depreciation rates per brand segment. Premium brands lose value
// faster in this market; domestic volume brands hold it.
var depreciationRate = map[string]float64{
	"Hyundai":  0.11,
	"Kia":      0.11,
	"Genesis":  0.14,
	"Toyota":   0.09,
	"Honda":    0.10,
	"BMW":      0.17,
	"Mercedes": 0.16,
	"Audi":     0.18,
}

const depreciationRateDefault = 0.13

// FinanceExpert scores listings on financial merit: remaining value after
// depreciation, projected cost of ownership, and headroom inside the
// buyer's budget.
type FinanceExpert struct {
	store VehicleStore
}

// NewFinanceExpert wires the finance expert to a store.
func NewFinanceExpert(store VehicleStore) *FinanceExpert {
	return &FinanceExpert{store: store}
}

func (e *FinanceExpert) ID() string          { return FinanceExpertID }
func (e *FinanceExpert) DisplayName() string { return "Finance Expert" }

// Analyze pulls matching listings and ranks them by financial merit.
func (e *FinanceExpert) Analyze(ctx context.Context, profile *models.UserProfile) (*Analysis, error) {
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

	return &Analysis{Candidates: candidates, Confidence: financeExpertConfidence}, nil
}

func (e *FinanceExpert) score(v *models.Vehicle, profile *models.UserProfile) (float64, string) {
	retention := valueRetention(v)
	tco := ownershipCost(v)
	headroom := budgetHeadroom(v.Price, profile.Budget)

	score := 0.40*retention + 0.35*tco + 0.25*headroom

	reason := fmt.Sprintf("retains ~%.0f%% value over 3 years", retention3y(v)*100)
	if headroom >= 0.5 {
		reason += ", leaves budget headroom"
	}
	return models.ClampUnit(score), reason
}

// valueRetention estimates how well the listing will hold its price,
// normalized so the slowest-depreciating segment approaches 1.
func valueRetention(v *models.Vehicle) float64 {
	rate := depreciationOf(v.Brand)
	// Older vehicles sit on the flat part of the depreciation curve.
	age := float64(time.Now().Year() - v.Year)
	if age < 0 {
		age = 0
	}
	flatness := models.ClampUnit(age / 8.0)
	effective := rate * (1.0 - 0.5*flatness)
	// Map 0.20/yr -> 0, 0.05/yr -> 1.
	return models.ClampUnit((0.20 - effective) / 0.15)
}

// retention3y is the projected fraction of today's price left after
// three years, used only for the human-readable reason string.
func retention3y(v *models.Vehicle) float64 {
	return math.Pow(1.0-depreciationOf(v.Brand), 3)
}

// ownershipCost proxies running costs from mileage and fuel type.
// Electric and hybrid drivetrains score higher; worn-out odometers lower.
func ownershipCost(v *models.Vehicle) float64 {
	base := models.ClampUnit(1.0 - float64(v.Distance)/250.0)
	switch v.FuelType {
	case "electric":
		base = models.ClampUnit(base + 0.20)
	case "hybrid":
		base = models.ClampUnit(base + 0.12)
	case "diesel":
		base = models.ClampUnit(base - 0.05)
	}
	return base
}

// budgetHeadroom rewards prices that leave room under the budget ceiling
// for taxes, insurance, and the first round of maintenance.
func budgetHeadroom(price int, budget models.Budget) float64 {
	if budget.Max <= 0 || price > budget.Max {
		return 0.0
	}
	return models.ClampUnit(float64(budget.Max-price) / float64(budget.Max) * 2.5)
}

func depreciationOf(brand string) float64 {
	if r, ok := depreciationRate[brand]; ok {
		return r
	}
	return depreciationRateDefault
}
