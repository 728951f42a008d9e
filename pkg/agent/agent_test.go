package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/carfin-ai/carfin/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	vehicles    []models.Vehicle
	reviews     map[string][]models.VehicleReview
	searchErr   error
	reviewsErr  error
	gotCriteria models.SearchCriteria
}

func (s *fakeStore) SearchVehicles(_ context.Context, criteria models.SearchCriteria) ([]models.Vehicle, error) {
	s.gotCriteria = criteria
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.vehicles, nil
}

func (s *fakeStore) ListReviews(_ context.Context, vehicleID string, _ int) ([]models.VehicleReview, error) {
	if s.reviewsErr != nil {
		return nil, s.reviewsErr
	}
	return s.reviews[vehicleID], nil
}

func testProfile() *models.UserProfile {
	return &models.UserProfile{
		Budget:  models.Budget{Min: 10_000_000, Max: 30_000_000},
		Purpose: models.PurposeGeneral,
	}
}

func testVehicles() []models.Vehicle {
	year := time.Now().Year()
	return []models.Vehicle{
		{ID: "v-old", Brand: "Chevrolet", Model: "Spark", Year: year - 9, Price: 29_500_000, Distance: 180, FuelType: "gasoline", Transmission: "manual"},
		{ID: "v-new", Brand: "Toyota", Model: "Corolla", Year: year - 2, Price: 18_000_000, Distance: 30, FuelType: "hybrid", Transmission: "automatic"},
		{ID: "v-mid", Brand: "Hyundai", Model: "Avante", Year: year - 5, Price: 15_000_000, Distance: 90, FuelType: "gasoline", Transmission: "automatic"},
	}
}

func TestRegistry_OrderAndLookup(t *testing.T) {
	store := &fakeStore{}
	reg := NewRegistry()
	require.NoError(t, reg.RegisterAnalyzer(NewVehicleExpert(store)))
	require.NoError(t, reg.RegisterAnalyzer(NewFinanceExpert(store)))
	require.NoError(t, reg.RegisterAnalyzer(NewReviewAnalyst(store)))
	require.NoError(t, reg.SetPredictor(NewHybridPredictor(store)))

	ids := make([]string, 0, 3)
	for _, a := range reg.Analyzers() {
		ids = append(ids, a.ID())
	}
	assert.Equal(t, []string{VehicleExpertID, FinanceExpertID, ReviewAnalystID}, ids)
	assert.Equal(t, []string{VehicleExpertID, FinanceExpertID, ReviewAnalystID, HybridPredictorID}, reg.AgentIDs())

	got, ok := reg.Analyzer(FinanceExpertID)
	require.True(t, ok)
	assert.Equal(t, "Finance Expert", got.DisplayName())
	require.NotNil(t, reg.Predictor())
}

func TestRegistry_RejectsDuplicatesAndNil(t *testing.T) {
	store := &fakeStore{}
	reg := NewRegistry()
	require.NoError(t, reg.RegisterAnalyzer(NewVehicleExpert(store)))
	assert.Error(t, reg.RegisterAnalyzer(NewVehicleExpert(store)))
	assert.Error(t, reg.RegisterAnalyzer(nil))

	require.NoError(t, reg.SetPredictor(NewHybridPredictor(store)))
	assert.Error(t, reg.SetPredictor(NewHybridPredictor(store)))
	assert.Error(t, reg.SetPredictor(nil))
}

func TestVehicleExpert_RanksNewReliableVehiclesFirst(t *testing.T) {
	store := &fakeStore{vehicles: testVehicles()}
	expert := NewVehicleExpert(store)

	analysis, err := expert.Analyze(context.Background(), testProfile())
	require.NoError(t, err)
	require.Len(t, analysis.Candidates, 3)

	assert.Equal(t, "v-new", analysis.Candidates[0].VehicleID,
		"recent reliable listing should lead")
	assert.Equal(t, "v-old", analysis.Candidates[2].VehicleID,
		"aged high-mileage listing should trail")
	assert.InDelta(t, 0.92, analysis.Confidence, 1e-9)

	for _, c := range analysis.Candidates {
		assert.GreaterOrEqual(t, c.Score, 0.0)
		assert.LessOrEqual(t, c.Score, 1.0)
		assert.NotEmpty(t, c.Reason)
	}
}

func TestVehicleExpert_DerivesCriteriaFromProfile(t *testing.T) {
	store := &fakeStore{}
	profile := testProfile()
	profile.Preferences.Brands = []string{"Hyundai"}
	profile.Preferences.FuelType = "hybrid"

	_, err := NewVehicleExpert(store).Analyze(context.Background(), profile)
	require.NoError(t, err)
	assert.Equal(t, 10_000_000, store.gotCriteria.BudgetMin)
	assert.Equal(t, 30_000_000, store.gotCriteria.BudgetMax)
	assert.Equal(t, []string{"Hyundai"}, store.gotCriteria.Brands)
	assert.Equal(t, "hybrid", store.gotCriteria.FuelType)
	assert.Equal(t, candidatePool, store.gotCriteria.Limit)
}

func TestVehicleExpert_PropagatesStoreError(t *testing.T) {
	boom := errors.New("connection refused")
	store := &fakeStore{searchErr: boom}

	_, err := NewVehicleExpert(store).Analyze(context.Background(), testProfile())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestBudgetFit(t *testing.T) {
	budget := models.Budget{Min: 10_000_000, Max: 30_000_000}
	assert.Zero(t, budgetFit(9_000_000, budget), "below range")
	assert.Zero(t, budgetFit(31_000_000, budget), "above range")
	// Sweet spot at 40% into the range.
	assert.InDelta(t, 1.0, budgetFit(18_000_000, budget), 1e-9)
	assert.Greater(t, budgetFit(18_000_000, budget), budgetFit(29_000_000, budget))
}

func TestFinanceExpert_FavorsValueRetention(t *testing.T) {
	year := time.Now().Year()
	store := &fakeStore{vehicles: []models.Vehicle{
		{ID: "v-audi", Brand: "Audi", Model: "A4", Year: year - 3, Price: 20_000_000, Distance: 60, FuelType: "gasoline"},
		{ID: "v-toyota", Brand: "Toyota", Model: "Prius", Year: year - 3, Price: 20_000_000, Distance: 60, FuelType: "hybrid"},
	}}

	analysis, err := NewFinanceExpert(store).Analyze(context.Background(), testProfile())
	require.NoError(t, err)
	require.Len(t, analysis.Candidates, 2)
	assert.Equal(t, "v-toyota", analysis.Candidates[0].VehicleID,
		"slow-depreciating hybrid should outrank fast-depreciating premium")
	assert.InDelta(t, 0.89, analysis.Confidence, 1e-9)
	assert.Contains(t, analysis.Candidates[0].Reason, "value")
}

func TestReviewAnalyst_SentimentOrdering(t *testing.T) {
	vehicles := testVehicles()
	store := &fakeStore{
		vehicles: vehicles,
		reviews: map[string][]models.VehicleReview{
			"v-new": {
				{VehicleID: "v-new", Rating: 5.0, Text: "Excellent and reliable, would recommend"},
				{VehicleID: "v-new", Rating: 4.5, Text: "Smooth and quiet ride"},
			},
			"v-old": {
				{VehicleID: "v-old", Rating: 2.0, Text: "Constant breakdown issues, regret buying"},
			},
			// v-mid has no reviews and falls back to the neutral prior.
		},
	}

	analysis, err := NewReviewAnalyst(store).Analyze(context.Background(), testProfile())
	require.NoError(t, err)
	require.Len(t, analysis.Candidates, 3)

	assert.Equal(t, "v-new", analysis.Candidates[0].VehicleID)
	assert.Equal(t, "v-mid", analysis.Candidates[1].VehicleID)
	assert.Equal(t, "v-old", analysis.Candidates[2].VehicleID)
	assert.InDelta(t, 0.87, analysis.Confidence, 1e-9)

	neutral := analysis.Candidates[1]
	assert.InDelta(t, neutralSentiment, neutral.Score, 1e-9)
	assert.Equal(t, "no owner reviews yet", neutral.Reason)
}

func TestReviewAnalyst_PropagatesReviewError(t *testing.T) {
	boom := errors.New("query timeout")
	store := &fakeStore{vehicles: testVehicles(), reviewsErr: boom}

	_, err := NewReviewAnalyst(store).Analyze(context.Background(), testProfile())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestLexiconSentiment(t *testing.T) {
	assert.InDelta(t, 0.5, lexiconSentiment("it drives"), 1e-9)
	assert.Greater(t, lexiconSentiment("excellent, reliable, comfortable"), 0.9)
	assert.Less(t, lexiconSentiment("rust and leak and vibration everywhere"), 0.1)
}

func TestHybridPredictor_PopularityBreaksContentTies(t *testing.T) {
	year := time.Now().Year()
	// Identical listings content-wise; only review evidence differs. The
	// price sits high in the budget range so the content signal is not
	// already saturated and popularity can lift the reviewed twin.
	twin := func(id string) models.Vehicle {
		return models.Vehicle{ID: id, Brand: "Kia", Model: "K5", Year: year - 3, Price: 25_000_000, Distance: 50, FuelType: "gasoline", Transmission: "automatic"}
	}
	store := &fakeStore{
		vehicles: []models.Vehicle{twin("v-quiet"), twin("v-loved")},
		reviews: map[string][]models.VehicleReview{
			"v-loved": {
				{VehicleID: "v-loved", Rating: 5.0, Text: "great"},
				{VehicleID: "v-loved", Rating: 5.0, Text: "great"},
				{VehicleID: "v-loved", Rating: 4.8, Text: "great"},
				{VehicleID: "v-loved", Rating: 4.9, Text: "great"},
				{VehicleID: "v-loved", Rating: 5.0, Text: "great"},
			},
		},
	}

	analysis, err := NewHybridPredictor(store).Predict(context.Background(), testProfile())
	require.NoError(t, err)
	require.Len(t, analysis.Candidates, 2)
	assert.Equal(t, "v-loved", analysis.Candidates[0].VehicleID)
	assert.Greater(t, analysis.Candidates[0].Score, analysis.Candidates[1].Score)
	assert.InDelta(t, 0.90, analysis.Confidence, 1e-9)
}

func TestHybridPredictor_EmptyStoreYieldsEmptyAnalysis(t *testing.T) {
	analysis, err := NewHybridPredictor(&fakeStore{}).Predict(context.Background(), testProfile())
	require.NoError(t, err)
	assert.Empty(t, analysis.Candidates)
}
