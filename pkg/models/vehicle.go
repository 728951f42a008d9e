package models

// Vehicle is a marketplace listing row as served by the vehicle store.
type Vehicle struct {
	ID           string `json:"id"`
	Brand        string `json:"brand"`
	Model        string `json:"model"`
	Year         int    `json:"year"`
	Price        int    `json:"price"`
	Distance     int    `json:"distance"` // odometer, thousands of km
	FuelType     string `json:"fuelType"`
	Transmission string `json:"transmission"`
	BodyType     string `json:"bodyType,omitempty"`
}

// VehicleReview is a single user review row for a listing.
type VehicleReview struct {
	VehicleID string  `json:"vehicleId"`
	Rating    float64 `json:"rating"` // 1.0 .. 5.0
	Text      string  `json:"text"`
}

// SearchCriteria filters vehicle store queries. Zero values mean
// "no constraint"; Limit caps the result size.
type SearchCriteria struct {
	BudgetMin    int
	BudgetMax    int
	Brands       []string
	MinYear      int
	MaxDistance  int
	FuelType     string
	Transmission string
	Limit        int
}

// CriteriaFromProfile derives store search criteria from a user profile.
func CriteriaFromProfile(p *UserProfile, limit int) SearchCriteria {
	return SearchCriteria{
		BudgetMin:    p.Budget.Min,
		BudgetMax:    p.Budget.Max,
		Brands:       p.Preferences.Brands,
		MinYear:      p.Preferences.MinYear,
		MaxDistance:  p.Preferences.MaxDistance,
		FuelType:     p.Preferences.FuelType,
		Transmission: p.Preferences.Transmission,
		Limit:        limit,
	}
}
