// Package models defines the domain types shared across the orchestrator:
// user profiles, per-source results, fused rankings, and vehicle records.
package models

// Purpose classifies why the user is buying a vehicle. It feeds the
// preference scoring of the built-in analyzers.
type Purpose string

const (
	PurposeGeneral  Purpose = "general"
	PurposeFamily   Purpose = "family"
	PurposeBusiness Purpose = "business"
	PurposeLeisure  Purpose = "leisure"
)

// ValidPurpose reports whether p is one of the recognized purpose values.
func ValidPurpose(p Purpose) bool {
	switch p {
	case PurposeGeneral, PurposeFamily, PurposeBusiness, PurposeLeisure:
		return true
	}
	return false
}

// Budget is the user's price range in the marketplace currency unit.
type Budget struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Preferences captures the user's vehicle constraints. Zero values mean
// "no constraint" except MinYear, which defaults during parsing.
type Preferences struct {
	Brands       []string `json:"brands,omitempty"`
	MinYear      int      `json:"minYear,omitempty"`
	MaxDistance  int      `json:"maxDistance,omitempty"` // odometer ceiling, thousands of km
	FuelType     string   `json:"fuelType,omitempty"`
	Transmission string   `json:"transmission,omitempty"`
}

// UserProfile is the immutable input of a recommendation run. Created once
// per request at the transport surface and never mutated afterwards.
type UserProfile struct {
	Budget      Budget      `json:"budget"`
	Preferences Preferences `json:"preferences"`
	Purpose     Purpose     `json:"purpose"`
}

// Normalize fills defaults for omitted fields. Called after JSON binding,
// before validation.
func (p *UserProfile) Normalize() {
	if p.Purpose == "" {
		p.Purpose = PurposeGeneral
	}
}

// Validate checks the profile for transport-level validity.
// Returns a *ValidationError describing the first offending field.
func (p *UserProfile) Validate() error {
	if p.Budget.Min < 0 {
		return NewValidationError("budget.min", "must not be negative")
	}
	if p.Budget.Max <= 0 {
		return NewValidationError("budget.max", "must be positive")
	}
	if p.Budget.Min > p.Budget.Max {
		return NewValidationError("budget.min", "must not exceed budget.max")
	}
	if p.Preferences.MinYear < 0 {
		return NewValidationError("preferences.minYear", "must not be negative")
	}
	if p.Preferences.MaxDistance < 0 {
		return NewValidationError("preferences.maxDistance", "must not be negative")
	}
	if !ValidPurpose(p.Purpose) {
		return NewValidationError("purpose", "must be one of general, family, business, leisure")
	}
	return nil
}

// PrefersBrand reports whether brand is in the user's preferred set.
// An empty preference list matches every brand.
func (p *UserProfile) PrefersBrand(brand string) bool {
	if len(p.Preferences.Brands) == 0 {
		return true
	}
	for _, b := range p.Preferences.Brands {
		if b == brand {
			return true
		}
	}
	return false
}
