package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/carfin-ai/carfin/pkg/models"
)

// VehicleStore serves listing and review queries for the analyzer plug-ins.
// It satisfies the agent.VehicleStore contract.
type VehicleStore struct {
	client *Client
}

// NewVehicleStore creates a store over client.
func NewVehicleStore(client *Client) *VehicleStore {
	return &VehicleStore{client: client}
}

const defaultSearchLimit = 50

// SearchVehicles returns listings matching criteria, newest first. Zero
// criteria fields add no predicate.
func (s *VehicleStore) SearchVehicles(ctx context.Context, criteria models.SearchCriteria) ([]models.Vehicle, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if criteria.BudgetMin > 0 {
		where = append(where, "price >= "+arg(criteria.BudgetMin))
	}
	if criteria.BudgetMax > 0 {
		where = append(where, "price <= "+arg(criteria.BudgetMax))
	}
	if len(criteria.Brands) > 0 {
		placeholders := make([]string, len(criteria.Brands))
		for i, b := range criteria.Brands {
			placeholders[i] = arg(b)
		}
		where = append(where, "brand IN ("+strings.Join(placeholders, ", ")+")")
	}
	if criteria.MinYear > 0 {
		where = append(where, "year >= "+arg(criteria.MinYear))
	}
	if criteria.MaxDistance > 0 {
		where = append(where, "distance <= "+arg(criteria.MaxDistance))
	}
	if criteria.FuelType != "" {
		where = append(where, "fuel_type = "+arg(criteria.FuelType))
	}
	if criteria.Transmission != "" {
		where = append(where, "transmission = "+arg(criteria.Transmission))
	}

	limit := criteria.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	query := "SELECT id, brand, model, year, price, distance, fuel_type, transmission, body_type FROM vehicles"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY year DESC, id ASC LIMIT " + arg(limit)

	rows, err := s.client.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []models.Vehicle
	for rows.Next() {
		var v models.Vehicle
		if err := rows.Scan(&v.ID, &v.Brand, &v.Model, &v.Year, &v.Price,
			&v.Distance, &v.FuelType, &v.Transmission, &v.BodyType); err != nil {
			return nil, fmt.Errorf("failed to scan vehicle row: %w", err)
		}
		vehicles = append(vehicles, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vehicle rows: %w", err)
	}
	return vehicles, nil
}

// ListReviews returns the most recent reviews for one listing.
func (s *VehicleStore) ListReviews(ctx context.Context, vehicleID string, limit int) ([]models.VehicleReview, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	rows, err := s.client.db.QueryContext(ctx,
		`SELECT vehicle_id, rating, review FROM vehicle_reviews
		 WHERE vehicle_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`,
		vehicleID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []models.VehicleReview
	for rows.Next() {
		var r models.VehicleReview
		if err := rows.Scan(&r.VehicleID, &r.Rating, &r.Text); err != nil {
			return nil, fmt.Errorf("failed to scan review row: %w", err)
		}
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate review rows: %w", err)
	}
	return reviews, nil
}
