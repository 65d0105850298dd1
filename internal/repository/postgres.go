package repository

import (
	"context"
	"fmt"

	"citzn-api/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements district boundary lookups against PostgreSQL/PostGIS.
// It backs the two resolution strategies of the district resolver: exact
// polygon containment against authoritative boundary geometry, and the
// pre-computed ZIP-to-district lookup table refreshed after redistricting.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// FindDistrictsByPoint returns every district whose boundary polygon contains
// the given coordinates.
func (r *Repository) FindDistrictsByPoint(ctx context.Context, lat, lon float64) ([]models.DistrictAssignment, error) {
	sql := `
		SELECT chamber, district
		FROM district_boundaries
		WHERE ST_Contains(geom, ST_SetSRID(ST_MakePoint($2, $1), 4326))
		ORDER BY chamber, district
	`

	rows, err := r.db.Query(ctx, sql, lat, lon)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to execute containment query: %w", err)
	}
	defer rows.Close()

	var assignments []models.DistrictAssignment
	for rows.Next() {
		var a models.DistrictAssignment
		if err := rows.Scan(&a.Chamber, &a.District); err != nil {
			return nil, fmt.Errorf("repository: failed to scan district assignment: %w", err)
		}
		assignments = append(assignments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating rows: %w", err)
	}

	return assignments, nil
}

// FindDistrictsByZip returns the pre-computed district assignments for a ZIP,
// largest population share first within each chamber. Multiple rows per
// chamber indicate a boundary-spanning ZIP.
func (r *Repository) FindDistrictsByZip(ctx context.Context, zip string) ([]models.DistrictAssignment, error) {
	sql := `
		SELECT chamber, district
		FROM zip_districts
		WHERE zip = $1
		ORDER BY chamber, population_share DESC, district
	`

	rows, err := r.db.Query(ctx, sql, zip)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to execute zip district query: %w", err)
	}
	defer rows.Close()

	var assignments []models.DistrictAssignment
	for rows.Next() {
		var a models.DistrictAssignment
		if err := rows.Scan(&a.Chamber, &a.District); err != nil {
			return nil, fmt.Errorf("repository: failed to scan district assignment: %w", err)
		}
		assignments = append(assignments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating rows: %w", err)
	}

	return assignments, nil
}
