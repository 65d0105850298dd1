//go:build integration

package repository

import (
	"context"
	"testing"

	"citzn-api/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jackc/pgx/v5/pgxpool"
)

func setupTestDatabase(t *testing.T) *pgxpool.Pool {
	ctx := context.Background()

	// Start PostgreSQL container with PostGIS
	req := testcontainers.ContainerRequest{
		Image:        "postgis/postgis:16-3.4",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "testdb",
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections"),
	}

	postgresC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		postgresC.Terminate(ctx)
	})

	host, err := postgresC.Host(ctx)
	require.NoError(t, err)

	port, err := postgresC.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connString := "postgres://testuser:testpass@" + host + ":" + port.Port() + "/testdb?sslmode=disable"

	// Connect to database
	pool, err := pgxpool.New(ctx, connString)
	require.NoError(t, err)

	t.Cleanup(func() {
		pool.Close()
	})

	// Create test schema: two adjacent congressional districts split at
	// longitude -121.0, one senate district covering both, and lookup table
	// rows including a boundary-spanning ZIP.
	_, err = pool.Exec(ctx, `
		CREATE EXTENSION IF NOT EXISTS postgis;

		CREATE TABLE zip_districts (
			id BIGSERIAL PRIMARY KEY,
			zip CHAR(5) NOT NULL,
			state VARCHAR(2) NOT NULL,
			chamber VARCHAR(16) NOT NULL,
			district INT NOT NULL CHECK (district > 0),
			population_share DOUBLE PRECISION NOT NULL DEFAULT 1.0
		);
		CREATE INDEX zip_districts_zip_idx ON zip_districts (zip);

		CREATE TABLE district_boundaries (
			id BIGSERIAL PRIMARY KEY,
			state VARCHAR(2) NOT NULL,
			chamber VARCHAR(16) NOT NULL,
			district INT NOT NULL CHECK (district > 0),
			geom GEOMETRY(MULTIPOLYGON, 4326) NOT NULL
		);
		CREATE INDEX district_boundaries_geom_idx ON district_boundaries USING GIST (geom);

		INSERT INTO district_boundaries (state, chamber, district, geom) VALUES
		('CA', 'congressional', 7, ST_Multi(ST_GeomFromText('POLYGON((-122 38, -121 38, -121 39, -122 39, -122 38))', 4326))),
		('CA', 'congressional', 3, ST_Multi(ST_GeomFromText('POLYGON((-121 38, -120 38, -120 39, -121 39, -121 38))', 4326))),
		('CA', 'senate', 8, ST_Multi(ST_GeomFromText('POLYGON((-122 38, -120 38, -120 39, -122 39, -122 38))', 4326)));

		INSERT INTO zip_districts (zip, state, chamber, district, population_share) VALUES
		('95814', 'CA', 'congressional', 7, 1.0),
		('95814', 'CA', 'senate', 8, 1.0),
		('95814', 'CA', 'assembly', 6, 1.0),
		('95682', 'CA', 'assembly', 5, 0.7),
		('95682', 'CA', 'assembly', 6, 0.3);
	`)
	require.NoError(t, err)

	return pool
}

func TestRepository_FindDistrictsByPoint(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	pool := setupTestDatabase(t)
	repo := NewRepository(pool)
	ctx := context.Background()

	tests := []struct {
		name     string
		lat      float64
		lon      float64
		expected []models.DistrictAssignment
	}{
		{
			name: "point in western district",
			lat:  38.5,
			lon:  -121.5,
			expected: []models.DistrictAssignment{
				{Chamber: models.ChamberCongressional, District: 7},
				{Chamber: models.ChamberStateSenate, District: 8},
			},
		},
		{
			name: "point in eastern district",
			lat:  38.5,
			lon:  -120.5,
			expected: []models.DistrictAssignment{
				{Chamber: models.ChamberCongressional, District: 3},
				{Chamber: models.ChamberStateSenate, District: 8},
			},
		},
		{
			name:     "point outside all boundaries",
			lat:      45.0,
			lon:      -100.0,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assignments, err := repo.FindDistrictsByPoint(ctx, tt.lat, tt.lon)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.expected, assignments)
		})
	}
}

func TestRepository_FindDistrictsByZip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	pool := setupTestDatabase(t)
	repo := NewRepository(pool)
	ctx := context.Background()

	t.Run("single-district zip", func(t *testing.T) {
		assignments, err := repo.FindDistrictsByZip(ctx, "95814")
		require.NoError(t, err)
		assert.ElementsMatch(t, []models.DistrictAssignment{
			{Chamber: models.ChamberCongressional, District: 7},
			{Chamber: models.ChamberStateSenate, District: 8},
			{Chamber: models.ChamberStateAssembly, District: 6},
		}, assignments)
	})

	t.Run("boundary-spanning zip lists majority district first", func(t *testing.T) {
		assignments, err := repo.FindDistrictsByZip(ctx, "95682")
		require.NoError(t, err)
		require.Len(t, assignments, 2)
		assert.Equal(t, models.DistrictAssignment{Chamber: models.ChamberStateAssembly, District: 5}, assignments[0])
		assert.Equal(t, models.DistrictAssignment{Chamber: models.ChamberStateAssembly, District: 6}, assignments[1])
	})

	t.Run("unknown zip", func(t *testing.T) {
		assignments, err := repo.FindDistrictsByZip(ctx, "90404")
		require.NoError(t, err)
		assert.Empty(t, assignments)
	})
}
