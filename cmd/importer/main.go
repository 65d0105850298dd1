package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strconv"

	"citzn-api/internal/config"

	"github.com/jackc/pgx/v5"
)

// The importer loads redistricting datasets into Postgres: the pre-computed
// ZIP-to-district table and, optionally, authoritative district boundary
// polygons (WKT) for the containment strategy.

type ZipDistrictRecord struct {
	Zip             string
	State           string
	Chamber         string
	District        int
	PopulationShare float64
}

type BoundaryRecord struct {
	State    string
	Chamber  string
	District int
	WKT      string
}

func main() {
	zipFile := flag.String("zip-districts", "", "Path to the ZIP-to-district CSV file to import")
	boundaryFile := flag.String("boundaries", "", "Optional path to the district boundary WKT CSV file")
	replace := flag.Bool("replace", false, "Truncate existing tables before importing (redistricting refresh)")
	flag.Parse()

	if *zipFile == "" {
		fmt.Println("Error: --zip-districts flag is required")
		os.Exit(1)
	}

	fmt.Printf("Starting import from file: %s\n", *zipFile)

	records, err := parseZipDistrictsCSV(*zipFile)
	if err != nil {
		fmt.Printf("Error parsing CSV: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Parsed %d zip-district records\n", len(records))

	var boundaries []BoundaryRecord
	if *boundaryFile != "" {
		boundaries, err = parseBoundariesCSV(*boundaryFile)
		if err != nil {
			fmt.Printf("Error parsing boundary CSV: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Parsed %d boundary records\n", len(boundaries))
	}

	// Load config
	cfg, err := config.LoadConfig("configs")
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Connect to DB
	conn, err := pgx.Connect(context.Background(), cfg.DBSource)
	if err != nil {
		fmt.Printf("Error connecting to database: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close(context.Background())

	// Ensure tables exist
	if err := createTablesIfNotExist(conn); err != nil {
		fmt.Printf("Error creating tables: %v\n", err)
		os.Exit(1)
	}

	if *replace {
		if err := truncateTables(conn); err != nil {
			fmt.Printf("Error truncating tables: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Existing tables truncated")
	}

	// Insert records
	if err := insertZipDistricts(conn, records); err != nil {
		fmt.Printf("Error inserting zip-district records: %v\n", err)
		os.Exit(1)
	}

	if len(boundaries) > 0 {
		if err := insertBoundaries(conn, boundaries); err != nil {
			fmt.Printf("Error inserting boundary records: %v\n", err)
			os.Exit(1)
		}
	}

	// Verify data
	if err := verifyImport(conn, len(records)); err != nil {
		fmt.Printf("Error verifying import: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully imported %d zip-district records and %d boundaries\n", len(records), len(boundaries))
}

func parseZipDistrictsCSV(filePath string) ([]ZipDistrictRecord, error) {
	rows, err := readCSV(filePath, 5)
	if err != nil {
		return nil, err
	}

	var records []ZipDistrictRecord
	for _, row := range rows {
		district, err := strconv.Atoi(row[3])
		if err != nil || district <= 0 {
			return nil, fmt.Errorf("invalid district number: %s", row[3])
		}

		share, err := strconv.ParseFloat(row[4], 64)
		if err != nil || share < 0 || share > 1 {
			return nil, fmt.Errorf("invalid population share: %s", row[4])
		}

		records = append(records, ZipDistrictRecord{
			Zip:             row[0],
			State:           row[1],
			Chamber:         row[2],
			District:        district,
			PopulationShare: share,
		})
	}

	return records, nil
}

func parseBoundariesCSV(filePath string) ([]BoundaryRecord, error) {
	rows, err := readCSV(filePath, 4)
	if err != nil {
		return nil, err
	}

	var records []BoundaryRecord
	for _, row := range rows {
		district, err := strconv.Atoi(row[2])
		if err != nil || district <= 0 {
			return nil, fmt.Errorf("invalid district number: %s", row[2])
		}

		records = append(records, BoundaryRecord{
			State:    row[0],
			Chamber:  row[1],
			District: district,
			WKT:      row[3],
		})
	}

	return records, nil
}

func readCSV(filePath string, minColumns int) ([][]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields

	// Skip header
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if err != nil {
			if err.Error() == "EOF" {
				break
			}
			return nil, fmt.Errorf("failed to read record: %w", err)
		}

		if len(row) < minColumns {
			return nil, fmt.Errorf("invalid record length: %d, expected at least %d columns", len(row), minColumns)
		}

		rows = append(rows, row)
	}

	return rows, nil
}

func createTablesIfNotExist(conn *pgx.Conn) error {
	query := `
	CREATE EXTENSION IF NOT EXISTS postgis;

	CREATE TABLE IF NOT EXISTS zip_districts (
		id BIGSERIAL PRIMARY KEY,
		zip CHAR(5) NOT NULL,
		state VARCHAR(2) NOT NULL,
		chamber VARCHAR(16) NOT NULL,
		district INT NOT NULL CHECK (district > 0),
		population_share DOUBLE PRECISION NOT NULL DEFAULT 1.0
	);
	CREATE INDEX IF NOT EXISTS zip_districts_zip_idx ON zip_districts (zip);
	CREATE INDEX IF NOT EXISTS zip_districts_state_idx ON zip_districts (state, chamber, district);

	CREATE TABLE IF NOT EXISTS district_boundaries (
		id BIGSERIAL PRIMARY KEY,
		state VARCHAR(2) NOT NULL,
		chamber VARCHAR(16) NOT NULL,
		district INT NOT NULL CHECK (district > 0),
		geom GEOMETRY(MULTIPOLYGON, 4326) NOT NULL
	);
	CREATE INDEX IF NOT EXISTS district_boundaries_geom_idx ON district_boundaries USING GIST (geom);
	`
	_, err := conn.Exec(context.Background(), query)
	return err
}

func truncateTables(conn *pgx.Conn) error {
	_, err := conn.Exec(context.Background(), "TRUNCATE zip_districts, district_boundaries")
	return err
}

func insertZipDistricts(conn *pgx.Conn, records []ZipDistrictRecord) error {
	// Use CopyFrom for bulk insert
	_, err := conn.CopyFrom(
		context.Background(),
		pgx.Identifier{"zip_districts"},
		[]string{"zip", "state", "chamber", "district", "population_share"},
		pgx.CopyFromSlice(len(records), func(i int) ([]interface{}, error) {
			r := records[i]
			return []interface{}{r.Zip, r.State, r.Chamber, r.District, r.PopulationShare}, nil
		}),
	)
	return err
}

func insertBoundaries(conn *pgx.Conn, records []BoundaryRecord) error {
	// WKT goes through ST_Multi so single polygons and multipolygons both fit
	// the column type.
	for _, r := range records {
		_, err := conn.Exec(
			context.Background(),
			`INSERT INTO district_boundaries (state, chamber, district, geom)
			 VALUES ($1, $2, $3, ST_Multi(ST_GeomFromText($4, 4326)))`,
			r.State, r.Chamber, r.District, r.WKT,
		)
		if err != nil {
			return fmt.Errorf("failed to insert boundary for %s %s %d: %w", r.State, r.Chamber, r.District, err)
		}
	}
	return nil
}

func verifyImport(conn *pgx.Conn, expectedCount int) error {
	var count int
	err := conn.QueryRow(context.Background(), "SELECT COUNT(*) FROM zip_districts").Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to count records: %w", err)
	}

	if count < expectedCount {
		return fmt.Errorf("record count mismatch: expected at least %d, got %d", expectedCount, count)
	}

	// Spot-check one row
	var zip string
	var district int
	err = conn.QueryRow(context.Background(), "SELECT zip, district FROM zip_districts LIMIT 1").Scan(&zip, &district)
	if err != nil {
		return fmt.Errorf("failed to check sample row: %w", err)
	}

	fmt.Printf("Sample row: ZIP %s -> district %d\n", zip, district)
	return nil
}
