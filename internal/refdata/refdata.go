package refdata

import (
	"bytes"
	_ "embed"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"citzn-api/internal/models"

	"github.com/jszwec/csvutil"
)

// Version identifies the bundled reference dataset. Updates ship as a new
// dataset version; entries are never edited in place at runtime.
const Version = "2026.08"

//go:embed data/zip_reference.csv
var zipReferenceCSV []byte

//go:embed data/zip_prefixes.csv
var zipPrefixesCSV []byte

// Entry is one verified ZIP mapping from the static reference table.
type Entry struct {
	Zip              string
	City             string
	County           string
	State            string
	Districts        models.DistrictSet
	JurisdictionType models.JurisdictionType
	SecondaryCounty  string

	// Verified entries have been hand-checked against authoritative district
	// data and score 1.0; unverified entries score 0.9.
	Verified bool
}

// PrefixRegion maps a 3-digit ZIP prefix range to a state and the principal
// county of the sectional center covering that range. It is the last-resort
// fallback when both the static table and the geocoder come up empty.
type PrefixRegion struct {
	Low             int
	High            int
	State           string
	PrincipalCounty string
}

type entryRecord struct {
	Zip              string `csv:"zip"`
	City             string `csv:"city"`
	County           string `csv:"county"`
	State            string `csv:"state"`
	Congressional    int    `csv:"congressional"`
	StateSenate      int    `csv:"state_senate"`
	StateAssembly    int    `csv:"state_assembly"`
	AltCongressional string `csv:"alt_congressional"`
	AltStateSenate   string `csv:"alt_state_senate"`
	AltStateAssembly string `csv:"alt_state_assembly"`
	JurisdictionType string `csv:"jurisdiction_type"`
	SecondaryCounty  string `csv:"secondary_county"`
	Verified         string `csv:"verified"`
}

type prefixRecord struct {
	Low             int    `csv:"low"`
	High            int    `csv:"high"`
	State           string `csv:"state"`
	PrincipalCounty string `csv:"principal_county"`
}

// Table is the immutable, indexed form of the reference dataset, built once
// at startup.
type Table struct {
	entries  map[string]Entry
	prefixes []PrefixRegion
}

// Load parses the embedded dataset into an indexed table. Duplicate ZIP rows
// are rejected so a bad dataset build fails at startup rather than serving
// whichever row happened to load last.
func Load() (*Table, error) {
	var records []entryRecord
	if err := csvutil.Unmarshal(normalize(zipReferenceCSV), &records); err != nil {
		return nil, fmt.Errorf("refdata: failed to parse zip reference table: %w", err)
	}

	entries := make(map[string]Entry, len(records))
	for _, rec := range records {
		if _, ok := entries[rec.Zip]; ok {
			return nil, fmt.Errorf("refdata: duplicate ZIP %s in reference table", rec.Zip)
		}

		alternates, err := parseAlternates(rec)
		if err != nil {
			return nil, err
		}

		entries[rec.Zip] = Entry{
			Zip:    rec.Zip,
			City:   rec.City,
			County: rec.County,
			State:  rec.State,
			Districts: models.DistrictSet{
				Congressional: rec.Congressional,
				StateSenate:   rec.StateSenate,
				StateAssembly: rec.StateAssembly,
				MultiDistrict: len(alternates) > 0,
				Alternates:    alternates,
			},
			JurisdictionType: models.JurisdictionType(rec.JurisdictionType),
			SecondaryCounty:  rec.SecondaryCounty,
			Verified:         strings.EqualFold(rec.Verified, "Y"),
		}
	}

	var prefixRecords []prefixRecord
	if err := csvutil.Unmarshal(normalize(zipPrefixesCSV), &prefixRecords); err != nil {
		return nil, fmt.Errorf("refdata: failed to parse zip prefix table: %w", err)
	}

	prefixes := make([]PrefixRegion, 0, len(prefixRecords))
	for _, rec := range prefixRecords {
		if rec.Low > rec.High || rec.Low < 0 || rec.High > 999 {
			return nil, fmt.Errorf("refdata: invalid prefix range %d-%d", rec.Low, rec.High)
		}
		prefixes = append(prefixes, PrefixRegion(rec))
	}
	sort.Slice(prefixes, func(i, j int) bool { return prefixes[i].Low < prefixes[j].Low })

	return &Table{entries: entries, prefixes: prefixes}, nil
}

// Lookup returns the verified entry for a 5-digit ZIP, if one exists.
func (t *Table) Lookup(zip string) (Entry, bool) {
	e, ok := t.entries[zip]
	return e, ok
}

// RegionForZip locates the prefix region covering the ZIP's first three
// digits. A miss means the prefix is unassigned and the ZIP cannot be placed
// in any state.
func (t *Table) RegionForZip(zip string) (PrefixRegion, bool) {
	if len(zip) != 5 {
		return PrefixRegion{}, false
	}
	prefix, err := strconv.Atoi(zip[:3])
	if err != nil {
		return PrefixRegion{}, false
	}
	for _, r := range t.prefixes {
		if prefix >= r.Low && prefix <= r.High {
			return r, true
		}
	}
	return PrefixRegion{}, false
}

// Size returns the number of verified ZIP entries.
func (t *Table) Size() int { return len(t.entries) }

func parseAlternates(rec entryRecord) ([]models.DistrictAssignment, error) {
	columns := []struct {
		field   string
		chamber models.Chamber
	}{
		{rec.AltCongressional, models.ChamberCongressional},
		{rec.AltStateSenate, models.ChamberStateSenate},
		{rec.AltStateAssembly, models.ChamberStateAssembly},
	}

	var alternates []models.DistrictAssignment
	for _, col := range columns {
		if col.field == "" {
			continue
		}
		for _, part := range strings.Split(col.field, "|") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("refdata: invalid alternate district %q for ZIP %s", part, rec.Zip)
			}
			alternates = append(alternates, models.DistrictAssignment{Chamber: col.chamber, District: n})
		}
	}
	return alternates, nil
}

func normalize(data []byte) []byte {
	return bytes.TrimSpace(data)
}
