package models

import "time"

// ResultSource records which data source produced a lookup result. It is the
// provenance field used by quality audits and by the cache TTL policy.
type ResultSource string

const (
	SourceStaticTable     ResultSource = "STATIC_TABLE"
	SourceGeocoder        ResultSource = "GEOCODER"
	SourceFallbackDefault ResultSource = "FALLBACK_DEFAULT"
)

// JurisdictionLevel is the set of government tiers the system can produce
// representative data for at a given location.
type JurisdictionLevel string

const (
	LevelFullCoverage JurisdictionLevel = "FULL_COVERAGE"
	LevelFederalOnly  JurisdictionLevel = "FEDERAL_ONLY"
	LevelCountyOnly   JurisdictionLevel = "COUNTY_ONLY"
)

// JurisdictionType distinguishes ordinary municipal territory from special
// jurisdictions that have no municipal government of their own.
type JurisdictionType string

const (
	JurisdictionIncorporated   JurisdictionType = "incorporated"
	JurisdictionUnincorporated JurisdictionType = "unincorporated"
	JurisdictionMilitary       JurisdictionType = "military"
	JurisdictionTribal         JurisdictionType = "tribal"
	JurisdictionPOBox          JurisdictionType = "po_box"
)

// DistrictSet holds the legislative districts resolved for one location.
// District numbers are small positive integers; zero means unresolved.
type DistrictSet struct {
	Congressional int `json:"congressional_district"`
	StateSenate   int `json:"state_senate_district"`
	StateAssembly int `json:"state_assembly_district"`

	// MultiDistrict is set when the location spans district boundaries and
	// Alternates lists the other plausible assignments per chamber. Consumers
	// must pick or display all, never assume the primary is the only answer.
	MultiDistrict bool                 `json:"multi_district"`
	Alternates    []DistrictAssignment `json:"alternate_districts,omitempty"`
}

// Resolved reports whether at least the congressional district is known.
func (d DistrictSet) Resolved() bool {
	return d.Congressional > 0
}

// ZipLookupResult is the resolved jurisdiction bundle for one ZIP code.
// Results are immutable once built; corrections produce a new version and
// replace cache entries wholesale.
type ZipLookupResult struct {
	ZipCode string `json:"zip_code"`

	// City is empty for unincorporated territory. IsIncorporated == true
	// implies City is non-empty.
	City   string `json:"city,omitempty"`
	County string `json:"county"`
	State  string `json:"state"`

	CongressionalDistrict int `json:"congressional_district"`
	StateSenateDistrict   int `json:"state_senate_district,omitempty"`
	StateAssemblyDistrict int `json:"state_assembly_district,omitempty"`

	JurisdictionLevel JurisdictionLevel `json:"jurisdiction_level"`
	JurisdictionType  JurisdictionType  `json:"jurisdiction_type,omitempty"`
	IsIncorporated    bool              `json:"is_incorporated"`

	// AlternateDistricts carries each alternate with its chamber; district
	// numbers repeat across chambers, so a bare number is ambiguous.
	MultiDistrict      bool                 `json:"multi_district"`
	AlternateDistricts []DistrictAssignment `json:"alternate_districts,omitempty"`

	// SecondaryCounty records the minority county of a cross-county ZIP for
	// transparency; County always holds the majority-population county.
	SecondaryCounty string `json:"secondary_county,omitempty"`

	// DataQualityScore is in [0, 1]. Static table entries score >= 0.9,
	// geocoder results 0.5-0.9, fallback defaults below 0.5.
	DataQualityScore float64      `json:"data_quality_score"`
	Source           ResultSource `json:"source"`

	// DatasetVersion names the static reference dataset version consulted
	// when this result was built.
	DatasetVersion string `json:"dataset_version,omitempty"`

	// Message carries a human-readable note for degraded or out-of-coverage
	// results ("approximate location only", "federal-level data only").
	Message string `json:"message,omitempty"`

	ResolvedAt time.Time `json:"resolved_at"`
}

// LowConfidence reports whether callers should treat the result as a guess
// rather than verified data.
func (r ZipLookupResult) LowConfidence() bool {
	return r.DataQualityScore < 0.5
}
