package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"citzn-api/internal/classifier"
	"citzn-api/internal/geocoder"
	"citzn-api/internal/metrics"
	"citzn-api/internal/models"
	"citzn-api/internal/refdata"
	"citzn-api/internal/resolver"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Quality score bands per source. Static table entries are hand-verified,
// geocoder results depend on provider accuracy, fallback results are a
// prefix-based guess.
const (
	scoreStaticVerified   = 1.0
	scoreStaticUnverified = 0.9
	scoreGeocoderBase     = 0.5
	scoreGeocoderSpan     = 0.35
	scoreFallback         = 0.3
	scoreUnresolved       = 0.1
)

// Coverage policies for ZIPs outside the configured full-coverage states.
const (
	PolicyFederalOnly = "federal_only"
	PolicyReject      = "reject"
)

var zipPattern = regexp.MustCompile(`^(\d{5})(?:-\d{4})?$`)

// Cache interface for dependency injection
type Cache interface {
	Get(ctx context.Context, zip string) (models.ZipLookupResult, bool)
	Set(ctx context.Context, zip string, result models.ZipLookupResult) error
	InvalidateZip(ctx context.Context, zip string) error
	InvalidateState(ctx context.Context, state string) (int, error)
	InvalidateDistrict(ctx context.Context, state string, chamber models.Chamber, district int) (int, error)
}

// Geocoder interface for dependency injection
type Geocoder interface {
	Geocode(ctx context.Context, zip string) (*geocoder.Result, error)
}

// DistrictResolver interface for dependency injection
type DistrictResolver interface {
	ResolveDistricts(ctx context.Context, zip string, point *resolver.GeoPoint) (models.DistrictSet, error)
}

// Classifier interface for dependency injection
type Classifier interface {
	Classify(zip, state, cityHint string) classifier.Classification
}

// ReferenceTable interface for dependency injection
type ReferenceTable interface {
	Lookup(zip string) (refdata.Entry, bool)
	RegionForZip(zip string) (refdata.PrefixRegion, bool)
}

// ResolveService is the resolution orchestrator and the sole public entry
// point of the engine: ZIP in, jurisdiction bundle out. The chain is cache,
// static reference table, geocoder, prefix fallback; transient upstream
// failures always degrade to a lower-quality result and are never surfaced
// to the caller. Only malformed input and (under the reject policy)
// out-of-coverage ZIPs produce errors.
type ResolveService struct {
	cache      Cache
	static     ReferenceTable
	geocoder   Geocoder
	districts  DistrictResolver
	classifier Classifier

	policy     string
	fullStates map[string]bool

	flight singleflight.Group
}

// NewResolveService creates the orchestrator. policy is one of
// PolicyFederalOnly or PolicyReject.
func NewResolveService(cache Cache, static ReferenceTable, geo Geocoder, districts DistrictResolver, cls Classifier, policy string, fullCoverageStates []string) *ResolveService {
	fullStates := make(map[string]bool, len(fullCoverageStates))
	for _, s := range fullCoverageStates {
		fullStates[s] = true
	}
	return &ResolveService{
		cache:      cache,
		static:     static,
		geocoder:   geo,
		districts:  districts,
		classifier: cls,
		policy:     policy,
		fullStates: fullStates,
	}
}

// NormalizeZip trims the input and strips a ZIP+4 suffix, returning the
// 5-digit base ZIP or ErrInvalidZipFormat.
func NormalizeZip(raw string) (string, error) {
	m := zipPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", models.ErrInvalidZipFormat
	}
	return m[1], nil
}

// Resolve maps a ZIP code to its jurisdiction bundle. Concurrent lookups for
// the same uncached ZIP collapse into a single upstream resolution whose
// result fans out to all waiters.
func (s *ResolveService) Resolve(ctx context.Context, rawZip string) (models.ZipLookupResult, error) {
	zip, err := NormalizeZip(rawZip)
	if err != nil {
		metrics.ResolveErrorsTotal.WithLabelValues("invalid_format").Inc()
		return models.ZipLookupResult{}, err
	}

	start := time.Now()
	defer func() {
		metrics.ResolveDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	}()

	if result, ok := s.cache.Get(ctx, zip); ok {
		return result, nil
	}
	metrics.CacheMissesTotal.Inc()

	v, err, shared := s.flight.Do(zip, func() (interface{}, error) {
		// The leader's work fans out to every collapsed waiter, so it must
		// not die with the first caller's context. Waiters that queued behind
		// the leader also re-check the cache first; the leader may have
		// completed between their miss and this call.
		ctx := context.WithoutCancel(ctx)
		if result, ok := s.cache.Get(ctx, zip); ok {
			return result, nil
		}
		return s.resolveUncached(ctx, zip)
	})
	if shared {
		metrics.SingleFlightSharedTotal.Inc()
	}
	if err != nil {
		if errors.Is(err, models.ErrOutOfCoverageArea) {
			metrics.ResolveErrorsTotal.WithLabelValues("out_of_coverage").Inc()
		}
		return models.ZipLookupResult{}, err
	}
	return v.(models.ZipLookupResult), nil
}

// resolveUncached runs the static -> geocoder -> fallback chain and writes
// the result back to the cache.
func (s *ResolveService) resolveUncached(ctx context.Context, zip string) (models.ZipLookupResult, error) {
	var result models.ZipLookupResult
	var point *resolver.GeoPoint

	if entry, ok := s.static.Lookup(zip); ok {
		result = s.fromStatic(zip, entry)
	} else if geo, err := s.geocode(ctx, zip); err == nil {
		result = s.fromGeocoder(zip, geo)
		point = &resolver.GeoPoint{Latitude: geo.Latitude, Longitude: geo.Longitude}
	} else {
		fallback, err := s.fromFallback(zip)
		if err != nil {
			return models.ZipLookupResult{}, err
		}
		result = fallback
	}

	s.refineDistricts(ctx, zip, &result, point)

	if err := s.applyCoveragePolicy(&result); err != nil {
		return models.ZipLookupResult{}, err
	}

	finalize(&result)

	if err := s.cache.Set(ctx, zip, result); err != nil {
		log.Warn().Str("zip", zip).Err(err).Msg("cache write failed")
	}
	metrics.ResolvesTotal.WithLabelValues(string(result.Source)).Inc()

	return result, nil
}

func (s *ResolveService) fromStatic(zip string, entry refdata.Entry) models.ZipLookupResult {
	cls := s.classifier.Classify(zip, entry.State, entry.City)

	score := scoreStaticUnverified
	if entry.Verified {
		score = scoreStaticVerified
	}

	return models.ZipLookupResult{
		ZipCode:               zip,
		City:                  cls.City,
		County:                entry.County,
		State:                 entry.State,
		CongressionalDistrict: entry.Districts.Congressional,
		StateSenateDistrict:   entry.Districts.StateSenate,
		StateAssemblyDistrict: entry.Districts.StateAssembly,
		JurisdictionLevel:     cls.JurisdictionLevel,
		JurisdictionType:      cls.JurisdictionType,
		IsIncorporated:        cls.IsIncorporated,
		MultiDistrict:         entry.Districts.MultiDistrict,
		AlternateDistricts:    append([]models.DistrictAssignment(nil), entry.Districts.Alternates...),
		SecondaryCounty:       cls.SecondaryCounty,
		DataQualityScore:      score,
		Source:                models.SourceStaticTable,
		DatasetVersion:        refdata.Version,
		ResolvedAt:            time.Now().UTC(),
	}
}

func (s *ResolveService) fromGeocoder(zip string, geo *geocoder.Result) models.ZipLookupResult {
	cls := s.classifier.Classify(zip, geo.State, geo.City)

	return models.ZipLookupResult{
		ZipCode:               zip,
		City:                  cls.City,
		County:                geo.County,
		State:                 geo.State,
		CongressionalDistrict: geo.Congressional,
		StateSenateDistrict:   geo.StateSenate,
		StateAssemblyDistrict: geo.StateAssembly,
		JurisdictionLevel:     cls.JurisdictionLevel,
		JurisdictionType:      cls.JurisdictionType,
		IsIncorporated:        cls.IsIncorporated,
		SecondaryCounty:       cls.SecondaryCounty,
		DataQualityScore:      scoreGeocoderBase + scoreGeocoderSpan*geo.Accuracy,
		Source:                models.SourceGeocoder,
		DatasetVersion:        refdata.Version,
		ResolvedAt:            time.Now().UTC(),
	}
}

// fromFallback places the ZIP by its 3-digit prefix. A prefix absent from the
// reference dataset means the ZIP cannot be matched to any county, which is a
// rejection, never a default.
func (s *ResolveService) fromFallback(zip string) (models.ZipLookupResult, error) {
	region, ok := s.static.RegionForZip(zip)
	if !ok {
		metrics.ResolveErrorsTotal.WithLabelValues("unrecognized").Inc()
		return models.ZipLookupResult{}, fmt.Errorf("ZIP code %s not recognized: %w", zip, models.ErrOutOfCoverageArea)
	}

	return models.ZipLookupResult{
		ZipCode:           zip,
		County:            region.PrincipalCounty,
		State:             region.State,
		JurisdictionLevel: models.LevelCountyOnly,
		JurisdictionType:  models.JurisdictionUnincorporated,
		DataQualityScore:  scoreFallback,
		Source:            models.SourceFallbackDefault,
		DatasetVersion:    refdata.Version,
		Message:           "Approximate location derived from ZIP prefix; low confidence.",
		ResolvedAt:        time.Now().UTC(),
	}, nil
}

func (s *ResolveService) geocode(ctx context.Context, zip string) (*geocoder.Result, error) {
	geo, err := s.geocoder.Geocode(ctx, zip)
	switch {
	case err == nil:
		metrics.GeocoderRequestsTotal.WithLabelValues("success").Inc()
	case errors.Is(err, models.ErrGeocoderRateLimited):
		metrics.GeocoderRequestsTotal.WithLabelValues("rate_limited").Inc()
		log.Warn().Str("zip", zip).Msg("geocoder rate limited, using fallback path")
	case errors.Is(err, models.ErrGeocoderNoMatch):
		metrics.GeocoderRequestsTotal.WithLabelValues("no_match").Inc()
	default:
		metrics.GeocoderRequestsTotal.WithLabelValues("unavailable").Inc()
		log.Warn().Str("zip", zip).Err(err).Msg("geocoder unavailable, using fallback path")
	}
	return geo, err
}

// refineDistricts overlays the boundary resolver's answer on the districts
// the source already provided. Disagreements between sources mark the result
// multi-district instead of silently picking one.
func (s *ResolveService) refineDistricts(ctx context.Context, zip string, result *models.ZipLookupResult, point *resolver.GeoPoint) {
	refined, err := s.districts.ResolveDistricts(ctx, zip, point)
	if err != nil {
		log.Warn().Str("zip", zip).Err(err).Msg("district refinement unavailable")
		return
	}

	base := models.DistrictSet{
		Congressional: result.CongressionalDistrict,
		StateSenate:   result.StateSenateDistrict,
		StateAssembly: result.StateAssemblyDistrict,
		MultiDistrict: result.MultiDistrict,
		Alternates:    result.AlternateDistricts,
	}
	merged := mergeDistricts(base, refined)

	result.CongressionalDistrict = merged.Congressional
	result.StateSenateDistrict = merged.StateSenate
	result.StateAssemblyDistrict = merged.StateAssembly
	result.MultiDistrict = merged.MultiDistrict
	result.AlternateDistricts = merged.Alternates
}

// applyCoveragePolicy handles ZIPs resolving to states without full coverage.
func (s *ResolveService) applyCoveragePolicy(result *models.ZipLookupResult) error {
	if s.fullStates[result.State] {
		return nil
	}

	if s.policy == PolicyReject {
		metrics.ResolveErrorsTotal.WithLabelValues("out_of_coverage").Inc()
		return fmt.Errorf("state %s is not covered: %w", result.State, models.ErrOutOfCoverageArea)
	}

	// Federal-only results must not carry state-level districts anywhere,
	// alternates included.
	result.JurisdictionLevel = models.LevelFederalOnly
	result.StateSenateDistrict = 0
	result.StateAssemblyDistrict = 0
	kept := result.AlternateDistricts[:0]
	for _, alt := range result.AlternateDistricts {
		if alt.Chamber == models.ChamberCongressional {
			kept = append(kept, alt)
		}
	}
	result.AlternateDistricts = kept
	if result.Message == "" {
		result.Message = "Outside the full-coverage area; federal-level information only."
	}
	return nil
}

// finalize enforces the result invariants: a multi-district flag requires a
// non-empty alternate list distinct from the primaries, an unresolved
// congressional district caps the quality score near zero, and incorporation
// implies a city name.
func finalize(result *models.ZipLookupResult) {
	// Alternates only collide with the primary of their own chamber;
	// district numbers repeat freely across chambers.
	primaries := map[models.DistrictAssignment]bool{
		{Chamber: models.ChamberCongressional, District: result.CongressionalDistrict}: true,
		{Chamber: models.ChamberStateSenate, District: result.StateSenateDistrict}:     true,
		{Chamber: models.ChamberStateAssembly, District: result.StateAssemblyDistrict}: true,
	}
	alternates := result.AlternateDistricts[:0]
	for _, alt := range result.AlternateDistricts {
		if alt.District > 0 && !primaries[alt] {
			alternates = append(alternates, alt)
		}
	}
	result.AlternateDistricts = alternates
	result.MultiDistrict = len(alternates) > 0

	if result.IsIncorporated && result.City == "" {
		result.IsIncorporated = false
	}

	if result.CongressionalDistrict <= 0 {
		if result.DataQualityScore > scoreUnresolved {
			result.DataQualityScore = scoreUnresolved
		}
		if result.Message == "" {
			result.Message = "District resolution incomplete; treat as low confidence."
		}
	}
}

// InvalidateZip drops one ZIP from the cache after a manual data correction.
func (s *ResolveService) InvalidateZip(ctx context.Context, rawZip string) error {
	zip, err := NormalizeZip(rawZip)
	if err != nil {
		return err
	}
	metrics.InvalidationsTotal.WithLabelValues("zip").Inc()
	return s.cache.InvalidateZip(ctx, zip)
}

// InvalidateState drops every cached ZIP in a state, for redistricting
// events.
func (s *ResolveService) InvalidateState(ctx context.Context, state string) (int, error) {
	metrics.InvalidationsTotal.WithLabelValues("state").Inc()
	return s.cache.InvalidateState(ctx, state)
}

// InvalidateDistrict drops every cached ZIP assigned to one district.
func (s *ResolveService) InvalidateDistrict(ctx context.Context, state string, chamber models.Chamber, district int) (int, error) {
	metrics.InvalidationsTotal.WithLabelValues("district").Inc()
	return s.cache.InvalidateDistrict(ctx, state, chamber, district)
}

// mergeDistricts prefers the base (source-provided) primary per chamber and
// records the refined strategy's differing answer as an alternate.
func mergeDistricts(base, refined models.DistrictSet) models.DistrictSet {
	merged := models.DistrictSet{}
	merged.Congressional = pick(models.ChamberCongressional, base.Congressional, refined.Congressional, &merged)
	merged.StateSenate = pick(models.ChamberStateSenate, base.StateSenate, refined.StateSenate, &merged)
	merged.StateAssembly = pick(models.ChamberStateAssembly, base.StateAssembly, refined.StateAssembly, &merged)

	for _, alt := range append(append([]models.DistrictAssignment(nil), base.Alternates...), refined.Alternates...) {
		addAlternate(&merged, alt)
	}
	merged.MultiDistrict = len(merged.Alternates) > 0
	return merged
}

func pick(chamber models.Chamber, base, refined int, merged *models.DistrictSet) int {
	switch {
	case base > 0 && refined > 0 && base != refined:
		addAlternate(merged, models.DistrictAssignment{Chamber: chamber, District: refined})
		return base
	case base > 0:
		return base
	default:
		return refined
	}
}

func addAlternate(set *models.DistrictSet, alt models.DistrictAssignment) {
	if alt.District <= 0 {
		return
	}
	for _, existing := range set.Alternates {
		if existing == alt {
			return
		}
	}
	set.Alternates = append(set.Alternates, alt)
}
