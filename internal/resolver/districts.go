package resolver

import (
	"context"
	"fmt"

	"citzn-api/internal/models"

	"github.com/rs/zerolog/log"
)

// GeoPoint is a WGS84 coordinate pair from the geocoder.
type GeoPoint struct {
	Latitude  float64
	Longitude float64
}

// BoundaryStore interface for dependency injection
type BoundaryStore interface {
	FindDistrictsByPoint(ctx context.Context, lat, lon float64) ([]models.DistrictAssignment, error)
	FindDistrictsByZip(ctx context.Context, zip string) ([]models.DistrictAssignment, error)
}

// DistrictResolver determines the congressional, state senate, and state
// assembly districts for a location. Two strategies are tried: exact polygon
// containment when coordinates are available, then the pre-computed
// ZIP-to-district lookup table. When the strategies disagree, or the lookup
// table itself carries multiple districts for one chamber, the result is
// flagged multi-district with all alternates listed rather than silently
// picking one.
type DistrictResolver struct {
	store BoundaryStore
}

// NewDistrictResolver creates a new district resolver
func NewDistrictResolver(store BoundaryStore) *DistrictResolver {
	return &DistrictResolver{store: store}
}

// ResolveDistricts resolves the district set for a ZIP, using point
// containment when a geocoded point is available. A nil point skips the
// containment strategy. An error is returned only when every strategy failed
// outright; an empty (unresolved) set with no error means the data simply has
// no districts for the location.
func (r *DistrictResolver) ResolveDistricts(ctx context.Context, zip string, point *GeoPoint) (models.DistrictSet, error) {
	byChamber := make(map[models.Chamber][]int)
	strategies := 0
	failures := 0

	if point != nil {
		strategies++
		assignments, err := r.store.FindDistrictsByPoint(ctx, point.Latitude, point.Longitude)
		if err != nil {
			failures++
			log.Warn().Str("zip", zip).Err(err).Msg("containment strategy failed")
		} else {
			collect(byChamber, assignments)
		}
	}

	strategies++
	assignments, err := r.store.FindDistrictsByZip(ctx, zip)
	if err != nil {
		failures++
		log.Warn().Str("zip", zip).Err(err).Msg("zip district lookup failed")
	} else {
		collect(byChamber, assignments)
	}

	if failures == strategies {
		return models.DistrictSet{}, fmt.Errorf("resolver: all district strategies failed for ZIP %s: %w", zip, err)
	}

	return buildSet(byChamber), nil
}

// collect appends valid assignments, preserving first-seen order per chamber
// and dropping duplicates. Zero and negative district numbers are data errors
// and are treated as unresolved.
func collect(byChamber map[models.Chamber][]int, assignments []models.DistrictAssignment) {
	for _, a := range assignments {
		if a.District <= 0 {
			continue
		}
		if contains(byChamber[a.Chamber], a.District) {
			continue
		}
		byChamber[a.Chamber] = append(byChamber[a.Chamber], a.District)
	}
}

func buildSet(byChamber map[models.Chamber][]int) models.DistrictSet {
	set := models.DistrictSet{}
	for chamber, districts := range byChamber {
		if len(districts) == 0 {
			continue
		}
		switch chamber {
		case models.ChamberCongressional:
			set.Congressional = districts[0]
		case models.ChamberStateSenate:
			set.StateSenate = districts[0]
		case models.ChamberStateAssembly:
			set.StateAssembly = districts[0]
		default:
			continue
		}
		if len(districts) > 1 {
			set.MultiDistrict = true
			for _, d := range districts[1:] {
				set.Alternates = append(set.Alternates, models.DistrictAssignment{Chamber: chamber, District: d})
			}
		}
	}
	return set
}

func contains(districts []int, n int) bool {
	for _, d := range districts {
		if d == n {
			return true
		}
	}
	return false
}
