package geocoder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"citzn-api/internal/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// Result is the validated internal shape of a provider response. Provider
// fields are mapped here and never leak past this package.
type Result struct {
	Latitude  float64
	Longitude float64
	City      string
	County    string
	State     string

	Congressional int
	StateSenate   int
	StateAssembly int

	// Accuracy is the provider's own confidence in [0, 1].
	Accuracy float64
}

// Client wraps the external geocoding provider's HTTP API. Every call has a
// hard timeout and a small bounded retry for transient 5xx failures.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient builds a client for the provider at baseURL. The timeout bounds
// each attempt end to end so one slow upstream call cannot stall a lookup.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// Provider response DTOs. Only the fields we consume are declared; anything
// missing fails validation and is treated as an unavailable service.
type providerResponse struct {
	Results []providerResult `json:"results"`
}

type providerResult struct {
	Location *struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	} `json:"location"`
	AddressComponents *struct {
		City   string `json:"city"`
		County string `json:"county"`
		State  string `json:"state"`
	} `json:"address_components"`
	Accuracy float64 `json:"accuracy"`
	Fields   *struct {
		CongressionalDistricts []struct {
			DistrictNumber int `json:"district_number"`
		} `json:"congressional_districts"`
		StateLegislativeDistricts *struct {
			Senate []struct {
				DistrictNumber int `json:"district_number"`
			} `json:"senate"`
			House []struct {
				DistrictNumber int `json:"district_number"`
			} `json:"house"`
		} `json:"state_legislative_districts"`
	} `json:"fields"`
}

// Geocode resolves a 5-digit ZIP to coordinates and administrative
// boundaries. Errors map to the engine's geocoder taxonomy: rate limiting and
// 5xx become ErrGeocoderRateLimited / ErrGeocoderUnavailable, an empty result
// set becomes ErrGeocoderNoMatch. Any response that does not match the
// expected shape fails closed as ErrGeocoderUnavailable.
func (c *Client) Geocode(ctx context.Context, zip string) (*Result, error) {
	var resp providerResponse

	operation := func() error {
		return c.fetch(ctx, zip, &resp)
	}

	// Retry only transient 5xx failures, with capped exponential backoff.
	// Rate limiting and no-match are permanent for this call.
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, 2), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}

	result, err := mapResponse(zip, resp)
	if err != nil {
		if errors.Is(err, models.ErrGeocoderNoMatch) {
			return nil, err
		}
		log.Warn().Str("zip", zip).Err(err).Msg("geocoder response failed validation")
		return nil, models.ErrGeocoderUnavailable
	}
	return result, nil
}

func (c *Client) fetch(ctx context.Context, zip string, out *providerResponse) error {
	u, err := url.Parse(c.baseURL + "/geocode")
	if err != nil {
		return backoff.Permanent(fmt.Errorf("geocoder: invalid base URL: %w", err))
	}
	q := u.Query()
	q.Set("postal_code", zip)
	q.Set("fields", "cd,stateleg")
	q.Set("api_key", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("geocoder: failed to build request: %w", err))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Network errors and timeouts count as unavailable; retriable.
		return models.ErrGeocoderUnavailable
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return backoff.Permanent(models.ErrGeocoderRateLimited)
	case resp.StatusCode == http.StatusNotFound:
		return backoff.Permanent(models.ErrGeocoderNoMatch)
	case resp.StatusCode >= 500:
		return models.ErrGeocoderUnavailable
	case resp.StatusCode != http.StatusOK:
		return backoff.Permanent(models.ErrGeocoderUnavailable)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backoff.Permanent(models.ErrGeocoderUnavailable)
	}
	return nil
}

func mapResponse(zip string, resp providerResponse) (*Result, error) {
	if len(resp.Results) == 0 {
		return nil, models.ErrGeocoderNoMatch
	}
	best := resp.Results[0]

	if best.Location == nil || best.Location.Lat == nil || best.Location.Lng == nil {
		return nil, fmt.Errorf("geocoder: response missing location for ZIP %s", zip)
	}
	if best.AddressComponents == nil || best.AddressComponents.State == "" || best.AddressComponents.County == "" {
		return nil, fmt.Errorf("geocoder: response missing address components for ZIP %s", zip)
	}

	lat, lng := *best.Location.Lat, *best.Location.Lng
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, fmt.Errorf("geocoder: out-of-range coordinates (%f, %f) for ZIP %s", lat, lng, zip)
	}

	result := &Result{
		Latitude:  lat,
		Longitude: lng,
		City:      best.AddressComponents.City,
		County:    best.AddressComponents.County,
		State:     best.AddressComponents.State,
		Accuracy:  clamp01(best.Accuracy),
	}

	if best.Fields != nil {
		if len(best.Fields.CongressionalDistricts) > 0 {
			result.Congressional = best.Fields.CongressionalDistricts[0].DistrictNumber
		}
		if sld := best.Fields.StateLegislativeDistricts; sld != nil {
			if len(sld.Senate) > 0 {
				result.StateSenate = sld.Senate[0].DistrictNumber
			}
			if len(sld.House) > 0 {
				result.StateAssembly = sld.House[0].DistrictNumber
			}
		}
	}

	return result, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
