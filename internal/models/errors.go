package models

import "errors"

// Input and coverage errors surfaced to callers of the resolution engine.
// Transient upstream failures are never surfaced as errors; the orchestrator
// degrades to a lower-quality result instead.
var (
	// ErrInvalidZipFormat means the input was not a 5-digit ZIP (after
	// stripping a ZIP+4 suffix). Not retriable; no fallback is attempted.
	ErrInvalidZipFormat = errors.New("invalid ZIP code format")

	// ErrOutOfCoverageArea means the ZIP resolves to a state or region the
	// service is not configured to cover, under the reject policy.
	ErrOutOfCoverageArea = errors.New("ZIP code outside coverage area")
)

// Geocoder error taxonomy. All three trigger the fallback path in the
// orchestrator; they are logged but never propagated to the end caller.
var (
	ErrGeocoderRateLimited = errors.New("geocoder: rate limited")
	ErrGeocoderUnavailable = errors.New("geocoder: service unavailable")
	ErrGeocoderNoMatch     = errors.New("geocoder: no match for ZIP")
)
