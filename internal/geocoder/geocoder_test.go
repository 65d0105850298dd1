package geocoder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"citzn-api/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validBody = `{
	"results": [{
		"location": {"lat": 38.5767, "lng": -121.4934},
		"address_components": {"city": "Sacramento", "county": "Sacramento County", "state": "CA"},
		"accuracy": 0.9,
		"fields": {
			"congressional_districts": [{"district_number": 7}],
			"state_legislative_districts": {
				"senate": [{"district_number": 8}],
				"house": [{"district_number": 6}]
			}
		}
	}]
}`

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(srv.URL, "test-key", 2*time.Second)
}

func TestClient_Geocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/geocode", r.URL.Path)
		assert.Equal(t, "95814", r.URL.Query().Get("postal_code"))
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		w.Write([]byte(validBody))
	}))
	defer srv.Close()

	result, err := newTestClient(srv).Geocode(context.Background(), "95814")
	require.NoError(t, err)

	assert.Equal(t, "Sacramento", result.City)
	assert.Equal(t, "Sacramento County", result.County)
	assert.Equal(t, "CA", result.State)
	assert.Equal(t, 7, result.Congressional)
	assert.Equal(t, 8, result.StateSenate)
	assert.Equal(t, 6, result.StateAssembly)
	assert.InDelta(t, 38.5767, result.Latitude, 0.0001)
	assert.InDelta(t, 0.9, result.Accuracy, 0.0001)
}

func TestClient_Geocode_RateLimited(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Geocode(context.Background(), "95814")
	assert.ErrorIs(t, err, models.ErrGeocoderRateLimited)
	// Rate limiting is permanent for the call; no retries.
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Geocode_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Geocode(context.Background(), "95814")
	assert.ErrorIs(t, err, models.ErrGeocoderUnavailable)
	// Initial attempt plus two retries.
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Geocode_RecoversAfterTransientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(validBody))
	}))
	defer srv.Close()

	result, err := newTestClient(srv).Geocode(context.Background(), "95814")
	require.NoError(t, err)
	assert.Equal(t, "Sacramento", result.City)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_Geocode_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": []}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Geocode(context.Background(), "99999")
	assert.ErrorIs(t, err, models.ErrGeocoderNoMatch)
}

func TestClient_Geocode_FailsClosedOnShapeMismatch(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "missing location",
			body: `{"results": [{"address_components": {"city": "Sacramento", "county": "Sacramento County", "state": "CA"}}]}`,
		},
		{
			name: "missing address components",
			body: `{"results": [{"location": {"lat": 38.5, "lng": -121.5}}]}`,
		},
		{
			name: "missing county",
			body: `{"results": [{"location": {"lat": 38.5, "lng": -121.5}, "address_components": {"city": "Sacramento", "state": "CA"}}]}`,
		},
		{
			name: "out of range coordinates",
			body: `{"results": [{"location": {"lat": 912.0, "lng": -121.5}, "address_components": {"city": "Sacramento", "county": "Sacramento County", "state": "CA"}}]}`,
		},
		{
			name: "not json",
			body: `<html>gateway error</html>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestClient(srv).Geocode(context.Background(), "95814")
			assert.ErrorIs(t, err, models.ErrGeocoderUnavailable)
		})
	}
}

func TestClient_Geocode_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(validBody))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", 20*time.Millisecond)
	start := time.Now()
	_, err := client.Geocode(context.Background(), "95814")
	assert.ErrorIs(t, err, models.ErrGeocoderUnavailable)
	// The hard timeout bounds each attempt; even with retries the call must
	// come back quickly instead of stalling the orchestrator.
	assert.Less(t, time.Since(start), 2*time.Second)
}
