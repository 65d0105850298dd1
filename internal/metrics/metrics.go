package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ResolvesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "citzn_resolves_total",
		Help: "Total ZIP resolutions by result source",
	}, []string{"source"})
	ResolveDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "citzn_resolve_duration_ms",
		Help:    "Resolution duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 3000},
	})
	ResolveErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "citzn_resolve_errors_total",
		Help: "Total resolution rejections by kind",
	}, []string{"kind"})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "citzn_cache_hits_total",
		Help: "Total cache hits by tier",
	}, []string{"tier"})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "citzn_cache_misses_total",
		Help: "Total cache misses across all tiers",
	})
	GeocoderRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "citzn_geocoder_requests_total",
		Help: "Total geocoder calls by outcome",
	}, []string{"outcome"})
	SingleFlightSharedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "citzn_singleflight_shared_total",
		Help: "Total lookups served by a shared in-flight resolution",
	})
	InvalidationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "citzn_invalidations_total",
		Help: "Total cache invalidation events by scope",
	}, []string{"scope"})
)

func init() {
	prometheus.MustRegister(ResolvesTotal)
	prometheus.MustRegister(ResolveDurationMs)
	prometheus.MustRegister(ResolveErrorsTotal)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(GeocoderRequestsTotal)
	prometheus.MustRegister(SingleFlightSharedTotal)
	prometheus.MustRegister(InvalidationsTotal)
}

// Handler exposes the registered metrics for scraping; mounted at /metrics
// in the API entrypoint.
func Handler() http.Handler { return promhttp.Handler() }
