// Package metrics exposes Prometheus instrumentation for the portal.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by the booking and release counters.
const (
	OutcomeOK        = "ok"
	OutcomeConflict  = "conflict"
	OutcomeDuplicate = "duplicate"
	OutcomeNotFound  = "not_found"
	OutcomeInvalid   = "invalid"
	OutcomeError     = "error"
)

// Recorder owns the portal's collectors. A nil *Recorder records nothing.
type Recorder struct {
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	bookings       *prometheus.CounterVec
	releases       *prometheus.CounterVec
	resolveLatency *prometheus.HistogramVec
	searches       *prometheus.CounterVec
	searchResults  prometheus.Histogram
	purged         prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_bookings_total",
			Help: "Slot booking attempts by outcome",
		}, []string{"outcome"}),
		releases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_releases_total",
			Help: "Slot release attempts by outcome",
		}, []string{"outcome"}),
		resolveLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_resolve_duration_seconds",
			Help:    "Time spent resolving availability",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"scope"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_searches_total",
			Help: "Availability searches by facet",
		}, []string{"facet"}),
		searchResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "portal_search_results",
			Help:    "Number of doctors returned per search",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_overrides_purged_total",
			Help: "Inactive date overrides removed by the purge job",
		}),
	}
	reg.MustRegister(r.httpRequests, r.httpDuration, r.bookings, r.releases,
		r.resolveLatency, r.searches, r.searchResults, r.purged)
	return r
}

func (r *Recorder) Booking(outcome string) {
	if r == nil {
		return
	}
	r.bookings.WithLabelValues(outcome).Inc()
}

func (r *Recorder) Release(outcome string) {
	if r == nil {
		return
	}
	r.releases.WithLabelValues(outcome).Inc()
}

// ObserveResolve records time since start under scope ("day", "month", "search").
func (r *Recorder) ObserveResolve(scope string, start time.Time) {
	if r == nil {
		return
	}
	r.resolveLatency.WithLabelValues(scope).Observe(time.Since(start).Seconds())
}

func (r *Recorder) Search(facet string, results int) {
	if r == nil {
		return
	}
	r.searches.WithLabelValues(facet).Inc()
	r.searchResults.Observe(float64(results))
}

func (r *Recorder) Purged(n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.purged.Add(float64(n))
}

// Middleware counts requests by route template, not raw path, to keep
// label cardinality bounded.
func (r *Recorder) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if r == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			r.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}
