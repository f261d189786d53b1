package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nipermap",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nipermap",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	RegionMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nipermap",
		Subsystem: "regions",
		Name:      "mutations_total",
		Help:      "Region store mutations by operation and outcome",
	}, []string{"operation", "outcome"})

	RegionsStored = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "nipermap",
		Subsystem: "regions",
		Name:      "current",
		Help:      "Number of regions in the current list",
	})

	GeocoderLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nipermap",
		Subsystem: "geocoder",
		Name:      "lookups_total",
		Help:      "Map center place searches by outcome",
	}, []string{"outcome"})
)

//UnmatchedRoute is the path label for requests no route pattern matched
const UnmatchedRoute string = "unmatched"

//Mutation records the outcome of a region store operation
func Mutation(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	RegionMutations.WithLabelValues(operation, outcome).Inc()
}

//MutationNoop records an operation that succeeded without changing anything
func MutationNoop(operation string) {
	RegionMutations.WithLabelValues(operation, "noop").Inc()
}

//Middleware records request metrics labelled by chi route pattern. Raw paths
//are never used as labels, so unknown urls cannot grow the label set.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := UnmatchedRoute
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

//Handler serves the Prometheus /metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
