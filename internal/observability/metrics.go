package observability

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// UnmatchedRoute labels requests that never reached a route so the
// route label stays bounded.
const UnmatchedRoute = "unmatched"

// Metrics holds the Prometheus collectors for the gateway.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	inFlight         prometheus.Gauge
	upstreamErrors   *prometheus.CounterVec
	circuitBreaker   *prometheus.GaugeVec
	authFailures     *prometheus.CounterVec
	loginAttempts    *prometheus.CounterVec
	tokensIssued     prometheus.Counter
	rateLimitHits    *prometheus.CounterVec
	docsFetches      *prometheus.CounterVec
	docsCacheLookups *prometheus.CounterVec
	buildInfo        *prometheus.GaugeVec
}

// NewMetrics creates the collectors under namespace and registers them on a
// private registry together with the Go and process collectors.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "gateway"
	}

	m := &Metrics{registry: prometheus.NewRegistry()}

	m.requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled by the gateway",
	}, []string{"method", "route", "status"})

	m.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "request_duration_seconds",
		Help:      "End-to-end request duration in seconds",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"method", "route"})

	m.inFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "requests_in_flight",
		Help:      "Number of requests currently being served",
	})

	m.upstreamErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_errors_total",
		Help:      "Proxy failures by cluster and kind (unreachable, timeout, circuit_open, canceled)",
	}, []string{"cluster", "kind"})

	m.circuitBreaker = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state per cluster (0=closed, 1=half-open, 2=open)",
	}, []string{"cluster"})

	m.authFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_failures_total",
		Help:      "Rejected bearer tokens by reason",
	}, []string{"reason"})

	m.loginAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Login attempts by result",
	}, []string{"result"})

	m.tokensIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_issued_total",
		Help:      "Number of access tokens minted",
	})

	m.rateLimitHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limit_hits_total",
		Help:      "Requests rejected by a rate limiter",
	}, []string{"limiter"})

	m.docsFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "docs_fetch_total",
		Help:      "Downstream swagger document fetches by service and result",
	}, []string{"service", "result"})

	m.docsCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "docs_cache_lookups_total",
		Help:      "Aggregated document cache lookups by result (hit, miss)",
	}, []string{"result"})

	m.buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "build_info",
		Help:      "Build information for the gateway",
	}, []string{"version", "commit", "build_time"})

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.inFlight,
		m.upstreamErrors,
		m.circuitBreaker,
		m.authFailures,
		m.loginAttempts,
		m.tokensIssued,
		m.rateLimitHits,
		m.docsFetches,
		m.docsCacheLookups,
		m.buildInfo,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// RecordRequest records a finished request. route must be a route name,
// never a raw path.
func (m *Metrics) RecordRequest(method, route string, status int, d time.Duration) {
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordUpstreamError counts a failed proxy attempt.
func (m *Metrics) RecordUpstreamError(cluster, kind string) {
	m.upstreamErrors.WithLabelValues(cluster, kind).Inc()
}

// SetCircuitBreakerState publishes a breaker transition.
func (m *Metrics) SetCircuitBreakerState(cluster string, state int) {
	m.circuitBreaker.WithLabelValues(cluster).Set(float64(state))
}

// RecordAuthFailure counts a rejected bearer token.
func (m *Metrics) RecordAuthFailure(reason string) {
	m.authFailures.WithLabelValues(reason).Inc()
}

// RecordLogin counts a login attempt with result success, invalid or error.
func (m *Metrics) RecordLogin(result string) {
	m.loginAttempts.WithLabelValues(result).Inc()
}

// RecordTokenIssued counts a minted token.
func (m *Metrics) RecordTokenIssued() {
	m.tokensIssued.Inc()
}

// RecordRateLimitHit counts a request rejected by limiter.
func (m *Metrics) RecordRateLimitHit(limiter string) {
	m.rateLimitHits.WithLabelValues(limiter).Inc()
}

// RecordDocsFetch counts a downstream swagger fetch.
func (m *Metrics) RecordDocsFetch(service string, ok bool) {
	result := "ok"
	if !ok {
		result = "skipped"
	}
	m.docsFetches.WithLabelValues(service, result).Inc()
}

// RecordDocsCache counts an aggregate cache lookup.
func (m *Metrics) RecordDocsCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.docsCacheLookups.WithLabelValues(result).Inc()
}

// SetBuildInfo publishes version metadata.
func (m *Metrics) SetBuildInfo(version, commit, buildTime string) {
	m.buildInfo.WithLabelValues(version, commit, buildTime).Set(1)
}

// Handler serves the registry in Prometheus and OpenMetrics formats.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// routeLabel is a mutable slot placed in the request context by
// MetricsMiddleware. Handlers further down the chain fill it in once the
// route is known so the label is visible when the request completes.
type routeLabel struct {
	name atomic.Value
}

type routeLabelKey struct{}

// ContextWithRouteSlot returns ctx carrying an empty route label slot,
// or ctx itself when it already has one.
func ContextWithRouteSlot(ctx context.Context) context.Context {
	if _, ok := ctx.Value(routeLabelKey{}).(*routeLabel); ok {
		return ctx
	}
	return context.WithValue(ctx, routeLabelKey{}, &routeLabel{})
}

// SetRouteLabel records the matched route name for the current request. It
// is a no-op when ctx has no slot.
func SetRouteLabel(ctx context.Context, route string) {
	if rl, ok := ctx.Value(routeLabelKey{}).(*routeLabel); ok {
		rl.name.Store(route)
	}
}

// RouteLabel returns the route name recorded by SetRouteLabel, or "".
func RouteLabel(ctx context.Context) string {
	if rl, ok := ctx.Value(routeLabelKey{}).(*routeLabel); ok {
		name, _ := rl.name.Load().(string)
		return name
	}
	return ""
}

// MetricsMiddleware records request count, duration and in-flight gauge.
func MetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			r = r.WithContext(ContextWithRouteSlot(r.Context()))

			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			metrics.inFlight.Inc()
			defer metrics.inFlight.Dec()

			next.ServeHTTP(rw, r)

			route := RouteLabel(r.Context())
			if route == "" {
				route = UnmatchedRoute
			}
			metrics.RecordRequest(r.Method, route, rw.status, time.Since(start))
		})
	}
}

// statusRecorder captures the response status while keeping the
// streaming and upgrade capabilities of the wrapped writer.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

func (rw *statusRecorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
