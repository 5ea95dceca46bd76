package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all the Prometheus metrics for the application
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	HTTPRequestSize      *prometheus.HistogramVec
	HTTPResponseSize     *prometheus.HistogramVec

	// Session metrics
	SessionsActive    prometheus.Gauge
	SignInsTotal      *prometheus.CounterVec
	SessionClosures   *prometheus.CounterVec
	SessionDuration   *prometheus.HistogramVec
	IdleWarnings      prometheus.Counter
	SessionExtensions prometheus.Counter
	InteractionBursts prometheus.Counter

	// Gate metrics
	GateDecisions         *prometheus.CounterVec
	TokenRotations        prometheus.Counter
	IdentityCheckDuration prometheus.Histogram

	// Cross-tab signal metrics
	SessionSignals *prometheus.CounterVec

	// System metrics
	GoRoutines  prometheus.Gauge
	MemoryUsage prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics on the
// default registry
func NewMetrics() *Metrics {
	return newMetrics(promauto.With(prometheus.DefaultRegisterer))
}

// NewMetricsWith registers all metrics on a caller-owned registerer.
// Tests use it to avoid colliding with the default registry.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	return newMetrics(promauto.With(reg))
}

func newMetrics(factory promauto.Factory) *Metrics {
	return &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),
		HTTPRequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_size_bytes",
				Help:    "Size of HTTP requests in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "endpoint"},
		),
		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "Size of HTTP responses in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "endpoint"},
		),

		// Session metrics
		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gym_sessions_active",
				Help: "Number of open operator sessions",
			},
		),
		SignInsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gym_sign_ins_total",
				Help: "Total number of sign-in attempts",
			},
			[]string{"status"}, // success, failure
		),
		SessionClosures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gym_session_closures_total",
				Help: "Total number of closed sessions",
			},
			[]string{"reason"}, // revoked, expired
		),
		SessionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gym_session_duration_seconds",
				Help:    "Duration of operator sessions in seconds",
				Buckets: []float64{60, 300, 600, 1800, 3600, 7200, 43200}, // 1m, 5m, 10m, 30m, 1h, 2h, 12h
			},
			[]string{"reason"},
		),
		IdleWarnings: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gym_idle_warnings_total",
				Help: "Total number of idle warnings surfaced to operators",
			},
		),
		SessionExtensions: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gym_session_extensions_total",
				Help: "Total number of explicit session extensions",
			},
		),
		InteractionBursts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gym_interaction_bursts_total",
				Help: "Total number of flagged interaction bursts",
			},
		),

		// Gate metrics
		GateDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gym_gate_decisions_total",
				Help: "Total number of gatekeeper decisions",
			},
			[]string{"outcome"}, // public, granted, rotated, missing_token, rejected, timeout, error
		),
		TokenRotations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gym_token_rotations_total",
				Help: "Total number of access token rotations",
			},
		),
		IdentityCheckDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gym_identity_check_duration_seconds",
				Help:    "Duration of server-side session validations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),

		// Cross-tab signal metrics
		SessionSignals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gym_session_signals_total",
				Help: "Total number of cross-tab session signals",
			},
			[]string{"kind", "direction"}, // login/logout, sent/received
		),

		// System metrics
		GoRoutines: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "go_goroutines_current",
				Help: "Number of goroutines that currently exist",
			},
		),
		MemoryUsage: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "memory_usage_bytes",
				Help: "Current memory usage in bytes",
			},
		),
	}
}

// RecordHTTPRequest records metrics for an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration, requestSize, responseSize int64) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	m.HTTPRequestSize.WithLabelValues(method, endpoint).Observe(float64(requestSize))
	m.HTTPResponseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
}

// IncHTTPRequestsInFlight increments the in-flight requests counter
func (m *Metrics) IncHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecHTTPRequestsInFlight decrements the in-flight requests counter
func (m *Metrics) DecHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}

// RecordSignIn records a sign-in attempt
func (m *Metrics) RecordSignIn(success bool) {
	status := "failure"
	if success {
		status = "success"
	}
	m.SignInsTotal.WithLabelValues(status).Inc()
}

// RecordSessionOpened records a newly opened session
func (m *Metrics) RecordSessionOpened() {
	m.SessionsActive.Inc()
}

// RecordSessionClosed records one closed session and how long it lived
func (m *Metrics) RecordSessionClosed(reason string, duration time.Duration) {
	m.SessionsActive.Dec()
	m.SessionClosures.WithLabelValues(reason).Inc()
	m.SessionDuration.WithLabelValues(reason).Observe(duration.Seconds())
}

// RecordSessionsExpired records a batch of sessions swept out by TTL
func (m *Metrics) RecordSessionsExpired(count int) {
	if count <= 0 {
		return
	}
	m.SessionsActive.Sub(float64(count))
	m.SessionClosures.WithLabelValues("expired").Add(float64(count))
}

// RecordIdleWarning records an idle warning shown to an operator
func (m *Metrics) RecordIdleWarning() {
	m.IdleWarnings.Inc()
}

// RecordSessionExtension records an explicit keep-alive
func (m *Metrics) RecordSessionExtension() {
	m.SessionExtensions.Inc()
}

// RecordInteractionBurst records a flagged click burst
func (m *Metrics) RecordInteractionBurst() {
	m.InteractionBursts.Inc()
}

// RecordGateDecision records one gatekeeper outcome
func (m *Metrics) RecordGateDecision(outcome string) {
	m.GateDecisions.WithLabelValues(outcome).Inc()
}

// RecordTokenRotation records an access token rotation
func (m *Metrics) RecordTokenRotation() {
	m.TokenRotations.Inc()
}

// ObserveIdentityCheck records the duration of one session validation
func (m *Metrics) ObserveIdentityCheck(duration time.Duration) {
	m.IdentityCheckDuration.Observe(duration.Seconds())
}

// RecordSignal records a cross-tab signal by kind and direction
func (m *Metrics) RecordSignal(kind, direction string) {
	m.SessionSignals.WithLabelValues(kind, direction).Inc()
}

// UpdateSystemMetrics updates system-level metrics
func (m *Metrics) UpdateSystemMetrics(goroutines int, memoryBytes uint64) {
	m.GoRoutines.Set(float64(goroutines))
	m.MemoryUsage.Set(float64(memoryBytes))
}
