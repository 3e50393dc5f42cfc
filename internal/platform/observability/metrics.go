// Package observability provides metrics, tracing, and logging infrastructure.
package observability

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all ATC Prometheus metrics.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// WebSocket metrics
	WebSocketConnections prometheus.Gauge
	WebSocketMessages    *prometheus.CounterVec

	// NATS metrics
	NATSMessagesReceived  *prometheus.CounterVec
	NATSMessagesPublished *prometheus.CounterVec
	NATSConnectionStatus  prometheus.Gauge

	// Event bus metrics
	EventsProcessed *prometheus.CounterVec
	EventsQueued    prometheus.Gauge
	EventLatency    *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration  *prometheus.HistogramVec
	DBConnectionPool *prometheus.GaugeVec
	DBErrors         *prometheus.CounterVec

	// Conflict detection loop
	ConflictLoopTickDuration prometheus.Histogram
	ConflictsDetected        *prometheus.CounterVec
	ConflictQueueDepth       prometheus.Gauge

	// Routing / planner
	PlannerAttempts   *prometheus.CounterVec
	PlannerDuration   *prometheus.HistogramVec
	PlannerPathLength *prometheus.HistogramVec

	// Dispatch / command issuance
	CommandsIssued     *prometheus.CounterVec
	CommandAckLatency  *prometheus.HistogramVec
	DispatchQueueDepth prometheus.Gauge

	// Generic loop supervision
	LoopTickDuration *prometheus.HistogramVec
	LoopErrors       *prometheus.CounterVec
	LoopBackoffSecs  *prometheus.GaugeVec

	// Drone fleet state
	DronesActive      prometheus.Gauge
	TelemetryIngested *prometheus.CounterVec

	// Upstream UTM integration (Blender)
	BlenderRequestsTotal   *prometheus.CounterVec
	BlenderRequestDuration *prometheus.HistogramVec

	// Admission / compliance
	ComplianceChecksTotal *prometheus.CounterVec
	AdmissionDecisions    *prometheus.CounterVec
}

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// GetMetrics returns the global metrics instance.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = initializeMetrics()
	})
	return globalMetrics
}

// initializeMetrics creates all Prometheus metrics.
func initializeMetrics() *Metrics {
	m := &Metrics{}

	// HTTP metrics
	m.HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "atc",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	m.HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "atc",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	m.HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "atc",
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 2, 12),
		},
		[]string{"endpoint"},
	)

	// WebSocket metrics
	m.WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "atc",
			Subsystem: "websocket",
			Name:      "connections_active",
			Help:      "Number of active WebSocket connections",
		},
	)

	m.WebSocketMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "atc",
			Subsystem: "websocket",
			Name:      "messages_total",
			Help:      "Total WebSocket messages",
		},
		[]string{"direction", "type"},
	)

	// NATS metrics
	m.NATSMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "atc",
			Subsystem: "nats",
			Name:      "messages_received_total",
			Help:      "Total NATS messages received",
		},
		[]string{"subject"},
	)

	m.NATSMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "atc",
			Subsystem: "nats",
			Name:      "messages_published_total",
			Help:      "Total NATS messages published",
		},
		[]string{"subject"},
	)

	m.NATSConnectionStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "atc",
			Subsystem: "nats",
			Name:      "connection_status",
			Help:      "NATS connection status (1 = connected, 0 = disconnected)",
		},
	)

	// Event bus metrics
	m.EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "atc",
			Subsystem: "events",
			Name:      "processed_total",
			Help:      "Total events processed",
		},
		[]string{"type", "source"},
	)

	m.EventsQueued = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "atc",
			Subsystem: "events",
			Name:      "queued",
			Help:      "Number of events currently queued",
		},
	)

	m.EventLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "atc",
			Subsystem: "events",
			Name:      "latency_seconds",
			Help:      "Event processing latency in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"type"},
	)

	// Database metrics
	m.DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "atc",
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"database", "operation"},
	)

	m.DBConnectionPool = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "atc",
			Subsystem: "database",
			Name:      "connections",
			Help:      "Number of database connections",
		},
		[]string{"database", "state"},
	)

	m.DBErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "atc",
			Subsystem: "database",
			Name:      "errors_total",
			Help:      "Total database errors",
		},
		[]string{"database", "operation"},
	)

	// Conflict detection loop
	m.ConflictLoopTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "atc",
			Subsystem: "conflict",
			Name:      "tick_duration_seconds",
			Help:      "Duration of one conflict detection loop tick",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	m.ConflictsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "atc",
			Subsystem: "conflict",
			Name:      "detected_total",
			Help:      "Total conflicts detected between drone pairs",
		},
		[]string{"severity"},
	)

	m.ConflictQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "atc",
			Subsystem: "conflict",
			Name:      "queue_depth",
			Help:      "Number of unresolved conflicts currently tracked",
		},
	)

	// Routing / planner
	m.PlannerAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "atc",
			Subsystem: "planner",
			Name:      "attempts_total",
			Help:      "Total route planning attempts",
		},
		[]string{"strategy", "result"},
	)

	m.PlannerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "atc",
			Subsystem: "planner",
			Name:      "duration_seconds",
			Help:      "Route planning duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"strategy"},
	)

	m.PlannerPathLength = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "atc",
			Subsystem: "planner",
			Name:      "path_waypoints",
			Help:      "Number of waypoints in a planned route",
			Buckets:   []float64{2, 4, 8, 16, 32, 64, 128},
		},
		[]string{"strategy"},
	)

	// Dispatch / command issuance
	m.CommandsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "atc",
			Subsystem: "dispatch",
			Name:      "commands_issued_total",
			Help:      "Total commands issued to drones",
		},
		[]string{"command_type"},
	)

	m.CommandAckLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "atc",
			Subsystem: "dispatch",
			Name:      "command_ack_latency_seconds",
			Help:      "Time between command issuance and acknowledgement",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"command_type"},
	)

	m.DispatchQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "atc",
			Subsystem: "dispatch",
			Name:      "queue_depth",
			Help:      "Number of commands awaiting acknowledgement",
		},
	)

	// Generic loop supervision
	m.LoopTickDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "atc",
			Subsystem: "loops",
			Name:      "tick_duration_seconds",
			Help:      "Duration of a supervised loop tick",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"loop"},
	)

	m.LoopErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "atc",
			Subsystem: "loops",
			Name:      "errors_total",
			Help:      "Total errors raised by a supervised loop",
		},
		[]string{"loop"},
	)

	m.LoopBackoffSecs = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "atc",
			Subsystem: "loops",
			Name:      "backoff_seconds",
			Help:      "Current backoff duration for a supervised loop",
		},
		[]string{"loop"},
	)

	// Drone fleet state
	m.DronesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "atc",
			Subsystem: "fleet",
			Name:      "drones_active",
			Help:      "Number of drones currently reporting telemetry",
		},
	)

	m.TelemetryIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "atc",
			Subsystem: "fleet",
			Name:      "telemetry_ingested_total",
			Help:      "Total telemetry updates ingested",
		},
		[]string{"status"},
	)

	// Upstream UTM integration (Blender)
	m.BlenderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "atc",
			Subsystem: "blender",
			Name:      "requests_total",
			Help:      "Total requests made to the upstream UTM provider",
		},
		[]string{"operation", "result"},
	)

	m.BlenderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "atc",
			Subsystem: "blender",
			Name:      "request_duration_seconds",
			Help:      "Upstream UTM request duration in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	// Admission / compliance
	m.ComplianceChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "atc",
			Subsystem: "admission",
			Name:      "compliance_checks_total",
			Help:      "Total compliance checks evaluated, by check and status",
		},
		[]string{"check", "status"},
	)

	m.AdmissionDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "atc",
			Subsystem: "admission",
			Name:      "decisions_total",
			Help:      "Total flight plan admission decisions",
		},
		[]string{"accepted"},
	)

	return m
}

// Handler returns the Prometheus HTTP handler for /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HTTPMiddleware wraps an HTTP handler with metrics collection.
func HTTPMiddleware(next http.Handler) http.Handler {
	m := GetMetrics()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status and size
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		endpoint := normalizeEndpoint(r.URL.Path)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, endpoint, statusToStr(wrapped.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, endpoint).Observe(duration)
		m.HTTPResponseSize.WithLabelValues(endpoint).Observe(float64(wrapped.size))
	})
}

// responseWriter wraps http.ResponseWriter to capture status and size.
type responseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *responseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	size, err := w.ResponseWriter.Write(b)
	w.size += size
	return size, err
}

func (w *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("hijacker not supported")
	}
	return hijacker.Hijack()
}

func (w *responseWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// normalizeEndpoint normalizes URL paths to prevent cardinality explosion.
func normalizeEndpoint(path string) string {
	switch {
	case len(path) > 11 && path[:11] == "/v1/drones/":
		return "/v1/drones/:id"
	case len(path) > 12 && path[:12] == "/v1/flights/":
		return "/v1/flights/:id"
	case len(path) > 13 && path[:13] == "/v1/commands/":
		return "/v1/commands/:id"
	case len(path) > 14 && path[:14] == "/v1/geofences/":
		return "/v1/geofences/:id"
	default:
		return path
	}
}

func statusToStr(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}

// RecordEventProcessed records an event being processed.
func RecordEventProcessed(eventType, source string) {
	GetMetrics().EventsProcessed.WithLabelValues(eventType, source).Inc()
}

// RecordEventLatency records event processing latency.
func RecordEventLatency(eventType string, duration time.Duration) {
	GetMetrics().EventLatency.WithLabelValues(eventType).Observe(duration.Seconds())
}

// RecordDBQuery records a database query duration.
func RecordDBQuery(database, operation string, duration time.Duration) {
	GetMetrics().DBQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())
}

// RecordDBError records a database error.
func RecordDBError(database, operation string) {
	GetMetrics().DBErrors.WithLabelValues(database, operation).Inc()
}

// RecordConflictTick records one conflict detection loop tick's duration.
func RecordConflictTick(duration time.Duration) {
	GetMetrics().ConflictLoopTickDuration.Observe(duration.Seconds())
}

// RecordConflictDetected records a newly detected conflict.
func RecordConflictDetected(severity string) {
	GetMetrics().ConflictsDetected.WithLabelValues(severity).Inc()
}

// UpdateConflictQueueDepth sets the current unresolved-conflict count.
func UpdateConflictQueueDepth(depth int) {
	GetMetrics().ConflictQueueDepth.Set(float64(depth))
}

// RecordPlannerAttempt records a route planning attempt and its duration.
func RecordPlannerAttempt(strategy, result string, duration time.Duration, waypoints int) {
	m := GetMetrics()
	m.PlannerAttempts.WithLabelValues(strategy, result).Inc()
	m.PlannerDuration.WithLabelValues(strategy).Observe(duration.Seconds())
	if result == "ok" {
		m.PlannerPathLength.WithLabelValues(strategy).Observe(float64(waypoints))
	}
}

// RecordCommandIssued records a command dispatched to a drone.
func RecordCommandIssued(commandType string) {
	GetMetrics().CommandsIssued.WithLabelValues(commandType).Inc()
}

// RecordCommandAck records the latency between issuance and acknowledgement.
func RecordCommandAck(commandType string, latency time.Duration) {
	GetMetrics().CommandAckLatency.WithLabelValues(commandType).Observe(latency.Seconds())
}

// UpdateDispatchQueueDepth sets the current unacknowledged-command count.
func UpdateDispatchQueueDepth(depth int) {
	GetMetrics().DispatchQueueDepth.Set(float64(depth))
}

// RecordLoopTick records a supervised loop's tick duration.
func RecordLoopTick(loop string, duration time.Duration) {
	GetMetrics().LoopTickDuration.WithLabelValues(loop).Observe(duration.Seconds())
}

// RecordLoopError records a supervised loop raising an error.
func RecordLoopError(loop string) {
	GetMetrics().LoopErrors.WithLabelValues(loop).Inc()
}

// UpdateLoopBackoff sets a supervised loop's current backoff duration.
func UpdateLoopBackoff(loop string, backoff time.Duration) {
	GetMetrics().LoopBackoffSecs.WithLabelValues(loop).Set(backoff.Seconds())
}

// UpdateDronesActive sets the number of drones currently reporting telemetry.
func UpdateDronesActive(count int) {
	GetMetrics().DronesActive.Set(float64(count))
}

// RecordTelemetryIngested records a telemetry submission outcome.
func RecordTelemetryIngested(status string) {
	GetMetrics().TelemetryIngested.WithLabelValues(status).Inc()
}

// RecordBlenderRequest records a request to the upstream UTM provider.
func RecordBlenderRequest(operation, result string, duration time.Duration) {
	m := GetMetrics()
	m.BlenderRequestsTotal.WithLabelValues(operation, result).Inc()
	m.BlenderRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordComplianceCheck records a compliance check outcome for a submission.
func RecordComplianceCheck(check, status string) {
	GetMetrics().ComplianceChecksTotal.WithLabelValues(check, status).Inc()
}

// RecordAdmissionDecision records whether a flight plan was accepted.
func RecordAdmissionDecision(accepted bool) {
	label := "false"
	if accepted {
		label = "true"
	}
	GetMetrics().AdmissionDecisions.WithLabelValues(label).Inc()
}

// UpdateWebSocketConnections updates the active WebSocket connection gauge.
func UpdateWebSocketConnections(count int) {
	GetMetrics().WebSocketConnections.Set(float64(count))
}

// UpdateNATSConnectionStatus updates the NATS connection status.
func UpdateNATSConnectionStatus(connected bool) {
	if connected {
		GetMetrics().NATSConnectionStatus.Set(1)
	} else {
		GetMetrics().NATSConnectionStatus.Set(0)
	}
}
