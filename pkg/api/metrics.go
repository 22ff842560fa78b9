package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ssargent/pngchunk/pkg/codec"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds all Prometheus metrics for the API. A nil *Metrics records
// nothing.
type Metrics struct {
	// HTTP request metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec

	// Codec metrics, labelled with the error kind on failure
	codecOperationsTotal *prometheus.CounterVec

	// Chunk file metrics
	fileChunksTotal   prometheus.Gauge
	fileSizeBytes     prometheus.Gauge
	archiveWriteTotal *prometheus.CounterVec

	authRequestsTotal *prometheus.CounterVec
	healthChecksTotal *prometheus.CounterVec
}

// NewMetrics creates all Prometheus metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pngchunk_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pngchunk_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		httpRequestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pngchunk_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"method", "endpoint"},
		),

		codecOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pngchunk_codec_operations_total",
				Help: "Total number of chunk encode and decode operations",
			},
			[]string{"operation", "status"},
		),

		fileChunksTotal: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pngchunk_file_chunks",
				Help: "Number of chunks in the served file",
			},
		),

		fileSizeBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pngchunk_file_size_bytes",
				Help: "Size of the served chunk file in bytes",
			},
		),

		archiveWriteTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pngchunk_archive_writes_total",
				Help: "Total number of chunks written to the archive",
			},
			[]string{"status"},
		),

		authRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pngchunk_auth_requests_total",
				Help: "Total number of authentication requests",
			},
			[]string{"status"},
		),

		healthChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pngchunk_health_checks_total",
				Help: "Total number of health checks",
			},
			[]string{"status"},
		),
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordCodecOperation records a codec operation. Failures are labelled
// with the codec error kind when there is one.
func (m *Metrics) RecordCodecOperation(operation string, err error) {
	if m == nil {
		return
	}
	m.codecOperationsTotal.WithLabelValues(operation, codecStatus(err)).Inc()
}

func codecStatus(err error) string {
	if err == nil {
		return statusSuccess
	}
	if kind := codec.KindOf(err); kind != 0 {
		return kind.String()
	}
	return statusError
}

// UpdateFileStats updates chunk file statistics
func (m *Metrics) UpdateFileStats(chunks int, size int64) {
	if m == nil {
		return
	}
	m.fileChunksTotal.Set(float64(chunks))
	m.fileSizeBytes.Set(float64(size))
}

// RecordArchiveWrite records a chunk written to the archive
func (m *Metrics) RecordArchiveWrite(success bool) {
	if m == nil {
		return
	}
	m.archiveWriteTotal.WithLabelValues(boolStatus(success)).Inc()
}

// RecordAuthRequest records an authentication request
func (m *Metrics) RecordAuthRequest(success bool) {
	if m == nil {
		return
	}
	m.authRequestsTotal.WithLabelValues(boolStatus(success)).Inc()
}

// RecordHealthCheck records a health check
func (m *Metrics) RecordHealthCheck(success bool) {
	if m == nil {
		return
	}
	m.healthChecksTotal.WithLabelValues(boolStatus(success)).Inc()
}

func boolStatus(success bool) string {
	if success {
		return statusSuccess
	}
	return statusError
}

// InstrumentHandler instruments an HTTP handler with metrics
func (m *Metrics) InstrumentHandler(method, endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	if m == nil {
		return handler
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		gauge := m.httpRequestsInFlight.WithLabelValues(method, endpoint)
		gauge.Inc()
		defer gauge.Dec()

		// Capture the status code
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(rw, r)

		m.RecordHTTPRequest(method, endpoint, rw.statusCode, time.Since(start))
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
