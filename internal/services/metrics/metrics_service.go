package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Service provides Prometheus metrics for the Billine gateway client and the
// callback receiver
type Service struct {
	// HTTP surface
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	// Outbound gateway calls
	gatewayRequestsTotal   *prometheus.CounterVec
	gatewayRequestDuration *prometheus.HistogramVec
	signaturesTotal        *prometheus.CounterVec

	// Inbound callbacks
	callbackVerificationsTotal *prometheus.CounterVec
	callbackDuplicatesTotal    prometheus.Counter
	callbacksPublishedTotal    prometheus.Counter
	auditLogsWrittenTotal      *prometheus.CounterVec

	// Dependencies
	dependencyErrorsTotal *prometheus.CounterVec
}

// NewService registers the gateway metrics on reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewService(reg prometheus.Registerer) *Service {
	factory := promauto.With(reg)
	return &Service{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billine_http_requests_total",
				Help: "Total number of HTTP requests by endpoint and status class",
			},
			[]string{"endpoint", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "billine_http_request_duration_seconds",
				Help:    "HTTP request processing time in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint", "status"},
		),
		gatewayRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billine_gateway_requests_total",
				Help: "Total number of signed requests sent to the gateway by path and outcome",
			},
			[]string{"path", "outcome"},
		),
		gatewayRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "billine_gateway_request_duration_seconds",
				Help:    "Round trip time of signed gateway requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path"},
		),
		signaturesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billine_signatures_generated_total",
				Help: "Total number of outgoing signatures by algorithm",
			},
			[]string{"algorithm"},
		),
		callbackVerificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billine_callback_verifications_total",
				Help: "Total number of callback signature checks by result",
			},
			[]string{"result"},
		),
		callbackDuplicatesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "billine_callback_duplicates_total",
				Help: "Total number of verified callbacks that had already been processed",
			},
		),
		callbacksPublishedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "billine_callbacks_published_total",
				Help: "Total number of callback events published to the stream",
			},
		),
		auditLogsWrittenTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billine_audit_logs_written_total",
				Help: "Total number of callback audit rows by write status",
			},
			[]string{"status"},
		),
		dependencyErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billine_dependency_errors_total",
				Help: "Total number of failed calls to redis or postgres",
			},
			[]string{"dependency"},
		),
	}
}

// RecordRequest records an HTTP request
func (s *Service) RecordRequest(endpoint, status string) {
	s.requestsTotal.WithLabelValues(endpoint, status).Inc()
}

// RecordRequestDuration records HTTP request duration
func (s *Service) RecordRequestDuration(endpoint, status string, duration time.Duration) {
	s.requestDuration.WithLabelValues(endpoint, status).Observe(duration.Seconds())
}

// RecordGatewayRequest records one signed request and its round trip time
func (s *Service) RecordGatewayRequest(path, outcome string, duration time.Duration) {
	s.gatewayRequestsTotal.WithLabelValues(path, outcome).Inc()
	s.gatewayRequestDuration.WithLabelValues(path).Observe(duration.Seconds())
}

// RecordSignatureGenerated records an outgoing signature
func (s *Service) RecordSignatureGenerated(algorithm string) {
	s.signaturesTotal.WithLabelValues(algorithm).Inc()
}

// RecordCallbackVerification records a callback check: valid, mismatch or malformed
func (s *Service) RecordCallbackVerification(result string) {
	s.callbackVerificationsTotal.WithLabelValues(result).Inc()
}

// RecordCallbackDuplicate records a replayed callback
func (s *Service) RecordCallbackDuplicate() {
	s.callbackDuplicatesTotal.Inc()
}

// RecordCallbackPublished records a callback event written to the stream
func (s *Service) RecordCallbackPublished() {
	s.callbacksPublishedTotal.Inc()
}

// RecordAuditLogWritten records an audit write attempt
func (s *Service) RecordAuditLogWritten(status string) {
	s.auditLogsWrittenTotal.WithLabelValues(status).Inc()
}

// RecordDependencyError records a failed dependency call
func (s *Service) RecordDependencyError(dependency string) {
	s.dependencyErrorsTotal.WithLabelValues(dependency).Inc()
}
