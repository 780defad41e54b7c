// Package monitoring provides the Prometheus, zap and OpenTelemetry backends behind the domain's
// observability interfaces.
package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/turtacn/mfagate/internal/domain/service"
)

var _ service.Metrics = (*Metrics)(nil)

// Metrics manages the Prometheus metrics.
// Metrics 管理 Prometheus 指标，并实现领域层的 service.Metrics 接口。
type Metrics struct {
	Verifications       *prometheus.CounterVec
	VerificationLatency *prometheus.HistogramVec
	PollAttempts        *prometheus.HistogramVec
	RemoteCalls         *prometheus.CounterVec
	RemoteLatency       *prometheus.HistogramVec
	SecretsProvisioned  *prometheus.CounterVec
	StoreLatency        *prometheus.HistogramVec
	VaultCalls          *prometheus.CounterVec

	HTTPRequests       *prometheus.CounterVec
	HTTPLatency        *prometheus.HistogramVec
	HTTPActiveRequests prometheus.Gauge
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Verifications: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mfagate_verifications_total",
				Help: "Total number of verification attempts by decision.",
			},
			[]string{"decision", "reason"},
		),
		VerificationLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mfagate_verification_duration_seconds",
				Help:    "Latency of verification attempts, including push polling.",
				Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"decision"},
		),
		PollAttempts: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mfagate_poll_attempts",
				Help:    "Number of polls spent on one push transaction.",
				Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 120},
			},
			[]string{"approved"},
		),
		RemoteCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mfagate_remote_calls_total",
				Help: "Total number of calls to the remote verification service.",
			},
			[]string{"operation", "result"},
		),
		RemoteLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mfagate_remote_call_duration_seconds",
				Help:    "Latency of calls to the remote verification service.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		SecretsProvisioned: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mfagate_secrets_provisioned_total",
				Help: "Total number of generated or rolled-out secrets.",
			},
			[]string{"source"},
		),
		StoreLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mfagate_store_operation_duration_seconds",
				Help:    "Latency of secret store operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "result"},
		),
		VaultCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mfagate_vault_calls_total",
				Help: "Total number of Vault API calls.",
			},
			[]string{"operation", "result"},
		),
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mfagate_http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"path", "method", "status"},
		),
		HTTPLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mfagate_http_request_duration_seconds",
				Help:    "Latency of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
		HTTPActiveRequests: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "mfagate_http_active_requests",
				Help: "Number of in-flight HTTP requests.",
			},
		),
	}
}

// RecordVerification records metrics for one verification attempt.
func (m *Metrics) RecordVerification(decision, reason string, duration time.Duration) {
	m.Verifications.WithLabelValues(decision, reason).Inc()
	m.VerificationLatency.WithLabelValues(decision).Observe(duration.Seconds())
}

// RecordPoll records the polls spent on one push transaction.
func (m *Metrics) RecordPoll(attempts int, approved bool) {
	m.PollAttempts.WithLabelValues(strconv.FormatBool(approved)).Observe(float64(attempts))
}

// RecordRemoteCall records a call to the remote verification service.
func (m *Metrics) RecordRemoteCall(operation string, duration time.Duration, err error) {
	m.RemoteCalls.WithLabelValues(operation, result(err)).Inc()
	m.RemoteLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSecretProvisioned records a new secret.
func (m *Metrics) RecordSecretProvisioned(source string) {
	m.SecretsProvisioned.WithLabelValues(source).Inc()
}

// RecordStoreOperation records a secret store operation.
func (m *Metrics) RecordStoreOperation(operation string, duration time.Duration, err error) {
	m.StoreLatency.WithLabelValues(operation, result(err)).Observe(duration.Seconds())
}

// RecordVaultAPI records a Vault API call.
func (m *Metrics) RecordVaultAPI(operation string, _ time.Duration, err error) {
	m.VaultCalls.WithLabelValues(operation, result(err)).Inc()
}

// ActiveRequestsInc and the helpers below back the HTTP middleware.
func (m *Metrics) ActiveRequestsInc() { m.HTTPActiveRequests.Inc() }
func (m *Metrics) ActiveRequestsDec() { m.HTTPActiveRequests.Dec() }

func (m *Metrics) ObserveRequest(path, method string, status int, duration time.Duration) {
	m.HTTPRequests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.HTTPLatency.WithLabelValues(path, method).Observe(duration.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

//Personal.AI order the ending
