// Package metrics defines the prometheus collectors exported by both
// processes. All recording helpers are nil-safe so components can run
// without a registry in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors for one process.
type Metrics struct {
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	SecurityCalls    *prometheus.CounterVec
	SecurityDuration *prometheus.HistogramVec
	PINLockouts      prometheus.Counter
	Payments         *prometheus.CounterVec
	AccountsCreated  *prometheus.CounterVec
	NoncesIssued     *prometheus.CounterVec
	SessionsIssued   *prometheus.CounterVec
	SweptRecords     *prometheus.CounterVec
}

// New creates the collectors and registers them with registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vault_http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vault_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		SecurityCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vault_security_calls_total",
				Help: "Security operations by outcome.",
			},
			[]string{"operation", "result"},
		),
		SecurityDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vault_security_call_duration_seconds",
				Help:    "Security operation duration in seconds.",
				Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
			},
			[]string{"operation"},
		),
		PINLockouts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vault_pin_lockouts_total",
				Help: "Accounts locked after exhausting PIN attempts.",
			},
		),
		Payments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vault_payments_total",
				Help: "Payments by final status.",
			},
			[]string{"status"},
		),
		AccountsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vault_accounts_created_total",
				Help: "Account creation attempts by status.",
			},
			[]string{"status"},
		),
		NoncesIssued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vault_nonces_total",
				Help: "Nonce requests by outcome.",
			},
			[]string{"result"},
		),
		SessionsIssued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vault_wallet_verifications_total",
				Help: "Wallet signature verifications by outcome.",
			},
			[]string{"result"},
		),
		SweptRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vault_swept_records_total",
				Help: "Expired records evicted by the sweeper.",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		m.HTTPRequests, m.HTTPDuration,
		m.SecurityCalls, m.SecurityDuration, m.PINLockouts,
		m.Payments, m.AccountsCreated,
		m.NoncesIssued, m.SessionsIssued, m.SweptRecords,
	)
	return m
}

// Handler serves the registry in the prometheus text format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveSecurity records one security operation.
func (m *Metrics) ObserveSecurity(operation, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SecurityCalls.WithLabelValues(operation, result).Inc()
	m.SecurityDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// IncPINLockout counts an account lockout.
func (m *Metrics) IncPINLockout() {
	if m == nil {
		return
	}
	m.PINLockouts.Inc()
}

// IncPayment counts a payment by status.
func (m *Metrics) IncPayment(status string) {
	if m == nil {
		return
	}
	m.Payments.WithLabelValues(status).Inc()
}

// IncAccountCreated counts an account creation attempt by status.
func (m *Metrics) IncAccountCreated(status string) {
	if m == nil {
		return
	}
	m.AccountsCreated.WithLabelValues(status).Inc()
}

// IncNonce counts a nonce request by result.
func (m *Metrics) IncNonce(result string) {
	if m == nil {
		return
	}
	m.NoncesIssued.WithLabelValues(result).Inc()
}

// IncVerification counts a wallet verification by result.
func (m *Metrics) IncVerification(result string) {
	if m == nil {
		return
	}
	m.SessionsIssued.WithLabelValues(result).Inc()
}

// AddSwept counts evicted records of kind.
func (m *Metrics) AddSwept(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SweptRecords.WithLabelValues(kind).Add(float64(n))
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
