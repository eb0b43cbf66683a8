package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// Metrics holds the application-wide Prometheus collectors.
type Metrics struct {
	LoginAttempts      *prometheus.CounterVec
	ClientsCreated     prometheus.Counter
	BrokersOnboarded   prometheus.Counter
	PolicyQuery        *prometheus.HistogramVec
	HTTPRequestLatency *prometheus.HistogramVec
}

// New creates and registers all collectors on reg. Pass
// prometheus.NewRegistry() in tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LoginAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "corretaje_login_attempts_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		ClientsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "corretaje_clients_created_total",
			Help: "Total number of clients created",
		}),
		BrokersOnboarded: f.NewCounter(prometheus.CounterOpts{
			Name: "corretaje_brokers_onboarded_total",
			Help: "Total number of brokers created together with their operator account",
		}),
		PolicyQuery: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "corretaje_policy_query_duration_seconds",
			Help:    "Duration of policy list and stats queries",
			Buckets: durationBuckets,
		}, []string{"operation"}),
		HTTPRequestLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "corretaje_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: durationBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// IncrementLogin records a login outcome ("success", "invalid_credentials", "inactive").
func (m *Metrics) IncrementLogin(outcome string) {
	m.LoginAttempts.WithLabelValues(outcome).Inc()
}

// IncrementClientsCreated increments the clients created counter by 1
func (m *Metrics) IncrementClientsCreated() {
	m.ClientsCreated.Inc()
}

func (m *Metrics) IncrementBrokersOnboarded() {
	m.BrokersOnboarded.Inc()
}

// ObservePolicyQuery records the duration of a list or stats call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObservePolicyQuery(operation string, start time.Time) {
	m.PolicyQuery.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ObserveHTTPRequest implements the request latency middleware observer.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, start time.Time) {
	m.HTTPRequestLatency.WithLabelValues(method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
}
