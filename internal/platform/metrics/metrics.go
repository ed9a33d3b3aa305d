package metrics

import (
	"context"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registration outcomes recorded by RegistrationsTotal.
const (
	OutcomeSuccess      = "success"
	OutcomeInvalid      = "invalid"
	OutcomeStoreFailure = "store_failure"
	OutcomeEmailFailure = "email_failure"
	OutcomeRateLimited  = "rate_limited"

	EmailResultSent   = "sent"
	EmailResultFailed = "failed"
)

// Metrics holds all Prometheus metrics for the registration service.
type Metrics struct {
	RegistrationsTotal *prometheus.CounterVec
	EmailsTotal        *prometheus.CounterVec
	RegisterDuration   *prometheus.HistogramVec
}

// New creates and registers all metrics on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RegistrationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "weict_registrations_total",
			Help: "Registration submissions by route and outcome",
		}, []string{"route", "outcome"}),
		EmailsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "weict_confirmation_emails_total",
			Help: "Confirmation emails by provider and result",
		}, []string{"provider", "result"}),
		RegisterDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "weict_register_duration_seconds",
			Help:    "Duration of the registration workflow (insert plus email)",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"route"}),
	}
}

// IncRegistration records one submission outcome. Nil-safe so handlers can
// run without metrics in tests.
func (m *Metrics) IncRegistration(route, outcome string) {
	if m == nil {
		return
	}
	m.RegistrationsTotal.WithLabelValues(route, outcome).Inc()
}

// IncEmail records one confirmation email attempt.
func (m *Metrics) IncEmail(provider, result string) {
	if m == nil {
		return
	}
	m.EmailsTotal.WithLabelValues(provider, result).Inc()
}

// ObserveRegister records the duration of a registration.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveRegister(route string, start time.Time) {
	if m == nil {
		return
	}
	m.RegisterDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
}

// Counter reports how many registrations are stored.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

const countTimeout = 2 * time.Second

// RegisterStoredGauge exposes the stored row count as a gauge read at scrape
// time. A failed count reports NaN.
func RegisterStoredGauge(reg prometheus.Registerer, c Counter) prometheus.GaugeFunc {
	return promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "weict_registrations_stored",
		Help: "Registrations currently stored",
	}, func() float64 {
		ctx, cancel := context.WithTimeout(context.Background(), countTimeout)
		defer cancel()
		n, err := c.Count(ctx)
		if err != nil {
			return math.NaN()
		}
		return float64(n)
	})
}
