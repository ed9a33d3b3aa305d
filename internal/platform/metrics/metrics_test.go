package metrics

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncRegistration("open", OutcomeSuccess)
	m.IncRegistration("open", OutcomeSuccess)
	m.IncRegistration("pages", OutcomeEmailFailure)
	m.IncEmail("resend", EmailResultSent)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RegistrationsTotal.WithLabelValues("open", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RegistrationsTotal.WithLabelValues("pages", OutcomeEmailFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmailsTotal.WithLabelValues("resend", EmailResultSent)))
}

func TestObserveRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRegister("open", time.Now().Add(-50*time.Millisecond))

	count, err := testutil.GatherAndCount(reg, "weict_register_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncRegistration("open", OutcomeSuccess)
		m.IncEmail("log", EmailResultSent)
		m.ObserveRegister("open", time.Now())
	})
}

type countFunc func(context.Context) (int, error)

func (f countFunc) Count(ctx context.Context) (int, error) { return f(ctx) }

func TestStoredGauge(t *testing.T) {
	t.Run("reports the current count", func(t *testing.T) {
		n := 3
		g := RegisterStoredGauge(prometheus.NewRegistry(), countFunc(func(context.Context) (int, error) {
			return n, nil
		}))
		assert.Equal(t, 3.0, testutil.ToFloat64(g))
		n = 5
		assert.Equal(t, 5.0, testutil.ToFloat64(g))
	})

	t.Run("count failure reports NaN", func(t *testing.T) {
		g := RegisterStoredGauge(prometheus.NewRegistry(), countFunc(func(context.Context) (int, error) {
			return 0, errors.New("connection refused")
		}))
		assert.True(t, math.IsNaN(testutil.ToFloat64(g)))
	})
}
