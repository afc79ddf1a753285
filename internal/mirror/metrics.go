package mirror

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// opsTotal counts mirror operations by backend, operation, collection and result
	opsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fitplan_mirror_operations_total",
		Help: "Remote mirror operations by backend, operation, collection and result",
	}, []string{"backend", "op", "collection", "result"})

	// opDuration tracks mirror call latency
	opDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fitplan_mirror_operation_duration_seconds",
		Help:    "Remote mirror operation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
	}, []string{"backend", "op"})
)

type instrumented struct {
	next    Mirror
	backend string
}

// WithMetrics records Prometheus metrics for every call to next.
func WithMetrics(next Mirror, backend string) Mirror {
	return &instrumented{next: next, backend: backend}
}

func (m *instrumented) Upsert(ctx context.Context, collection, key string, value any) error {
	start := time.Now()
	err := m.next.Upsert(ctx, collection, key, value)
	m.observe("upsert", collection, start, resultLabel(err, true))
	return err
}

func (m *instrumented) Get(ctx context.Context, collection, key string, dst any) (bool, error) {
	start := time.Now()
	found, err := m.next.Get(ctx, collection, key, dst)
	m.observe("get", collection, start, resultLabel(err, found))
	return found, err
}

func (m *instrumented) Close() error {
	return m.next.Close()
}

func (m *instrumented) observe(op, collection string, start time.Time, result string) {
	opDuration.WithLabelValues(m.backend, op).Observe(time.Since(start).Seconds())
	opsTotal.WithLabelValues(m.backend, op, collection, result).Inc()
}

func resultLabel(err error, found bool) string {
	switch {
	case err != nil:
		return "error"
	case !found:
		return "miss"
	default:
		return "ok"
	}
}
