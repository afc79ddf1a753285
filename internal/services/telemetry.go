package services

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/services")

var (
	// generationTotal counts generation calls by result (ok, unavailable, malformed)
	generationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fitplan_generation_requests_total",
		Help: "Plan generation requests by result",
	}, []string{"result"})

	// generationDuration tracks generation latency
	generationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fitplan_generation_duration_seconds",
		Help:    "Plan generation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2min
	})

	// planReplaceTotal counts plan replaces by result
	planReplaceTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fitplan_plan_replace_total",
		Help: "Plan replace operations by result",
	}, []string{"result"})

	// syncRowsTotal counts mirrored rows by collection and result
	syncRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fitplan_sync_rows_total",
		Help: "Rows pushed to the remote mirror by collection and result",
	}, []string{"collection", "result"})
)

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}
