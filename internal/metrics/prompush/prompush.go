// Package prompush implements a metrics backend that pushes to a Prometheus
// Pushgateway on Flush. It suits batch CLI runs, which exit before a scraper
// would see them.
package prompush

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"mapsync/internal/metrics"
)

// Backend collects into a private registry and pushes it as one job.
type Backend struct {
	pusher  *push.Pusher
	timeout time.Duration

	steps     *prometheus.CounterVec
	durations *prometheus.HistogramVec
	tables    *prometheus.CounterVec
	rows      prometheus.Counter
	httpReqs  *prometheus.CounterVec
	httpDur   *prometheus.HistogramVec
}

// NewBackend registers the mapsync series and targets gatewayURL under job.
func NewBackend(job, gatewayURL string) (*Backend, error) {
	if job == "" {
		return nil, fmt.Errorf("prompush: job name is required")
	}
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway url is required")
	}

	b := &Backend{
		timeout: 10 * time.Second,
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal, Help: "Pipeline steps run, by step and status.",
		}, []string{"step", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: metrics.StepDurationSeconds, Help: "Step duration in seconds.", Buckets: prometheus.DefBuckets,
		}, []string{"step", "status"}),
		tables: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.SyncTablesTotal, Help: "Tables handled by group sync, by status.",
		}, []string{"status"}),
		rows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metrics.SyncRowsTotal, Help: "Rows inserted by group sync.",
		}),
		httpReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.HTTPRequestsTotal, Help: "API requests served, by status code.",
		}, []string{"status"}),
		httpDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: metrics.HTTPDurationSeconds, Help: "API request duration in seconds.", Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
	}

	reg := prometheus.NewRegistry()
	for _, c := range []prometheus.Collector{b.steps, b.durations, b.tables, b.rows, b.httpReqs, b.httpDur} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register: %w", err)
		}
	}

	b.pusher = push.New(gatewayURL, job).Gatherer(reg)
	return b, nil
}

func label(l metrics.Labels, key string) string {
	if v := l[key]; v != "" {
		return v
	}
	return "unknown"
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	switch name {
	case metrics.StepTotal:
		b.steps.WithLabelValues(label(labels, "step"), label(labels, "status")).Add(delta)
	case metrics.SyncTablesTotal:
		b.tables.WithLabelValues(label(labels, "status")).Add(delta)
	case metrics.SyncRowsTotal:
		b.rows.Add(delta)
	case metrics.HTTPRequestsTotal:
		b.httpReqs.WithLabelValues(label(labels, "status")).Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend. Unknown names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}
	switch name {
	case metrics.StepDurationSeconds:
		b.durations.WithLabelValues(label(labels, "step"), label(labels, "status")).Observe(value)
	case metrics.HTTPDurationSeconds:
		b.httpDur.WithLabelValues(label(labels, "status")).Observe(value)
	}
}

// Flush pushes the registry, replacing the job's previous push.
func (b *Backend) Flush() error {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	if err := b.pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("prompush: push: %w", err)
	}
	return nil
}

var (
	_ metrics.Backend = (*Backend)(nil)
	_ metrics.Flusher = (*Backend)(nil)
)
