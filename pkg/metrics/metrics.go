// Package metrics records run counters and pushes them to a Prometheus
// Pushgateway. A batch job has no scrape endpoint, so pushing at the end of
// the run is the only way out.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/yurifrl/ynabsync/pkg/report"
)

const namespace = "ynabsync"

// Metrics holds the run counters on a private registry.
type Metrics struct {
	Descriptors  *prometheus.CounterVec
	Files        *prometheus.CounterVec
	Transactions *prometheus.CounterVec
	LastRun      prometheus.Gauge

	registry *prometheus.Registry
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Descriptors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "descriptors_total",
			Help:      "Descriptors processed, by outcome",
		}, []string{"status"}),
		Files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Export files processed, by outcome",
		}, []string{"status"}),
		Transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Transactions submitted to the ledger, by result",
		}, []string{"result"}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
	}

	m.registry.MustRegister(m.Descriptors, m.Files, m.Transactions, m.LastRun)
	return m
}

// Registry exposes the registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records the outcome of a finished run.
func (m *Metrics) Observe(s *report.Summary) {
	for _, r := range s.Results {
		m.Descriptors.WithLabelValues(r.Status.String()).Inc()
		for _, f := range r.Files {
			status := "archived"
			if !f.Archived {
				status = "pending"
			}
			m.Files.WithLabelValues(status).Inc()
			m.Transactions.WithLabelValues("created").Add(float64(f.Created))
			m.Transactions.WithLabelValues("duplicate").Add(float64(f.Duplicates))
		}
	}
	m.LastRun.SetToCurrentTime()
}

// Push replaces the metrics of job on the Pushgateway at url.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	err := push.New(url, job).
		Gatherer(m.registry).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
