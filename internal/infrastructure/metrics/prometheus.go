// Package metrics exposes pipeline observations as Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "connector_sync"

// Prometheus implements ports.Metrics on its own registry
type Prometheus struct {
	registry        *prometheus.Registry
	syncRuns        *prometheus.CounterVec
	syncDuration    *prometheus.HistogramVec
	stageRecords    *prometheus.CounterVec
	stageFailures   *prometheus.CounterVec
	entityWrites    *prometheus.CounterVec
	upsertConflicts *prometheus.CounterVec
	webhooks        *prometheus.CounterVec
}

var _ ports.Metrics = (*Prometheus)(nil)

// NewPrometheus creates and registers every collector, plus the Go and process collectors
func NewPrometheus() *Prometheus {
	m := &Prometheus{
		registry: prometheus.NewRegistry(),
		syncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Sync runs by provider and outcome.",
		}, []string{"provider", "status"}),
		syncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_run_duration_seconds",
			Help:      "Wall time of sync runs.",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 7200},
		}, []string{"provider"}),
		stageRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_records_total",
			Help:      "Records written by sync stages.",
		}, []string{"provider", "stage"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Sync stages that ended with an error.",
		}, []string{"provider", "stage"}),
		entityWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entity_writes_total",
			Help:      "Normalized entity upserts by kind and whether they updated an existing row.",
		}, []string{"kind", "updated"}),
		upsertConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upsert_conflicts_total",
			Help:      "Upserts that lost an insert race and were retried.",
		}, []string{"kind"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_total",
			Help:      "Webhook deliveries by provider and outcome.",
		}, []string{"provider", "outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.syncRuns,
		m.syncDuration,
		m.stageRecords,
		m.stageFailures,
		m.entityWrites,
		m.upsertConflicts,
		m.webhooks,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry
func (m *Prometheus) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Prometheus) SyncRunFinished(provider domain.ConnectorType, status string, duration time.Duration) {
	m.syncRuns.WithLabelValues(string(provider), status).Inc()
	m.syncDuration.WithLabelValues(string(provider)).Observe(duration.Seconds())
}

func (m *Prometheus) StageFinished(provider domain.ConnectorType, stage string, records int, failed bool) {
	m.stageRecords.WithLabelValues(string(provider), stage).Add(float64(records))
	if failed {
		m.stageFailures.WithLabelValues(string(provider), stage).Inc()
	}
}

func (m *Prometheus) EntityUpserted(kind domain.EntityKind, updated bool) {
	m.entityWrites.WithLabelValues(string(kind), strconv.FormatBool(updated)).Inc()
}

func (m *Prometheus) UpsertConflict(kind domain.EntityKind) {
	m.upsertConflicts.WithLabelValues(string(kind)).Inc()
}

func (m *Prometheus) WebhookReceived(provider domain.ConnectorType, outcome string) {
	m.webhooks.WithLabelValues(string(provider), outcome).Inc()
}
