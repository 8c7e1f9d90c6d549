// Package metrics exposes Prometheus collectors for the ingestion loop.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "budwatch"

// Tick outcomes
const (
	TickOK            = "ok"
	TickNoSession     = "no_session"
	TickFetchFailed   = "fetch_failed"
	TickPersistFailed = "persist_failed" // every write failed
	TickPanicked      = "panicked"
)

// Reading results
const (
	ReadingsPersisted = "persisted"
	ReadingsDuplicate = "duplicate"
	ReadingsSkipped   = "skipped"
	ReadingsFailed    = "failed"
)

// Metrics holds the ingestion collectors
type Metrics struct {
	ticks          *prometheus.CounterVec
	authAttempts   *prometheus.CounterVec
	readings       *prometheus.CounterVec
	lastSuccess    prometheus.Gauge
	retentionRows  prometheus.Counter
	tickDuration   prometheus.Histogram
	publishFailure prometheus.Counter
}

// New creates the collectors and registers them on reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Ingestion ticks by outcome.",
		}, []string{"outcome"}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Authorization attempts by result.",
		}, []string{"result"}),
		readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_total",
			Help:      "Readings handled by result (persisted, duplicate, skipped, failed).",
		}, []string{"result"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_successful_tick_timestamp_seconds",
			Help:      "Unix time of the last tick that fetched samples and stored them.",
		}),
		retentionRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retention_deleted_rows_total",
			Help:      "Rows removed by retention cleanup.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Duration of ingestion ticks.",
			Buckets:   prometheus.DefBuckets,
		}),
		publishFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "Readings that could not be published to MQTT.",
		}),
	}

	reg.MustRegister(m.ticks, m.authAttempts, m.readings, m.lastSuccess, m.retentionRows, m.tickDuration, m.publishFailure)
	return m
}

// ObserveTick records a finished tick
func (m *Metrics) ObserveTick(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(outcome).Inc()
	m.tickDuration.Observe(took.Seconds())
	if outcome == TickOK {
		m.lastSuccess.SetToCurrentTime()
	}
}

// ObserveAuth records an authorization attempt
func (m *Metrics) ObserveAuth(ok bool) {
	if m == nil {
		return
	}
	result := "failure"
	if ok {
		result = "success"
	}
	m.authAttempts.WithLabelValues(result).Inc()
}

// AddReadings counts readings by result
func (m *Metrics) AddReadings(result string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.readings.WithLabelValues(result).Add(float64(n))
}

// AddRetention counts rows deleted by retention
func (m *Metrics) AddRetention(n int64) {
	if m == nil || n == 0 {
		return
	}
	m.retentionRows.Add(float64(n))
}

// PublishFailed counts a failed MQTT publish
func (m *Metrics) PublishFailed() {
	if m == nil {
		return
	}
	m.publishFailure.Inc()
}
