package runner

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/modelroom/modelroom/internal/monitoring"
)

// Monitor carries the runner's prometheus instruments. The zero value
// records nothing, so a host without monitoring runs unchanged.
type Monitor struct {
	operations     *prometheus.CounterVec
	durations      *prometheus.HistogramVec
	jobsInFlight   prometheus.Gauge
	predictionRows *prometheus.CounterVec
}

// NewMonitor registers the runner metrics on the given registry.
func NewMonitor(registry *monitoring.Registry) Monitor {
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "modelroom_operations_total",
		Help: "Number of finished model operations",
	}, []string{"engine", "op", "status"})
	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "modelroom_operation_duration_seconds",
		Help:    "Duration of model operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"engine", "op"})
	jobsInFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "modelroom_jobs_in_flight",
		Help: "Number of training or update jobs currently running",
	})
	predictionRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "modelroom_prediction_rows_total",
		Help: "Number of prediction rows served",
	}, []string{"engine"})
	registry.MustRegister(operations, durations, jobsInFlight, predictionRows)
	return Monitor{
		operations:     operations,
		durations:      durations,
		jobsInFlight:   jobsInFlight,
		predictionRows: predictionRows,
	}
}

func (m Monitor) observeOperation(engineName, op, status string, d time.Duration) {
	if m.operations != nil {
		m.operations.WithLabelValues(engineName, op, status).Inc()
	}
	if m.durations != nil {
		m.durations.WithLabelValues(engineName, op).Observe(d.Seconds())
	}
}

func (m Monitor) observePredictionRows(engineName string, rows int) {
	if m.predictionRows != nil {
		m.predictionRows.WithLabelValues(engineName).Add(float64(rows))
	}
}

func (m Monitor) jobStarted() {
	if m.jobsInFlight != nil {
		m.jobsInFlight.Inc()
	}
}

func (m Monitor) jobFinished() {
	if m.jobsInFlight != nil {
		m.jobsInFlight.Dec()
	}
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
