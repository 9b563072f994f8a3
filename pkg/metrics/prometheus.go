package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	predictions  *prometheus.CounterVec
	trainings    *prometheus.CounterVec
	trainSeconds *prometheus.HistogramVec
	reloads      *prometheus.CounterVec
	activeModels prometheus.Gauge
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder registered on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		predictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finscore_predictions_total",
				Help: "Predictions served by model kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		trainings: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finscore_trainings_total",
				Help: "Training runs by model kind and result",
			},
			[]string{"kind", "result"},
		),
		trainSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finscore_training_duration_seconds",
				Help:    "Duration of training runs",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"kind"},
		),
		reloads: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finscore_model_reloads_total",
				Help: "Model reloads by kind and result",
			},
			[]string{"kind", "result"},
		),
		activeModels: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "finscore_active_models",
				Help: "Number of model slots in READY state",
			},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finscore_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finscore_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordPrediction counts one served prediction.
func (r *Recorder) RecordPrediction(kind, outcome string) {
	r.predictions.WithLabelValues(kind, outcome).Inc()
}

// RecordTraining counts a training run and observes its duration.
func (r *Recorder) RecordTraining(kind, result string, seconds float64) {
	r.trainings.WithLabelValues(kind, result).Inc()
	r.trainSeconds.WithLabelValues(kind).Observe(seconds)
}

func (r *Recorder) RecordReload(kind, result string) {
	r.reloads.WithLabelValues(kind, result).Inc()
}

func (r *Recorder) SetActiveModels(n int) {
	r.activeModels.Set(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordPrediction(string, string)        {}
func (Nop) RecordTraining(string, string, float64) {}
func (Nop) RecordReload(string, string)            {}
func (Nop) SetActiveModels(int)                    {}
func (Nop) RecordError(string)                     {}
func (Nop) RecordLatency(string, float64)          {}
