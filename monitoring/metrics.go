package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"waterguard/ml"
)

// Metrics is the Prometheus collector set for the predictor service. Each instance owns its own
// registry so tests can build several without duplicate registration.
type Metrics struct {
	registry *prometheus.Registry

	predictions    *prometheus.CounterVec
	predictionTime prometheus.Histogram
	cacheHits      prometheus.Counter
	reloads        *prometheus.CounterVec
	modelTrees     prometheus.Gauge
	modelFeatures  prometheus.Gauge
	modelAccuracy  prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "waterguard",
			Name:      "predictions_total",
			Help:      "Predictions served, by verdict.",
		}, []string{"verdict"}),
		predictionTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "waterguard",
			Name:      "prediction_duration_seconds",
			Help:      "Time spent classifying one sample.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "waterguard",
			Name:      "prediction_cache_hits_total",
			Help:      "Predictions answered from the verdict cache.",
		}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "waterguard",
			Name:      "model_reloads_total",
			Help:      "Model file reload attempts, by result.",
		}, []string{"result"}),
		modelTrees: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "waterguard",
			Name:      "model_trees",
			Help:      "Number of trees in the serving model.",
		}),
		modelFeatures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "waterguard",
			Name:      "model_features",
			Help:      "Number of features in the serving model schema.",
		}),
		modelAccuracy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "waterguard",
			Name:      "model_holdout_accuracy",
			Help:      "Held-out accuracy recorded when the serving model was trained.",
		}),
	}
	m.registry.MustRegister(
		m.predictions,
		m.predictionTime,
		m.cacheHits,
		m.reloads,
		m.modelTrees,
		m.modelFeatures,
		m.modelAccuracy,
		prometheus.NewGoCollector(),
	)
	return m
}

// ObservePrediction counts one verdict and records how long it took.
func (m *Metrics) ObservePrediction(result ml.PredictionResult, elapsed time.Duration) {
	m.predictions.WithLabelValues(result.Verdict.String()).Inc()
	m.predictionTime.Observe(elapsed.Seconds())
	if result.Cached {
		m.cacheHits.Inc()
	}
}

// SetModel publishes the shape of the model now serving.
func (m *Metrics) SetModel(a *ml.Artifact) {
	if a == nil || a.Forest == nil {
		return
	}
	m.modelTrees.Set(float64(len(a.Forest.Trees)))
	m.modelFeatures.Set(float64(len(a.Schema)))
	m.modelAccuracy.Set(a.Report.Accuracy)
}

// ObserveReload counts a model reload attempt and, on success, republishes the model shape.
func (m *Metrics) ObserveReload(a *ml.Artifact, err error) {
	if err != nil {
		m.reloads.WithLabelValues("error").Inc()
		return
	}
	m.reloads.WithLabelValues("ok").Inc()
	m.SetModel(a)
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
