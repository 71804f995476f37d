package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/bale/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the build collectors. Feed it through Hooks.
type Metrics struct {
	registry *prometheus.Registry

	builds       *prometheus.CounterVec
	buildTime    prometheus.Histogram
	stages       *prometheus.CounterVec
	transforms   *prometheus.CounterVec
	transformDur prometheus.Histogram
	written      prometheus.Counter
	modules      prometheus.Gauge
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bale_builds_total",
			Help: "Builds by result (succeeded, failed, cancelled).",
		}, []string{"result"}),
		buildTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bale_build_duration_seconds",
			Help:    "Wall time of a build.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		stages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bale_stage_transitions_total",
			Help: "Stage transitions by target stage.",
		}, []string{"stage"}),
		transforms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bale_modules_transformed_total",
			Help: "Modules through the transform pipeline by source (plugins, cache, error).",
		}, []string{"source"}),
		transformDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bale_transform_duration_seconds",
			Help:    "Time spent transforming one module.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		written: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bale_bytes_written_total",
			Help: "Bytes written to the output directory.",
		}),
		modules: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bale_graph_modules",
			Help: "Modules in the graph of the latest build.",
		}),
	}
	m.registry.MustRegister(m.builds, m.buildTime, m.stages, m.transforms, m.transformDur, m.written, m.modules)
	return m
}

// Registry exposes the registry for custom collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStage: func(_ context.Context, e *domain.StageEvent) {
			m.stages.WithLabelValues(string(e.To)).Inc()
		},
		OnModuleTransformed: func(_ context.Context, e *domain.ModuleEvent) {
			switch {
			case e.Err != nil:
				m.transforms.WithLabelValues("error").Inc()
			case e.Cached:
				m.transforms.WithLabelValues("cache").Inc()
			default:
				m.transforms.WithLabelValues("plugins").Inc()
				m.transformDur.Observe(e.Duration.Seconds())
			}
		},
		OnBuildDone: func(_ context.Context, r *domain.BuildResult) {
			m.builds.WithLabelValues(BuildOutcome(r)).Inc()
			m.buildTime.Observe(r.Stats.Duration.Seconds())
			m.written.Add(float64(r.Stats.BytesWritten))
			m.modules.Set(float64(r.Stats.Modules))
		},
	}
}
