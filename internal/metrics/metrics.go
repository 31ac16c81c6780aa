package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"zonal-stats/internal/zonal"
)

var (
	RunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zonal_runs_total",
		Help: "Total number of zonal statistics runs",
	})
	FeaturesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zonal_features_total",
		Help: "Processed features by outcome",
	}, []string{"outcome"})
	FeatureDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "zonal_feature_duration_ms",
		Help:    "Per-feature processing duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	})
	ClipBackendFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zonal_clip_backend_failures_total",
		Help: "Total cutline backend failures",
	})
	ProjectionErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zonal_projection_errors_total",
		Help: "Total features whose geometry could not be reprojected",
	})
	StateTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zonal_state_transitions_total",
		Help: "Feature state transitions by target state",
	}, []string{"state"})
)

func init() {
	prometheus.MustRegister(RunsTotal)
	prometheus.MustRegister(FeaturesTotal)
	prometheus.MustRegister(FeatureDurationMs)
	prometheus.MustRegister(ClipBackendFailuresTotal)
	prometheus.MustRegister(ProjectionErrorsTotal)
	prometheus.MustRegister(StateTransitionsTotal)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：统一暴露注册指标到 /metrics 路径，供 Prometheus 抓取；运行期间由 CLI 挂载。
func Handler() http.Handler { return promhttp.Handler() }

// Observer：把驱动的状态迁移与终态写入指标
type Observer struct{}

func (Observer) Transition(_ string, _, to zonal.State) {
	StateTransitionsTotal.WithLabelValues(to.String()).Inc()
}

func (Observer) Finished(r zonal.Result) {
	FeaturesTotal.WithLabelValues(string(r.Outcome)).Inc()
	FeatureDurationMs.Observe(float64(r.Duration.Microseconds()) / 1000)
	switch r.Outcome {
	case zonal.OutcomeBackend:
		ClipBackendFailuresTotal.Inc()
	case zonal.OutcomeProjection:
		ProjectionErrorsTotal.Inc()
	}
}

// Observers：把多个观察者合并为一个
type Observers []zonal.Observer

func (os Observers) Transition(id string, from, to zonal.State) {
	for _, o := range os {
		o.Transition(id, from, to)
	}
}

func (os Observers) Finished(r zonal.Result) {
	for _, o := range os {
		o.Finished(r)
	}
}
