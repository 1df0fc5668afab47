// Package metrics 暴露 registry 调用的 Prometheus 指标。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ghpkg"

// Recorder 实现 registry.Observer，所有指标注册在独立的 Registry 上，互不干扰。
type Recorder struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	cache    *prometheus.CounterVec
}

// NewRecorder 创建 Recorder，并附带 Go runtime 与进程指标。
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_requests_total",
			Help:      "Registry calls by outcome (fresh, not_modified, not_found, error).",
		}, []string{"registry", "operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "registry_request_duration_seconds",
			Help:      "Latency of registry calls including the redirect hop.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"registry", "operation"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_results_total",
			Help:      "Responses served by the HTTP front end, split by cache result.",
		}, []string{"registry", "result"}),
	}
	reg.MustRegister(
		r.requests,
		r.duration,
		r.cache,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Observe 记录一次 registry 调用。nil Recorder 直接忽略。
func (r *Recorder) Observe(registry, operation, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(registry, operation, outcome).Inc()
	r.duration.WithLabelValues(registry, operation).Observe(elapsed.Seconds())
}

// CacheResult 记录前端响应的缓存结果，例如 miss、revalidated、not_found。
func (r *Recorder) CacheResult(registry, result string) {
	if r == nil {
		return
	}
	r.cache.WithLabelValues(registry, result).Inc()
}

// Gatherer 便于测试直接读取指标。
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler 返回 /metrics 的 HTTP handler。
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
