// Package monitor Prometheus 指标：入站请求、数据源调用、刷新结果
package monitor

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tracklight"

// Collector 持有独立的 Registry，nil 接收者上的所有记录方法都是空操作
type Collector struct {
	registry          *prometheus.Registry
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	providerDuration  *prometheus.HistogramVec
	providerTotal     *prometheus.CounterVec
	refreshTotal      *prometheus.CounterVec
	snapshotsAppended *prometheus.CounterVec
}

func NewCollector() (*Collector, error) {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution for inbound HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of inbound HTTP requests.",
		}, []string{"method", "path", "status"}),
		providerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "call_duration_seconds",
			Help:      "Latency of upstream metrics provider calls.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"provider", "kind"}),
		providerTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Upstream provider calls by outcome.",
		}, []string{"provider", "kind", "outcome"}),
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "results_total",
			Help:      "Entity refresh results by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		snapshotsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "appended_total",
			Help:      "Metric snapshots committed to the time series.",
		}, []string{"kind", "provider"}),
	}

	for _, col := range []prometheus.Collector{
		c.requestDuration, c.requestTotal,
		c.providerDuration, c.providerTotal,
		c.refreshTotal, c.snapshotsAppended,
	} {
		if err := c.registry.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Handler /metrics 暴露端点
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// GinMiddleware 以路由模板作为 path 标签，避免实体 id 撑爆基数
func (c *Collector) GinMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		if c == nil {
			return
		}

		path := ctx.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(ctx.Writer.Status())
		c.requestTotal.WithLabelValues(ctx.Request.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(ctx.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

func (c *Collector) ObserveProviderCall(provider, kind, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.providerTotal.WithLabelValues(provider, kind, outcome).Inc()
	c.providerDuration.WithLabelValues(provider, kind).Observe(elapsed.Seconds())
}

func (c *Collector) ObserveRefresh(trigger, outcome string) {
	if c == nil {
		return
	}
	c.refreshTotal.WithLabelValues(trigger, outcome).Inc()
}

func (c *Collector) SnapshotAppended(kind, provider string) {
	if c == nil {
		return
	}
	c.snapshotsAppended.WithLabelValues(kind, provider).Inc()
}
