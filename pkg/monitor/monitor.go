package monitor

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// 状态 API 的请求指标，只有开启 --http 时才注册
var (
	APIRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "si_http_requests_total",
		Help: "Status API requests by route and status code",
	}, []string{"method", "route", "code"})

	APILatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "si_http_request_duration_seconds",
		Help:    "Status API latency",
		Buckets: []float64{0.001, 0.005, 0.02, 0.1, 0.5},
	}, []string{"route"})

	APIInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "si_http_in_flight_requests",
		Help: "Status API requests being served",
	})

	registerOnce sync.Once
)

// Init 可重复调用
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(APIRequests, APILatency, APIInFlight)
	})
}

// PrometheusMiddleware 按路由模板统计，/metrics 自身和未匹配的路径不计
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" || route == "/metrics" {
			c.Next()
			return
		}

		APIInFlight.Inc()
		began := time.Now()
		c.Next()
		APIInFlight.Dec()

		APIRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		APILatency.WithLabelValues(route).Observe(time.Since(began).Seconds())
	}
}
