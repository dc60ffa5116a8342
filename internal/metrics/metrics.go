package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sales_api"

// ServerMetrics holds the HTTP and sale workflow collectors.
type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec

	SalesCreated prometheus.Counter
	SalesFailed  *prometheus.CounterVec
	SaleAmount   prometheus.Histogram
	SaleLines    prometheus.Histogram
}

// NewServerMetrics creates the collectors and registers them with reg.
func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	m := &ServerMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"handler"}),
		SalesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_created_total",
			Help:      "Sales stored successfully.",
		}),
		SalesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_failed_total",
			Help:      "Sale creations that failed, by failure kind.",
		}, []string{"kind"}),
		SaleAmount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sale_amount",
			Help:      "Total amount of created sales, tax included.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		SaleLines: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sale_lines",
			Help:      "Number of lines per created sale.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50},
		}),
	}

	reg.MustRegister(m.Requests, m.LatencyMS, m.SalesCreated, m.SalesFailed, m.SaleAmount, m.SaleLines)
	return m
}

func (m *ServerMetrics) SaleCreated(total float64, lines int) {
	m.SalesCreated.Inc()
	m.SaleAmount.Observe(total)
	m.SaleLines.Observe(float64(lines))
}

func (m *ServerMetrics) SaleFailed(kind string) {
	m.SalesFailed.WithLabelValues(kind).Inc()
}

// Middleware records request count and latency per route template.
func (m *ServerMetrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.Requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	}
}

// Handler serves the collectors gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
