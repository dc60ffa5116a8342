package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"sales_api/internal/idempotency"
	"sales_api/internal/metrics"
	"sales_api/internal/sales"
)

// Deps are the components the routes are served by.
type Deps struct {
	Sales       *sales.Service
	Idempotency idempotency.Store
	Metrics     *metrics.ServerMetrics
	Gatherer    prometheus.Gatherer
	Logger      *zap.Logger
}

// InitRoutes registers the sales endpoints on the given Gin engine. Metrics
// middleware and /metrics are only installed when Metrics and Gatherer are set.
func InitRoutes(e *gin.Engine, d Deps) {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Idempotency == nil {
		d.Idempotency = idempotency.NewMemoryStore(idempotency.DefaultTTL)
	}
	if d.Metrics != nil {
		e.Use(d.Metrics.Middleware())
	}

	salesHandler := NewSalesHandler(d.Sales, d.Idempotency, d.Logger)

	e.POST("/sales", salesHandler.handleCreateSale)
	e.GET("/sales/:id", salesHandler.handleGetSale)
	e.GET("/sales", salesHandler.handleSearchSales)

	e.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	if d.Gatherer != nil {
		e.GET("/metrics", gin.WrapH(metrics.Handler(d.Gatherer)))
	}
}
