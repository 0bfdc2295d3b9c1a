package api

import (
	"delivery-batch-service/internal/api/handlers"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires HTTP handlers with their dependencies and returns the gin engine.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(service handlers.BatchAPI, gatherer prometheus.Gatherer, checks map[string]handlers.Pinger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	batchHandler := &handlers.BatchHandler{Service: service}
	healthHandler := &handlers.HealthHandler{Checks: checks}

	r.GET("/health", healthHandler.Health)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/v1")
	{
		v1.POST("/batches", batchHandler.Create)
		v1.GET("/batches/suggestions", batchHandler.Suggestions)
		v1.POST("/batches/merge", batchHandler.Merge)
		v1.POST("/batches/optimize", batchHandler.RunOptimization)
		v1.POST("/batches/:id/optimize", batchHandler.Optimize)
		v1.POST("/batches/:id/routes", batchHandler.Routes)
		v1.POST("/batches/:id/split", batchHandler.Split)
		v1.PATCH("/batches/:id/status", batchHandler.UpdateStatus)
	}

	return r
}
