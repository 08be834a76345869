package router

import (
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"
)

func (r *Router) setupHealthRoutes() {
	checker := r.container.Health

	// Liveness: the process is up and serving.
	r.engine.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness: dependencies are usable.
	r.engine.GET("/health/ready", func(c *gin.Context) {
		if !checker.IsSystemHealthy() {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":     "unavailable",
				"components": checker.GetStatus(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Full report with component detail and process stats.
	r.engine.GET("/health", func(c *gin.Context) {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)

		status := http.StatusOK
		if !checker.IsSystemHealthy() {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"components": checker.GetStatus(),
			"runtime": gin.H{
				"goroutines":     runtime.NumGoroutine(),
				"heap_alloc_mb":  mem.HeapAlloc / 1024 / 1024,
				"total_alloc_mb": mem.TotalAlloc / 1024 / 1024,
			},
		})
	})
}
