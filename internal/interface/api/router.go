package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opspilot/opspilot/internal/application/usecase"
)

// NewRouter builds the HTTP routing table over a coordinator.
func NewRouter(coordinator *usecase.Coordinator, logf LogFunc) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(Recovery(logf))
	router.Use(RequestLog(logf))
	router.Use(CORS())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handler := NewTaskHandler(coordinator)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/execute", handler.Execute)

		tasks := v1.Group("/tasks")
		{
			tasks.GET("", handler.List)
			tasks.GET("/:id", handler.Get)
			tasks.POST("/:id/approve", handler.Approve)
			tasks.POST("/:id/reject", handler.Reject)
		}

		// Approval decisions address the pending plan, so the same
		// operations are reachable under /plans as well.
		plans := v1.Group("/plans")
		{
			plans.POST("/:id/approve", handler.Approve)
			plans.POST("/:id/reject", handler.Reject)
		}
	}

	return router
}
