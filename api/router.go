package api

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts every API route on the router
func RegisterRoutes(router *gin.Engine, h *Handlers, secret string) {
	router.Use(BearerAuth(secret))

	router.GET("/api/health", h.Health)

	router.POST("/api/notify", h.Notify)
	router.POST("/api/schedule", h.Schedule)
	router.GET("/api/scheduled", h.ListScheduled)
	router.DELETE("/api/scheduled/:id", h.CancelScheduled)

	router.POST("/api/tasks", h.CreateTask)
	router.GET("/api/tasks", h.ListTasks)
	router.PATCH("/api/tasks/:id", h.UpdateTask)
	router.DELETE("/api/tasks/:id", h.DeleteTask)

	router.GET("/api/lounge", h.GetLounge)
	router.POST("/api/lounge", h.PostLounge)
}
