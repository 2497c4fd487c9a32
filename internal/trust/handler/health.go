package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jmerrifield20/NexusTrust/internal/health"
)

// HealthHandler handles GET /healthz. With a nil checker it always reports ok.
func HealthHandler(checker *health.Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if checker == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		status, code := "ok", http.StatusOK
		if !checker.Healthy() {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":        status,
			"collaborators": checker.Snapshot(),
		})
	}
}
