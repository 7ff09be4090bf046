package handlers

import (
	"net/http"

	"slotbook/utils"

	"github.com/gin-gonic/gin"
)

// HealthHandler reports liveness and the last health-monitor snapshot.
func HealthHandler(monitor *utils.HealthMonitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if monitor != nil {
			body["checks"] = monitor.Status()
		}
		c.JSON(http.StatusOK, body)
	}
}
