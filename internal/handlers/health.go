package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ticketdesk-go/internal/model"
)

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := model.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Database:  "ok",
		Details:   make(map[string]string),
	}

	if err := h.db.Raw("SELECT 1").Error; err != nil {
		response.Status = "error"
		response.Database = "error"
		logrus.Errorf("Database health check failed: %v", err)
	}

	if h.scheduler.IsRunning() {
		response.Details["scheduler"] = "running"
		response.Details["next_run"] = h.scheduler.GetNextRun().Format(time.RFC3339)
		response.Details["last_run"] = h.scheduler.GetLastRun().Format(time.RFC3339)
	} else {
		response.Details["scheduler"] = "stopped"
	}

	if h.igConfig.Enabled {
		response.Details["instagram"] = "enabled"
	} else {
		response.Details["instagram"] = "disabled"
	}

	statusCode := http.StatusOK
	if response.Status == "error" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}
