package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"channel-integration-engine/internal/health"
)

// HealthHandler serves the C11 health report.
type HealthHandler struct {
	reporter *health.Reporter
}

func NewHealthHandler(reporter *health.Reporter) *HealthHandler {
	return &HealthHandler{reporter: reporter}
}

// Report handles GET /health/integration.
func (h *HealthHandler) Report(c *gin.Context) {
	report, err := h.reporter.Generate()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "failed to generate health report", "error": err.Error()})
		return
	}

	status := http.StatusOK
	switch report.Status {
	case health.StatusDegraded:
		status = http.StatusOK
	case health.StatusUnhealthy:
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}
