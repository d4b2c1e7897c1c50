package v1

import (
	"context"
	"net/http"

	"launchpad-backend/internal/delivery/http/response"

	"github.com/gin-gonic/gin"
)

// HealthChecker reports dependency status as {status, database, redis}
type HealthChecker interface {
	Check(ctx context.Context) map[string]string
}

type HealthHandler struct {
	checker HealthChecker
}

func NewHealthHandler(public *gin.RouterGroup, checker HealthChecker) {
	handler := &HealthHandler{checker: checker}
	public.GET("/health", handler.Health)
}

// Health godoc
// @Summary      Health check
// @Tags         health
// @Produce      json
// @Success      200  {object}  response.Response
// @Failure      503  {object}  response.Response
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	status := h.checker.Check(c.Request.Context())
	if status["status"] != "ok" {
		response.Error(c, http.StatusServiceUnavailable, "System degraded", status)
		return
	}
	response.Success(c, http.StatusOK, "System operational", status)
}
