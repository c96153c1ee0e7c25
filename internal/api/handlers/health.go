package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/livescore/livescore-backend/internal/websocket"
)

// HealthHandler 서버 상태와 연결 수
type HealthHandler struct {
	hub *websocket.Hub
}

func NewHealthHandler(hub *websocket.Hub) *HealthHandler {
	return &HealthHandler{hub: hub}
}

// HealthCheck godoc
// @Summary Health check
// @Description Check if the API server is running
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{} "Server is healthy"
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	total, identified := h.hub.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"service":     "livescore-backend",
		"connections": total,
		"identified":  identified,
	})
}
