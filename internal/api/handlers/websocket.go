package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/livescore/livescore-backend/internal/api/middleware"
	"github.com/livescore/livescore-backend/internal/websocket"
	jwtutil "github.com/livescore/livescore-backend/pkg/jwt"
)

// WebSocketHandler WebSocket 연결 처리
type WebSocketHandler struct {
	hub        *websocket.Hub
	jwtManager *jwtutil.JWTManager
	sendBuffer int
}

// NewWebSocketHandler WebSocketHandler 생성
func NewWebSocketHandler(hub *websocket.Hub, jwtManager *jwtutil.JWTManager, sendBuffer int) *WebSocketHandler {
	return &WebSocketHandler{
		hub:        hub,
		jwtManager: jwtManager,
		sendBuffer: sendBuffer,
	}
}

// HandleWebSocket WebSocket 연결 엔드포인트.
// 관전자는 토큰 없이 접속하고, ?token=이 있으면 검증된 신원으로 점수 변경 가능
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	verified := middleware.VerifyQueryToken(c, h.jwtManager)
	websocket.ServeWs(h.hub, c.Writer, c.Request, h.sendBuffer, verified)
}
