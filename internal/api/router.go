package api

import (
	"github.com/gin-gonic/gin"

	"github.com/livescore/livescore-backend/internal/api/handlers"
	"github.com/livescore/livescore-backend/internal/api/middleware"
	"github.com/livescore/livescore-backend/internal/config"
	"github.com/livescore/livescore-backend/internal/service"
	"github.com/livescore/livescore-backend/internal/websocket"
	jwtutil "github.com/livescore/livescore-backend/pkg/jwt"
	"github.com/livescore/livescore-backend/pkg/ratelimit"
)

// SetupRouter API 라우터 설정
func SetupRouter(
	cfg *config.Config,
	matchService *service.MatchService,
	wsHub *websocket.Hub,
	jwtManager *jwtutil.JWTManager,
	limiter *ratelimit.RateLimiter,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 전역 미들웨어
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// Handler 초기화
	matchHandler := handlers.NewMatchHandler(matchService)
	wsHandler := handlers.NewWebSocketHandler(wsHub, jwtManager, cfg.WSSendBuffer)
	healthHandler := handlers.NewHealthHandler(wsHub)

	auth := middleware.Auth(jwtManager)
	updateLimit := middleware.UpdateRateLimit(limiter, cfg.UpdateRateLimit)

	// Health check
	router.GET("/health", healthHandler.HealthCheck)

	// API v1
	v1 := router.Group("/api/v1")
	{
		// WebSocket endpoint (관전자는 토큰 없이 접속)
		v1.GET("/ws", wsHandler.HandleWebSocket)

		// Match routes
		matches := v1.Group("/matches")
		{
			matches.POST("", auth, matchHandler.CreateMatch)
			matches.GET("/:id", matchHandler.GetMatch)
			matches.PATCH("/:id", auth, updateLimit, matchHandler.UpdateMatch)
			matches.POST("/:id/lock", auth, matchHandler.LockMatch)
			matches.POST("/:id/unlock", auth, matchHandler.UnlockMatch)
		}

		// Tournament routes
		tournaments := v1.Group("/tournaments")
		{
			tournaments.GET("/:id/matches", matchHandler.ListTournamentMatches)
		}
	}

	return router
}
