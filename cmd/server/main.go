package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/livescore/livescore-backend/internal/api"
	"github.com/livescore/livescore-backend/internal/config"
	"github.com/livescore/livescore-backend/internal/jobs"
	"github.com/livescore/livescore-backend/internal/repository"
	"github.com/livescore/livescore-backend/internal/service"
	"github.com/livescore/livescore-backend/internal/websocket"
	"github.com/livescore/livescore-backend/pkg/database"
	"github.com/livescore/livescore-backend/pkg/distributed"
	jwtutil "github.com/livescore/livescore-backend/pkg/jwt"
	"github.com/livescore/livescore-backend/pkg/logger"
	"github.com/livescore/livescore-backend/pkg/ratelimit"
)

func main() {
	// 설정 로드
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 로거 초기화
	logger.Init(cfg.LogLevel, cfg.Env)
	defer logger.Sync()

	logger.Info("Starting LiveScore Backend",
		"port", cfg.Port,
		"env", cfg.Env,
		"driver", cfg.DatabaseDriver,
	)

	// 데이터베이스 연결 + 마이그레이션
	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	// 매치 락: REDIS_URL이 있으면 Redis, 없으면 프로세스 내부
	locker, redisClient := newMatchLocker(cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	// WebSocket Hub + 업데이트 진입점
	wsHub := websocket.NewHub(logger.Named("websocket"))
	limiter := ratelimit.NewRateLimiter(cfg.UpdateRateLimit, cfg.UpdateRateRefill)

	matchRepo := repository.NewMatchRepository(db)
	matchService := service.NewMatchService(matchRepo, locker, wsHub, cfg.MaxUpdateRetries)

	wsHub.SetScoreUpdater(matchService)
	wsHub.SetRateLimiter(limiter)

	// 주기 작업
	sched, err := jobs.Start(wsHub, limiter, cfg.StatsInterval, logger.Named("jobs"))
	if err != nil {
		logger.Fatal("Failed to start scheduler", "error", err)
	}

	jwtManager := jwtutil.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
	router := api.SetupRouter(cfg, matchService, wsHub, jwtManager, limiter)

	// 서버 설정
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 서버 시작 (고루틴)
	go func() {
		logger.Info("Server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown 대기
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// 10초 타임아웃으로 종료
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sched.Shutdown(); err != nil {
		logger.Warn("Scheduler shutdown failed", "error", err)
	}

	// 업그레이드된 연결은 http.Server가 닫지 않으므로 Hub에서 정리
	wsHub.Shutdown()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}

func newMatchLocker(cfg *config.Config) (service.MatchLocker, *redis.Client) {
	if cfg.RedisURL == "" {
		logger.Info("Using in-process match locks")
		return service.NewLocalMatchLocker(), nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal("Invalid REDIS_URL", "error", err)
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", "error", err)
	}

	logger.Info("Using Redis match locks", "ttl", cfg.MatchLockTTL)
	return distributed.NewMatchLocker(client, cfg.MatchLockTTL), client
}
