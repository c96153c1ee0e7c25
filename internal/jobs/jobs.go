package jobs

import (
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// ConnectionStats 연결 수 조회 (websocket.Hub가 구현)
type ConnectionStats interface {
	Stats() (total, identified int)
}

// IdleCleaner 오래 쓰지 않은 리미터 버킷 정리 (ratelimit.RateLimiter가 구현)
type IdleCleaner interface {
	Cleanup(idle time.Duration) int
}

// Start 주기 작업 스케줄러 시작. 종료 시 Shutdown 호출 필요
func Start(stats ConnectionStats, cleaner IdleCleaner, interval time.Duration, logger *zap.Logger) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	// 연결 현황 로그
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			total, identified := stats.Stats()
			logger.Info("WebSocket connections",
				zap.Int("total", total),
				zap.Int("identified", identified))
		}),
		gocron.WithName("hub-stats"),
	)
	if err != nil {
		return nil, err
	}

	// 리미터 버킷 정리
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if removed := cleaner.Cleanup(interval); removed > 0 {
				logger.Debug("Rate limiter buckets removed", zap.Int("removed", removed))
			}
		}),
		gocron.WithName("ratelimit-cleanup"),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	return sched, nil
}
