package distributed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("lock not acquired")
	ErrLockNotHeld     = errors.New("lock not held")
)

// 자신이 획득한 락만 해제
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// RedisLock Redis 기반 락 (SET NX + 소유자 토큰)
type RedisLock struct {
	client *redis.Client
	key    string
	value  string
}

// RedisLockManager Redis 락 관리자
type RedisLockManager struct {
	client *redis.Client
}

// NewRedisLockManager Redis Lock Manager 생성
func NewRedisLockManager(client *redis.Client) *RedisLockManager {
	return &RedisLockManager{
		client: client,
	}
}

// AcquireLock 락 획득 시도
func (m *RedisLockManager) AcquireLock(ctx context.Context, key, value string, ttl time.Duration) (*RedisLock, error) {
	success, err := m.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return nil, err
	}

	if !success {
		return nil, ErrLockNotAcquired
	}

	return &RedisLock{
		client: m.client,
		key:    key,
		value:  value,
	}, nil
}

// TryLockWithRetry 재시도를 통한 락 획득
func (m *RedisLockManager) TryLockWithRetry(
	ctx context.Context,
	key, value string,
	ttl time.Duration,
	maxRetries int,
	retryInterval time.Duration,
) (*RedisLock, error) {
	for i := 0; i < maxRetries; i++ {
		lock, err := m.AcquireLock(ctx, key, value, ttl)
		if err == nil {
			return lock, nil
		}

		if !errors.Is(err, ErrLockNotAcquired) {
			return nil, err
		}

		// 재시도 전 대기
		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryInterval):
			}
		}
	}

	return nil, ErrLockNotAcquired
}

// Release 락 해제
func (l *RedisLock) Release(ctx context.Context) error {
	result, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.value).Int()
	if err != nil {
		return err
	}

	if result == 0 {
		return ErrLockNotHeld
	}

	return nil
}

// MatchLocker 매치 단위 read-derive-write 구간을 Redis 락으로 보호
type MatchLocker struct {
	manager       *RedisLockManager
	ttl           time.Duration
	maxRetries    int
	retryInterval time.Duration
}

// NewMatchLocker MatchLocker 생성
func NewMatchLocker(client *redis.Client, ttl time.Duration) *MatchLocker {
	return &MatchLocker{
		manager:       NewRedisLockManager(client),
		ttl:           ttl,
		maxRetries:    100,
		retryInterval: 20 * time.Millisecond,
	}
}

// Lock 매치 락을 획득하고 해제 함수를 반환
func (l *MatchLocker) Lock(ctx context.Context, matchID int64) (func(), error) {
	key := fmt.Sprintf("lock:match:%d", matchID)
	lock, err := l.manager.TryLockWithRetry(ctx, key, uuid.NewString(), l.ttl, l.maxRetries, l.retryInterval)
	if err != nil {
		return nil, fmt.Errorf("failed to lock match %d: %w", matchID, err)
	}

	return func() {
		// TTL 만료로 이미 풀린 락은 무시
		_ = lock.Release(context.Background())
	}, nil
}
