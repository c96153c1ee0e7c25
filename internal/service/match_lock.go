package service

import (
	"context"
	"sync"
)

// MatchLocker 같은 매치에 대한 read-derive-write 구간을 직렬화
type MatchLocker interface {
	Lock(ctx context.Context, matchID int64) (unlock func(), err error)
}

// LocalMatchLocker 프로세스 내 매치별 락 (기본 구현)
type LocalMatchLocker struct {
	mu    sync.Mutex
	locks map[int64]*matchLock
}

type matchLock struct {
	sem  chan struct{}
	refs int
}

// NewLocalMatchLocker LocalMatchLocker 생성
func NewLocalMatchLocker() *LocalMatchLocker {
	return &LocalMatchLocker{
		locks: make(map[int64]*matchLock),
	}
}

// Lock 매치 락 획득 (ctx 취소 시 대기 중단)
func (l *LocalMatchLocker) Lock(ctx context.Context, matchID int64) (func(), error) {
	l.mu.Lock()
	ml, ok := l.locks[matchID]
	if !ok {
		ml = &matchLock{sem: make(chan struct{}, 1)}
		l.locks[matchID] = ml
	}
	ml.refs++
	l.mu.Unlock()

	select {
	case ml.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(matchID, ml)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-ml.sem
			l.release(matchID, ml)
		})
	}, nil
}

func (l *LocalMatchLocker) release(matchID int64, ml *matchLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ml.refs--
	if ml.refs == 0 {
		delete(l.locks, matchID)
	}
}

// Held 현재 추적 중인 매치 락 수
func (l *LocalMatchLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
