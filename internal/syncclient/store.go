package syncclient

import (
	"sync"
	"time"

	"github.com/livescore/livescore-backend/internal/models"
)

// MatchView 에이전트가 표시 중인 매치 상태
type MatchView struct {
	MatchID     int64              `json:"matchId"`
	Score1      *int               `json:"score1"`
	Score2      *int               `json:"score2"`
	FrameNumber int                `json:"frameNumber"`
	Status      models.MatchStatus `json:"status"`
	WinnerID    *int64             `json:"winner"`
	IsLocked    bool               `json:"isLocked"`

	// Optimistic 서버 확인 전의 로컬 값
	Optimistic bool      `json:"optimistic"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func viewFromMatch(m *models.Match) MatchView {
	return MatchView{
		MatchID:     m.ID,
		Score1:      copyInt(m.Score1),
		Score2:      copyInt(m.Score2),
		FrameNumber: m.FrameNumber(),
		Status:      m.Status,
		WinnerID:    copyInt64(m.WinnerID),
		IsLocked:    m.IsLocked,
	}
}

func viewFromEvent(e *models.ScoreUpdateEvent) MatchView {
	return MatchView{
		MatchID:     e.MatchID,
		Score1:      copyInt(e.Score1),
		Score2:      copyInt(e.Score2),
		FrameNumber: e.FrameNumber,
		Status:      e.Status,
		WinnerID:    copyInt64(e.WinnerID),
		IsLocked:    e.IsLocked,
	}
}

// store 매치별 최신 값. 서버 값은 항상 덮어쓴다 (last-write-wins)
type store struct {
	mu    sync.RWMutex
	views map[int64]MatchView
	now   func() time.Time
}

func newStore() *store {
	return &store{
		views: make(map[int64]MatchView),
		now:   time.Now,
	}
}

func (s *store) applyAuthoritative(v MatchView) MatchView {
	s.mu.Lock()
	defer s.mu.Unlock()

	v.Optimistic = false
	v.UpdatedAt = s.now()
	s.views[v.MatchID] = v
	return v
}

func (s *store) applyOptimistic(matchID int64, score1, score2 int) MatchView {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.views[matchID]
	v.MatchID = matchID
	v.Score1 = &score1
	v.Score2 = &score2
	v.FrameNumber = score1 + score2 + 1
	v.Optimistic = true
	v.UpdatedAt = s.now()
	s.views[matchID] = v
	return v
}

func (s *store) get(matchID int64) (MatchView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.views[matchID]
	return v, ok
}

func (s *store) remove(matchID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.views, matchID)
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
