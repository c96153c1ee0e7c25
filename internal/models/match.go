package models

import (
	"errors"
	"math"
	"time"
)

type MatchStatus string

const (
	MatchStatusScheduled  MatchStatus = "scheduled"
	MatchStatusInProgress MatchStatus = "in_progress"
	MatchStatusCompleted  MatchStatus = "completed"
)

// DefaultFrameCount 프레임 수가 지정되지 않은 매치의 기본값
const DefaultFrameCount = 5

// MaxFieldValue 점수, 프레임 수, 테이블 번호의 상한 (INTEGER 컬럼 범위)
const MaxFieldValue = math.MaxInt32

// Rank 상태 진행 순서 (scheduled < in_progress < completed)
func (s MatchStatus) Rank() int {
	switch s {
	case MatchStatusInProgress:
		return 1
	case MatchStatusCompleted:
		return 2
	default:
		return 0
	}
}

// Match 점수 동기화의 기준이 되는 매치 레코드
type Match struct {
	ID           int64       `json:"id" db:"id"`
	TournamentID int64       `json:"tournamentId" db:"tournament_id"`
	Round        int         `json:"round" db:"round"`
	MatchNumber  int         `json:"matchNumber" db:"match_number"`
	Player1ID    int64       `json:"player1Id" db:"player1_id"`
	Player2ID    int64       `json:"player2Id" db:"player2_id"`
	Score1       *int        `json:"score1" db:"score1"`
	Score2       *int        `json:"score2" db:"score2"`
	FrameCount   int         `json:"frameCount" db:"frame_count"`
	CanDraw      bool        `json:"canDraw" db:"can_draw"`
	Status       MatchStatus `json:"status" db:"status"`
	WinnerID     *int64      `json:"winnerId" db:"winner_id"`
	IsLocked     bool        `json:"isLocked" db:"is_locked"`
	LastEditedBy *int64      `json:"lastEditedBy,omitempty" db:"last_edited_by"`
	LastEditedAt *time.Time  `json:"lastEditedAt,omitempty" db:"last_edited_at"`
	StartTime    *time.Time  `json:"startTime,omitempty" db:"start_time"`
	TableNumber  *int        `json:"tableNumber,omitempty" db:"table_number"`
	RefereeID    *int64      `json:"refereeId,omitempty" db:"referee_id"`
	Notes        string      `json:"notes" db:"notes"`
	Version      int64       `json:"version" db:"version"`
	CreatedAt    time.Time   `json:"createdAt" db:"created_at"`
}

// EffectiveFrameCount 저장된 값이 없으면 기본 프레임 수
func (m *Match) EffectiveFrameCount() int {
	if m.FrameCount <= 0 {
		return DefaultFrameCount
	}
	return m.FrameCount
}

// FrameNumber 현재 진행 중인 프레임 번호 (점수 합 + 1)
func (m *Match) FrameNumber() int {
	return intOrZero(m.Score1) + intOrZero(m.Score2) + 1
}

// Clone 포인터 필드까지 복사
func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	c := *m
	c.Score1 = cloneInt(m.Score1)
	c.Score2 = cloneInt(m.Score2)
	c.TableNumber = cloneInt(m.TableNumber)
	c.WinnerID = cloneInt64(m.WinnerID)
	c.LastEditedBy = cloneInt64(m.LastEditedBy)
	c.RefereeID = cloneInt64(m.RefereeID)
	c.LastEditedAt = cloneTime(m.LastEditedAt)
	c.StartTime = cloneTime(m.StartTime)
	return &c
}

// MatchPatch 부분 업데이트 (nil 필드는 변경하지 않음)
type MatchPatch struct {
	Score1      *int       `json:"score1,omitempty"`
	Score2      *int       `json:"score2,omitempty"`
	FrameCount  *int       `json:"frameCount,omitempty"`
	CanDraw     *bool      `json:"canDraw,omitempty"`
	StartTime   *time.Time `json:"startTime,omitempty"`
	TableNumber *int       `json:"tableNumber,omitempty"`
	RefereeID   *int64     `json:"refereeId,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
	IsLocked    *bool      `json:"isLocked,omitempty"`
}

// HasScores 점수 변경이 포함되어 있는지
func (p MatchPatch) HasScores() bool {
	return p.Score1 != nil || p.Score2 != nil
}

// IsUnlock 잠금 해제 요청인지
func (p MatchPatch) IsUnlock() bool {
	return p.IsLocked != nil && !*p.IsLocked
}

// IsEmpty 변경 사항이 하나도 없는지
func (p MatchPatch) IsEmpty() bool {
	return p == MatchPatch{}
}

// Validate 상태 머신에 넘기기 전 형식 검증
func (p MatchPatch) Validate() error {
	if p.IsEmpty() {
		return errors.New("patch has no changes")
	}
	if p.Score1 != nil && *p.Score1 < 0 {
		return errors.New("score1 must not be negative")
	}
	if p.Score2 != nil && *p.Score2 < 0 {
		return errors.New("score2 must not be negative")
	}
	if p.FrameCount != nil && *p.FrameCount < 1 {
		return errors.New("frameCount must be positive")
	}
	if p.TableNumber != nil && *p.TableNumber < 0 {
		return errors.New("tableNumber must not be negative")
	}
	if exceedsMax(p.Score1) || exceedsMax(p.Score2) || exceedsMax(p.FrameCount) || exceedsMax(p.TableNumber) {
		return errors.New("value exceeds maximum")
	}
	return nil
}

func exceedsMax(v *int) bool {
	return v != nil && *v > MaxFieldValue
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
