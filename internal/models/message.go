package models

import "time"

// 웹소켓 메시지 타입
const (
	MessageTypeIdentify     = "IDENTIFY"
	MessageTypeUpdateScore  = "UPDATE_SCORE"
	MessageTypeScoreUpdate  = "SCORE_UPDATE"
	MessageTypeScoreUpdated = "SCORE_UPDATED"
	MessageTypeError        = "ERROR"
)

// UpdateSource 변경 요청이 들어온 경로
type UpdateSource int

const (
	SourceREST UpdateSource = iota
	SourceSocket
)

func (s UpdateSource) String() string {
	if s == SourceSocket {
		return "socket"
	}
	return "rest"
}

// ClientMessage 클라이언트 → 서버 메시지 (type으로 구분)
type ClientMessage struct {
	Type    string `json:"type"`
	UserID  int64  `json:"userId,omitempty"`
	MatchID int64  `json:"matchId,omitempty"`
	Score1  *int   `json:"score1,omitempty"`
	Score2  *int   `json:"score2,omitempty"`
}

// ServerEvent 서버 → 전체 브로드캐스트 이벤트
type ServerEvent interface {
	EventType() string
	EventMatchID() int64
}

// ScoreUpdateEvent REST 경로에서 발생한 변경의 브로드캐스트
type ScoreUpdateEvent struct {
	Type        string      `json:"type"`
	MatchID     int64       `json:"matchId"`
	Score1      *int        `json:"score1"`
	Score2      *int        `json:"score2"`
	FrameNumber int         `json:"frameNumber"`
	Status      MatchStatus `json:"status"`
	WinnerID    *int64      `json:"winner"`
	FrameCount  int         `json:"frameCount"`
	CanDraw     bool        `json:"canDraw"`
	IsLocked    bool        `json:"isLocked"`
	StartTime   *time.Time  `json:"startTime,omitempty"`
	TableNumber *int        `json:"tableNumber,omitempty"`
	RefereeID   *int64      `json:"refereeId,omitempty"`
	Notes       string      `json:"notes"`
}

func (e *ScoreUpdateEvent) EventType() string   { return e.Type }
func (e *ScoreUpdateEvent) EventMatchID() int64 { return e.MatchID }

// ScoreUpdatedEvent 웹소켓 경로에서 발생한 변경의 브로드캐스트 (전체 레코드 포함)
type ScoreUpdatedEvent struct {
	Type  string `json:"type"`
	Match *Match `json:"match"`
}

func (e *ScoreUpdatedEvent) EventType() string   { return e.Type }
func (e *ScoreUpdatedEvent) EventMatchID() int64 { return e.Match.ID }

// ErrorMessage 요청한 연결에만 보내는 거절 응답
type ErrorMessage struct {
	Type    string `json:"type"`
	MatchID int64  `json:"matchId,omitempty"`
	Error   string `json:"error"`
}

// NewMatchEvent 변경 경로에 맞는 브로드캐스트 이벤트 생성
func NewMatchEvent(m *Match, source UpdateSource) ServerEvent {
	if source == SourceSocket {
		return &ScoreUpdatedEvent{
			Type:  MessageTypeScoreUpdated,
			Match: m.Clone(),
		}
	}

	return &ScoreUpdateEvent{
		Type:        MessageTypeScoreUpdate,
		MatchID:     m.ID,
		Score1:      cloneInt(m.Score1),
		Score2:      cloneInt(m.Score2),
		FrameNumber: m.FrameNumber(),
		Status:      m.Status,
		WinnerID:    cloneInt64(m.WinnerID),
		FrameCount:  m.EffectiveFrameCount(),
		CanDraw:     m.CanDraw,
		IsLocked:    m.IsLocked,
		StartTime:   cloneTime(m.StartTime),
		TableNumber: cloneInt(m.TableNumber),
		RefereeID:   cloneInt64(m.RefereeID),
		Notes:       m.Notes,
	}
}

// DeliveryReport 한 번의 브로드캐스트 결과
type DeliveryReport struct {
	Attempted int
	Delivered int
	Dropped   int
}
