package service

import (
	"fmt"

	"github.com/livescore/livescore-backend/internal/models"
)

// RequiredWins 승부가 결정되는 프레임 수 (ceil(frameCount/2))
func RequiredWins(frameCount int) int {
	if frameCount <= 0 {
		frameCount = models.DefaultFrameCount
	}
	return (frameCount + 1) / 2
}

// DeriveNextState 현재 매치에 patch를 적용한 다음 상태를 계산한다.
// I/O가 없는 순수 함수이며 감사 필드(lastEditedBy/At, version)는 건드리지 않는다.
func DeriveNextState(current *models.Match, patch models.MatchPatch, role models.Role) (*models.Match, error) {
	if current == nil {
		return nil, ErrMatchNotFound
	}

	adminUnlock := current.IsLocked && patch.IsUnlock() && role == models.RoleAdmin

	// 잠긴 매치는 관리자의 잠금 해제만 허용
	if current.IsLocked && !adminUnlock {
		return nil, fmt.Errorf("%w: match %d", ErrLocked, current.ID)
	}
	if patch.IsLocked != nil && role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: only admins may lock or unlock", ErrUnauthorized)
	}
	if patch.HasScores() && !role.CanScore() {
		return nil, fmt.Errorf("%w: role %q cannot change scores", ErrUnauthorized, role)
	}

	next := current.Clone()

	// 점수와 무관한 속성은 역할 제한 없이 반영
	if patch.FrameCount != nil {
		next.FrameCount = *patch.FrameCount
	}
	if patch.CanDraw != nil {
		next.CanDraw = *patch.CanDraw
	}
	if patch.StartTime != nil {
		t := *patch.StartTime
		next.StartTime = &t
	}
	if patch.TableNumber != nil {
		v := *patch.TableNumber
		next.TableNumber = &v
	}
	if patch.RefereeID != nil {
		v := *patch.RefereeID
		next.RefereeID = &v
	}
	if patch.Notes != nil {
		next.Notes = *patch.Notes
	}
	if patch.IsLocked != nil {
		next.IsLocked = *patch.IsLocked
	}

	if patch.Score1 != nil || current.Score1 != nil || patch.Score2 != nil || current.Score2 != nil {
		s1 := firstInt(patch.Score1, current.Score1)
		s2 := firstInt(patch.Score2, current.Score2)
		next.Score1 = &s1
		next.Score2 = &s2
	}

	next.Status, next.WinnerID = deriveOutcome(next)

	// 상태 후퇴는 관리자의 잠금 해제 + 수정으로만 가능
	if next.Status.Rank() < current.Status.Rank() && !adminUnlock {
		return nil, fmt.Errorf("%w: %s -> %s requires an admin unlock", ErrInvalidTransition, current.Status, next.Status)
	}

	return next, nil
}

// deriveOutcome 점수와 설정으로 상태와 승자를 계산
func deriveOutcome(m *models.Match) (models.MatchStatus, *int64) {
	if m.Score1 == nil && m.Score2 == nil {
		return models.MatchStatusScheduled, nil
	}

	s1, s2 := *m.Score1, *m.Score2
	required := RequiredWins(m.EffectiveFrameCount())

	if s1+s2 < required {
		return models.MatchStatusInProgress, nil
	}

	if s1 == s2 {
		if m.CanDraw {
			return models.MatchStatusCompleted, nil
		}
		// 무승부 불가: 결정 프레임이 필요하므로 진행 중 유지
		return models.MatchStatusInProgress, nil
	}

	winner := m.Player2ID
	if s1 > s2 {
		winner = m.Player1ID
	}
	return models.MatchStatusCompleted, &winner
}

func firstInt(values ...*int) int {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return 0
}
