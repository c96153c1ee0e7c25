package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livescore/livescore-backend/internal/models"
)

func intPtr(v int) *int       { return &v }
func boolPtr(v bool) *bool    { return &v }
func strPtr(v string) *string { return &v }

func newScheduledMatch() *models.Match {
	return &models.Match{
		ID:         1,
		Player1ID:  101,
		Player2ID:  202,
		FrameCount: 5,
		Status:     models.MatchStatusScheduled,
		Version:    1,
	}
}

func TestRequiredWins(t *testing.T) {
	tests := []struct {
		frameCount int
		expected   int
	}{
		{frameCount: 1, expected: 1},
		{frameCount: 3, expected: 2},
		{frameCount: 4, expected: 2},
		{frameCount: 5, expected: 3},
		{frameCount: 7, expected: 4},
		{frameCount: 0, expected: 3}, // 기본값 5
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, RequiredWins(tt.frameCount), "frameCount=%d", tt.frameCount)
	}
}

func TestDeriveNextState_Scenarios(t *testing.T) {
	tests := []struct {
		name           string
		frameCount     int
		canDraw        bool
		score1, score2 int
		expectedStatus models.MatchStatus
		expectedWinner *int64
	}{
		{
			name:       "best of five decided",
			frameCount: 5, score1: 3, score2: 1,
			expectedStatus: models.MatchStatusCompleted,
			expectedWinner: int64Ptr(101),
		},
		{
			name:       "player two wins",
			frameCount: 5, score1: 0, score2: 3,
			expectedStatus: models.MatchStatusCompleted,
			expectedWinner: int64Ptr(202),
		},
		{
			name:       "draw allowed at threshold",
			frameCount: 4, canDraw: true, score1: 2, score2: 2,
			expectedStatus: models.MatchStatusCompleted,
		},
		{
			name:       "tie without draws needs decider",
			frameCount: 5, score1: 2, score2: 2,
			expectedStatus: models.MatchStatusInProgress,
		},
		{
			name:       "below threshold",
			frameCount: 5, score1: 1, score2: 1,
			expectedStatus: models.MatchStatusInProgress,
		},
		{
			name:       "zero zero started",
			frameCount: 5, score1: 0, score2: 0,
			expectedStatus: models.MatchStatusInProgress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current := newScheduledMatch()
			current.FrameCount = tt.frameCount
			current.CanDraw = tt.canDraw

			next, err := DeriveNextState(current, models.MatchPatch{
				Score1: intPtr(tt.score1),
				Score2: intPtr(tt.score2),
			}, models.RoleReferee)
			require.NoError(t, err)

			assert.Equal(t, tt.expectedStatus, next.Status)
			assert.Equal(t, tt.expectedWinner, next.WinnerID)
		})
	}
}

func TestDeriveNextState_PlayerCannotScore(t *testing.T) {
	current := newScheduledMatch()

	next, err := DeriveNextState(current, models.MatchPatch{Score1: intPtr(1)}, models.RolePlayer)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Nil(t, next)
	assert.Nil(t, current.Score1, "current must not be mutated")
}

func TestDeriveNextState_AttributesNotGatedByRole(t *testing.T) {
	current := newScheduledMatch()

	next, err := DeriveNextState(current, models.MatchPatch{
		TableNumber: intPtr(4),
		Notes:       strPtr("moved to table 4"),
	}, models.RolePlayer)
	require.NoError(t, err)

	assert.Equal(t, 4, *next.TableNumber)
	assert.Equal(t, "moved to table 4", next.Notes)
	assert.Equal(t, models.MatchStatusScheduled, next.Status)
	assert.Nil(t, next.Score1)
	assert.Nil(t, next.Score2)
}

func TestDeriveNextState_PartialScoreFillsOtherSide(t *testing.T) {
	current := newScheduledMatch()

	next, err := DeriveNextState(current, models.MatchPatch{Score1: intPtr(1)}, models.RoleReferee)
	require.NoError(t, err)

	require.NotNil(t, next.Score1)
	require.NotNil(t, next.Score2)
	assert.Equal(t, 1, *next.Score1)
	assert.Equal(t, 0, *next.Score2)
	assert.Equal(t, models.MatchStatusInProgress, next.Status)
}

func TestDeriveNextState_FrameCountFromPatch(t *testing.T) {
	current := newScheduledMatch()
	current.Score1 = intPtr(2)
	current.Score2 = intPtr(0)
	current.Status = models.MatchStatusInProgress

	// 3프레임 매치로 바꾸면 2승으로 결정
	next, err := DeriveNextState(current, models.MatchPatch{FrameCount: intPtr(3)}, models.RoleReferee)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusCompleted, next.Status)
	assert.Equal(t, int64(101), *next.WinnerID)
}

func TestDeriveNextState_Locked(t *testing.T) {
	current := newScheduledMatch()
	current.IsLocked = true

	tests := []struct {
		name  string
		patch models.MatchPatch
		role  models.Role
	}{
		{name: "referee score", patch: models.MatchPatch{Score1: intPtr(1)}, role: models.RoleReferee},
		{name: "admin score without unlock", patch: models.MatchPatch{Score1: intPtr(1)}, role: models.RoleAdmin},
		{name: "player notes", patch: models.MatchPatch{Notes: strPtr("x")}, role: models.RolePlayer},
		{name: "referee unlock", patch: models.MatchPatch{IsLocked: boolPtr(false)}, role: models.RoleReferee},
		{name: "admin relock", patch: models.MatchPatch{IsLocked: boolPtr(true)}, role: models.RoleAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DeriveNextState(current, tt.patch, tt.role)
			assert.ErrorIs(t, err, ErrLocked)
		})
	}
}

func TestDeriveNextState_AdminUnlockWithEdit(t *testing.T) {
	current := newScheduledMatch()
	current.Score1 = intPtr(3)
	current.Score2 = intPtr(0)
	current.Status = models.MatchStatusCompleted
	current.WinnerID = int64Ptr(101)
	current.IsLocked = true

	next, err := DeriveNextState(current, models.MatchPatch{
		IsLocked: boolPtr(false),
		Score1:   intPtr(2),
	}, models.RoleAdmin)
	require.NoError(t, err)

	assert.False(t, next.IsLocked)
	assert.Equal(t, models.MatchStatusInProgress, next.Status)
	assert.Nil(t, next.WinnerID)
}

func TestDeriveNextState_OnlyAdminLocks(t *testing.T) {
	current := newScheduledMatch()

	_, err := DeriveNextState(current, models.MatchPatch{IsLocked: boolPtr(true)}, models.RoleReferee)
	assert.ErrorIs(t, err, ErrUnauthorized)

	next, err := DeriveNextState(current, models.MatchPatch{IsLocked: boolPtr(true)}, models.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, next.IsLocked)
}

func TestDeriveNextState_NoRegressionWithoutUnlock(t *testing.T) {
	current := newScheduledMatch()
	current.Score1 = intPtr(3)
	current.Score2 = intPtr(1)
	current.Status = models.MatchStatusCompleted
	current.WinnerID = int64Ptr(101)

	tests := []struct {
		name  string
		patch models.MatchPatch
		role  models.Role
	}{
		{name: "referee longer match", patch: models.MatchPatch{FrameCount: intPtr(9)}, role: models.RoleReferee},
		{name: "referee lowered scores", patch: models.MatchPatch{Score1: intPtr(1), Score2: intPtr(1)}, role: models.RoleReferee},
		{name: "admin longer match", patch: models.MatchPatch{FrameCount: intPtr(9)}, role: models.RoleAdmin},
		{name: "admin lowered scores", patch: models.MatchPatch{Score1: intPtr(1), Score2: intPtr(1)}, role: models.RoleAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DeriveNextState(current, tt.patch, tt.role)
			assert.ErrorIs(t, err, ErrInvalidTransition)
		})
	}

	// 완료 상태를 유지하는 정정은 허용
	next, err := DeriveNextState(current, models.MatchPatch{Score1: intPtr(2)}, models.RoleReferee)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusCompleted, next.Status)
	assert.Equal(t, int64(101), *next.WinnerID)
}

func TestDeriveNextState_AdminUnlockAllowsRegression(t *testing.T) {
	current := newScheduledMatch()
	current.Score1 = intPtr(3)
	current.Score2 = intPtr(1)
	current.Status = models.MatchStatusCompleted
	current.WinnerID = int64Ptr(101)
	current.IsLocked = true

	next, err := DeriveNextState(current, models.MatchPatch{
		IsLocked:   boolPtr(false),
		FrameCount: intPtr(9),
	}, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusInProgress, next.Status)
	assert.Nil(t, next.WinnerID)

	// 잠기지 않은 매치에 isLocked=false만 붙인 요청은 해제가 아님
	current.IsLocked = false
	_, err = DeriveNextState(current, models.MatchPatch{
		IsLocked:   boolPtr(false),
		FrameCount: intPtr(9),
	}, models.RoleAdmin)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

// 모든 조합에 대해 완료/승자 규칙 확인
func TestDeriveNextState_Properties(t *testing.T) {
	for _, frameCount := range []int{1, 3, 4, 5, 7, 9} {
		for _, canDraw := range []bool{false, true} {
			for s1 := 0; s1 <= 6; s1++ {
				for s2 := 0; s2 <= 6; s2++ {
					current := newScheduledMatch()
					current.FrameCount = frameCount
					current.CanDraw = canDraw

					next, err := DeriveNextState(current, models.MatchPatch{
						Score1: intPtr(s1),
						Score2: intPtr(s2),
					}, models.RoleAdmin)
					require.NoError(t, err)

					if s1+s2 < RequiredWins(frameCount) {
						assert.NotEqual(t, models.MatchStatusCompleted, next.Status)
					}
					if next.Status != models.MatchStatusCompleted {
						assert.Nil(t, next.WinnerID)
						continue
					}
					switch {
					case s1 > s2:
						require.NotNil(t, next.WinnerID)
						assert.Equal(t, int64(101), *next.WinnerID)
					case s2 > s1:
						require.NotNil(t, next.WinnerID)
						assert.Equal(t, int64(202), *next.WinnerID)
					default:
						assert.True(t, canDraw, "equal scores complete only when draws are allowed")
						assert.Nil(t, next.WinnerID)
					}
				}
			}
		}
	}
}

func int64Ptr(v int64) *int64 { return &v }
