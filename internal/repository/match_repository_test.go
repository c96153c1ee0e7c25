package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livescore/livescore-backend/internal/models"
	"github.com/livescore/livescore-backend/pkg/database"
)

// setupTestDB in-memory SQLite에 마이그레이션 적용
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Connect(database.DriverSQLite, "file::memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")
	require.NoError(t, db.Migrate(), "Failed to apply migrations")

	t.Cleanup(func() { db.Close() })
	return db
}

func intPtr(v int) *int { return &v }

func TestMatchRepository_CreateAndFind(t *testing.T) {
	repo := NewMatchRepository(setupTestDB(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, &models.Match{
		ID:           1,
		TournamentID: 10,
		Round:        1,
		MatchNumber:  1,
		Player1ID:    101,
		Player2ID:    102,
	})
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusScheduled, created.Status)
	assert.Equal(t, models.DefaultFrameCount, created.FrameCount)
	assert.Equal(t, int64(1), created.Version)

	found, err := repo.FindByID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, int64(101), found.Player1ID)
	assert.Nil(t, found.Score1)
	assert.Nil(t, found.Score2)
	assert.Nil(t, found.WinnerID)
	assert.False(t, found.IsLocked)
}

func TestMatchRepository_FindByIDMissing(t *testing.T) {
	repo := NewMatchRepository(setupTestDB(t))

	found, err := repo.FindByID(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestMatchRepository_UpdateIfVersion(t *testing.T) {
	repo := NewMatchRepository(setupTestDB(t))
	ctx := context.Background()

	_, err := repo.Create(ctx, &models.Match{ID: 2, TournamentID: 10, Player1ID: 1, Player2ID: 2})
	require.NoError(t, err)

	current, err := repo.FindByID(ctx, 2)
	require.NoError(t, err)

	next := current.Clone()
	next.Score1 = intPtr(1)
	next.Score2 = intPtr(0)
	next.Status = models.MatchStatusInProgress
	require.NoError(t, repo.UpdateIfVersion(ctx, next, current.Version))
	assert.Equal(t, int64(2), next.Version)

	// 이전 버전으로 다시 쓰면 충돌
	stale := current.Clone()
	stale.Score1 = intPtr(0)
	stale.Score2 = intPtr(1)
	err = repo.UpdateIfVersion(ctx, stale, current.Version)
	assert.ErrorIs(t, err, ErrVersionConflict)

	stored, err := repo.FindByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, *stored.Score1)
	assert.Equal(t, 0, *stored.Score2)
	assert.Equal(t, models.MatchStatusInProgress, stored.Status)
	assert.Equal(t, int64(2), stored.Version)
}

func TestMatchRepository_FindByTournamentID(t *testing.T) {
	repo := NewMatchRepository(setupTestDB(t))
	ctx := context.Background()

	for _, m := range []*models.Match{
		{ID: 3, TournamentID: 20, Round: 2, MatchNumber: 1},
		{ID: 4, TournamentID: 20, Round: 1, MatchNumber: 2},
		{ID: 5, TournamentID: 20, Round: 1, MatchNumber: 1},
		{ID: 6, TournamentID: 21, Round: 1, MatchNumber: 1},
	} {
		_, err := repo.Create(ctx, m)
		require.NoError(t, err)
	}

	matches, err := repo.FindByTournamentID(ctx, 20)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, []int64{5, 4, 3}, []int64{matches[0].ID, matches[1].ID, matches[2].ID})
}
