package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/livescore/livescore-backend/internal/models"
	"github.com/livescore/livescore-backend/pkg/database"
)

// ErrVersionConflict 조건부 쓰기 시점에 버전이 이미 바뀐 경우
var ErrVersionConflict = errors.New("match version conflict")

const matchColumns = `
	id, tournament_id, round, match_number, player1_id, player2_id,
	score1, score2, frame_count, can_draw, status, winner_id, is_locked,
	last_edited_by, last_edited_at, start_time, table_number, referee_id,
	notes, version, created_at`

type MatchRepository struct {
	db *database.DB
}

func NewMatchRepository(db *database.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// Create 새 매치 생성 (라운드 생성 시 외부에서 호출)
func (r *MatchRepository) Create(ctx context.Context, match *models.Match) (*models.Match, error) {
	m := match.Clone()
	if m.Status == "" {
		m.Status = models.MatchStatusScheduled
	}
	if m.FrameCount <= 0 {
		m.FrameCount = models.DefaultFrameCount
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	m.Version = 1

	query := `INSERT INTO matches (` + matchColumns + `)
		VALUES (
			:id, :tournament_id, :round, :match_number, :player1_id, :player2_id,
			:score1, :score2, :frame_count, :can_draw, :status, :winner_id, :is_locked,
			:last_edited_by, :last_edited_at, :start_time, :table_number, :referee_id,
			:notes, :version, :created_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, m); err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}

	return m, nil
}

// FindByID ID로 매치 찾기 (없으면 nil, nil)
func (r *MatchRepository) FindByID(ctx context.Context, id int64) (*models.Match, error) {
	query := r.db.Rebind(`SELECT ` + matchColumns + ` FROM matches WHERE id = ?`)

	match := &models.Match{}
	err := r.db.GetContext(ctx, match, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find match: %w", err)
	}

	return match, nil
}

// FindByTournamentID 토너먼트의 매치 목록 (라운드, 매치 번호 순)
func (r *MatchRepository) FindByTournamentID(ctx context.Context, tournamentID int64) ([]*models.Match, error) {
	query := r.db.Rebind(`SELECT ` + matchColumns + `
		FROM matches
		WHERE tournament_id = ?
		ORDER BY round ASC, match_number ASC`)

	var matches []*models.Match
	if err := r.db.SelectContext(ctx, &matches, query, tournamentID); err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}

	return matches, nil
}

// UpdateIfVersion 읽었던 버전이 그대로일 때만 기록 (lost update 방지)
func (r *MatchRepository) UpdateIfVersion(ctx context.Context, match *models.Match, expectedVersion int64) error {
	query := r.db.Rebind(`
		UPDATE matches
		SET score1 = ?,
		    score2 = ?,
		    frame_count = ?,
		    can_draw = ?,
		    status = ?,
		    winner_id = ?,
		    is_locked = ?,
		    last_edited_by = ?,
		    last_edited_at = ?,
		    start_time = ?,
		    table_number = ?,
		    referee_id = ?,
		    notes = ?,
		    version = version + 1
		WHERE id = ? AND version = ?`)

	result, err := r.db.ExecContext(ctx, query,
		match.Score1,
		match.Score2,
		match.FrameCount,
		match.CanDraw,
		string(match.Status),
		match.WinnerID,
		match.IsLocked,
		match.LastEditedBy,
		match.LastEditedAt,
		match.StartTime,
		match.TableNumber,
		match.RefereeID,
		match.Notes,
		match.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update match: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}

	match.Version = expectedVersion + 1
	return nil
}
