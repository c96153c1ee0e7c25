package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/livescore/livescore-backend/internal/models"
	"github.com/livescore/livescore-backend/internal/repository"
	"github.com/livescore/livescore-backend/pkg/logger"
)

const (
	MaxRetryCount = 3 // 버전 충돌 시 최대 재시도 횟수
)

// MatchStore 매치 영속 계층 (repository.MatchRepository가 구현)
type MatchStore interface {
	Create(ctx context.Context, match *models.Match) (*models.Match, error)
	FindByID(ctx context.Context, id int64) (*models.Match, error)
	FindByTournamentID(ctx context.Context, tournamentID int64) ([]*models.Match, error)
	UpdateIfVersion(ctx context.Context, match *models.Match, expectedVersion int64) error
}

// EventBroadcaster 변경 이벤트를 모든 연결에 전달 (websocket.Hub가 구현)
type EventBroadcaster interface {
	Broadcast(event models.ServerEvent) models.DeliveryReport
}

// MatchService 점수 변경의 단일 진입점
type MatchService struct {
	matchRepo   MatchStore
	locker      MatchLocker
	broadcaster EventBroadcaster
	maxRetries  int
	now         func() time.Time
}

func NewMatchService(
	matchRepo MatchStore,
	locker MatchLocker,
	broadcaster EventBroadcaster,
	maxRetries int,
) *MatchService {
	if maxRetries < 1 {
		maxRetries = MaxRetryCount
	}
	if locker == nil {
		locker = NewLocalMatchLocker()
	}
	return &MatchService{
		matchRepo:   matchRepo,
		locker:      locker,
		broadcaster: broadcaster,
		maxRetries:  maxRetries,
		now:         time.Now,
	}
}

// ApplyUpdate 검증 → 상태 계산 → 조건부 저장 → 브로드캐스트.
// 성공 시 저장 1회, 브로드캐스트 1회. 거절 시 둘 다 없음.
func (s *MatchService) ApplyUpdate(
	ctx context.Context,
	matchID int64,
	patch models.MatchPatch,
	actor models.Actor,
	source models.UpdateSource,
) (*models.Match, error) {
	if matchID <= 0 {
		return nil, fmt.Errorf("%w: invalid match id %d", ErrInvalidTransition, matchID)
	}
	if err := patch.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}

	unlock, err := s.locker.Lock(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock match: %w", err)
	}
	defer unlock()

	updated, err := s.writeWithRetry(ctx, matchID, patch, actor)
	if err != nil {
		return nil, err
	}

	report := s.broadcaster.Broadcast(models.NewMatchEvent(updated, source))

	logger.Info("Match updated",
		"matchId", updated.ID,
		"actorId", actor.ID,
		"role", actor.Role,
		"source", source.String(),
		"status", updated.Status,
		"version", updated.Version,
		"delivered", report.Delivered,
		"dropped", report.Dropped,
	)

	return updated, nil
}

// writeWithRetry 버전 충돌이 나면 다시 읽어서 계산 (최대 maxRetries회)
func (s *MatchService) writeWithRetry(
	ctx context.Context,
	matchID int64,
	patch models.MatchPatch,
	actor models.Actor,
) (*models.Match, error) {
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		current, err := s.matchRepo.FindByID(ctx, matchID)
		if err != nil {
			return nil, fmt.Errorf("failed to get match: %w", err)
		}
		if current == nil {
			return nil, ErrMatchNotFound
		}

		next, err := DeriveNextState(current, patch, actor.Role)
		if err != nil {
			logger.Info("Match update rejected",
				"matchId", matchID,
				"actorId", actor.ID,
				"role", actor.Role,
				"reason", err.Error(),
			)
			return nil, err
		}

		editedAt := s.now().UTC()
		editedBy := actor.ID
		next.LastEditedBy = &editedBy
		next.LastEditedAt = &editedAt

		err = s.matchRepo.UpdateIfVersion(ctx, next, current.Version)
		if errors.Is(err, repository.ErrVersionConflict) {
			logger.Warn("Match version conflict, retrying",
				"matchId", matchID,
				"attempt", attempt,
				"version", current.Version,
			)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to persist match: %w", err)
		}

		return next, nil
	}

	return nil, fmt.Errorf("%w: match %d after %d attempts", ErrPersistenceConflict, matchID, s.maxRetries)
}

// SetLocked 관리자 잠금/해제 단축 경로
func (s *MatchService) SetLocked(ctx context.Context, matchID int64, locked bool, actor models.Actor) (*models.Match, error) {
	return s.ApplyUpdate(ctx, matchID, models.MatchPatch{IsLocked: &locked}, actor, models.SourceREST)
}

// GetByID 매치 조회 (재동기화용 읽기 경로)
func (s *MatchService) GetByID(ctx context.Context, id int64) (*models.Match, error) {
	match, err := s.matchRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	if match == nil {
		return nil, ErrMatchNotFound
	}

	return match, nil
}

// ListByTournament 토너먼트의 매치 목록
func (s *MatchService) ListByTournament(ctx context.Context, tournamentID int64) ([]*models.Match, error) {
	matches, err := s.matchRepo.FindByTournamentID(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	if matches == nil {
		return []*models.Match{}, nil
	}

	return matches, nil
}

// CreateMatch 라운드 생성기가 만든 매치 등록 (점수 없음, scheduled)
func (s *MatchService) CreateMatch(ctx context.Context, match *models.Match, actor models.Actor) (*models.Match, error) {
	if actor.Role != models.RoleAdmin {
		return nil, ErrUnauthorized
	}
	if match.ID <= 0 || match.TournamentID <= 0 {
		return nil, fmt.Errorf("%w: id and tournamentId are required", ErrInvalidInput)
	}
	if match.FrameCount < 0 {
		return nil, fmt.Errorf("%w: frameCount must be positive", ErrInvalidInput)
	}

	existing, err := s.matchRepo.FindByID(ctx, match.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check match: %w", err)
	}
	if existing != nil {
		return nil, ErrMatchAlreadyExists
	}

	seed := match.Clone()
	seed.Score1, seed.Score2, seed.WinnerID = nil, nil, nil
	seed.Status = models.MatchStatusScheduled
	seed.IsLocked = false

	created, err := s.matchRepo.Create(ctx, seed)
	if err != nil {
		return nil, err
	}

	logger.Info("Match created",
		"matchId", created.ID,
		"tournamentId", created.TournamentID,
		"round", created.Round,
		"matchNumber", created.MatchNumber,
	)

	return created, nil
}
