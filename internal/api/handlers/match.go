package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/livescore/livescore-backend/internal/api/middleware"
	"github.com/livescore/livescore-backend/internal/models"
	"github.com/livescore/livescore-backend/internal/service"
	"github.com/livescore/livescore-backend/pkg/logger"
)

type MatchHandler struct {
	matchService *service.MatchService
}

func NewMatchHandler(matchService *service.MatchService) *MatchHandler {
	return &MatchHandler{
		matchService: matchService,
	}
}

// GetMatch 특정 매치 조회 (클라이언트 재동기화 경로)
func (h *MatchHandler) GetMatch(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	match, err := h.matchService.GetByID(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"match": match,
	})
}

// ListTournamentMatches 토너먼트의 매치 목록
func (h *MatchHandler) ListTournamentMatches(c *gin.Context) {
	tournamentID, ok := parseID(c, "id")
	if !ok {
		return
	}

	matches, err := h.matchService.ListByTournament(c.Request.Context(), tournamentID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"matches": matches,
		"total":   len(matches),
	})
}

// UpdateMatch 점수/속성 변경 (REST 경로, SCORE_UPDATE 브로드캐스트)
func (h *MatchHandler) UpdateMatch(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var patch models.MatchPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User not authenticated",
		})
		return
	}

	match, err := h.matchService.ApplyUpdate(c.Request.Context(), id, patch, actor, models.SourceREST)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"match": match,
	})
}

// LockMatch 관리자 잠금
func (h *MatchHandler) LockMatch(c *gin.Context) {
	h.setLocked(c, true)
}

// UnlockMatch 관리자 잠금 해제
func (h *MatchHandler) UnlockMatch(c *gin.Context) {
	h.setLocked(c, false)
}

func (h *MatchHandler) setLocked(c *gin.Context, locked bool) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User not authenticated",
		})
		return
	}

	match, err := h.matchService.SetLocked(c.Request.Context(), id, locked, actor)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"match": match,
	})
}

// CreateMatch 대진 생성 결과 등록 (관리자 전용)
func (h *MatchHandler) CreateMatch(c *gin.Context) {
	var req models.Match
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User not authenticated",
		})
		return
	}

	match, err := h.matchService.CreateMatch(c.Request.Context(), &req, actor)
	if err != nil {
		if errors.Is(err, service.ErrMatchAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{
				"error": "Match already exists",
			})
			return
		}
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Match created successfully",
		"match":   match,
	})
}

func parseID(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid " + param,
		})
		return 0, false
	}
	return id, true
}

// writeServiceError 서비스 에러를 HTTP 상태로 변환
func writeServiceError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrLocked):
		status = http.StatusLocked
	case errors.Is(err, service.ErrMatchNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrPersistenceConflict):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		logger.Error("Match request failed", "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{
			"error": service.ErrorCode(err),
		})
		return
	}

	c.JSON(status, gin.H{
		"error":   service.ErrorCode(err),
		"message": err.Error(),
	})
}
