package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/livescore/livescore-backend/internal/models"
	"github.com/livescore/livescore-backend/pkg/ratelimit"
)

var ErrHubClosed = errors.New("hub is shut down")

// ScoreUpdater 소켓 UPDATE_SCORE를 처리할 업데이트 진입점 (service.MatchService가 구현)
type ScoreUpdater interface {
	ApplyUpdate(ctx context.Context, matchID int64, patch models.MatchPatch, actor models.Actor, source models.UpdateSource) (*models.Match, error)
}

// Hub 연결 레지스트리 + 브로드캐스트 디스패처
type Hub struct {
	mu      sync.RWMutex
	clients map[uint64]*Client
	nextID  uint64
	closed  bool

	updater ScoreUpdater
	limiter *ratelimit.RateLimiter

	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

// NewHub Hub 생성
func NewHub(logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients: make(map[uint64]*Client),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
	}
}

// SetScoreUpdater sets the update processor (to avoid circular dependency)
func (h *Hub) SetScoreUpdater(updater ScoreUpdater) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updater = updater
}

// SetRateLimiter 소켓 점수 변경에 적용할 리미터
func (h *Hub) SetRateLimiter(limiter *ratelimit.RateLimiter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.limiter = limiter
}

// Register 클라이언트 등록
func (h *Hub) Register(client *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHubClosed
	}

	h.nextID++
	client.id = h.nextID
	h.clients[client.id] = client

	h.logger.Info("WebSocket client registered",
		zap.Uint64("connId", client.id),
		zap.Int("totalClients", len(h.clients)))
	return nil
}

// Bind IDENTIFY로 받은 사용자 ID를 연결에 연결
func (h *Hub) Bind(client *Client, userID int64) bool {
	h.mu.RLock()
	_, exists := h.clients[client.id]
	h.mu.RUnlock()

	if !exists {
		return false
	}

	client.setUserID(userID)
	h.logger.Debug("WebSocket client identified",
		zap.Uint64("connId", client.id),
		zap.Int64("userId", userID))
	return true
}

// Unregister 클라이언트 해제 (여러 번 호출해도 안전)
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	current, exists := h.clients[client.id]
	if exists && current == client {
		delete(h.clients, client.id)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if !exists || current != client {
		return
	}

	client.closeSend()
	h.logger.Info("WebSocket client unregistered",
		zap.Uint64("connId", client.id),
		zap.Int64("userId", client.UserID()),
		zap.Int("totalClients", total))
}

// Broadcast 이벤트를 한 번만 직렬화해서 모든 연결에 전달.
// 버퍼가 가득 찬 연결은 해제한다 (at-most-once, best-effort).
func (h *Hub) Broadcast(event models.ServerEvent) models.DeliveryReport {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast event",
			zap.String("type", event.EventType()),
			zap.Error(err))
		return models.DeliveryReport{}
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	report := models.DeliveryReport{Attempted: len(targets)}
	for _, client := range targets {
		if client.enqueue(data) {
			report.Delivered++
			continue
		}

		report.Dropped++
		h.logger.Warn("Client send failed, unregistering",
			zap.Uint64("connId", client.id),
			zap.Int64("userId", client.UserID()),
			zap.String("type", event.EventType()),
			zap.Int64("matchId", event.EventMatchID()))
		h.Unregister(client)
	}

	return report
}

// Count 현재 연결 수
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats 전체 연결 수와 IDENTIFY된 연결 수
func (h *Hub) Stats() (total, identified int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		if client.UserID() != 0 {
			identified++
		}
	}
	return len(h.clients), identified
}

// Shutdown 새 등록을 막고 모든 연결을 닫는다
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	h.cancel()
	for _, client := range clients {
		h.Unregister(client)
	}

	h.logger.Info("WebSocket hub shut down", zap.Int("closedClients", len(clients)))
}

func (h *Hub) scoreUpdater() ScoreUpdater {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.updater
}

func (h *Hub) rateLimiter() *ratelimit.RateLimiter {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.limiter
}
