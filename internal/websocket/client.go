package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/livescore/livescore-backend/internal/models"
	"github.com/livescore/livescore-backend/internal/service"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Time allowed for one socket-originated score update
	updateTimeout = 10 * time.Second

	DefaultSendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 관전자는 인증 없이 어디서든 접속
		return true
	},
}

// Client WebSocket 연결 하나 (레지스트리의 ConnectionHandle)
type Client struct {
	id   uint64
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
	userID int64

	// 접속 시 토큰으로 검증된 신원 (없으면 nil)
	verified *models.Actor

	logger *zap.Logger
}

// NewClient 클라이언트 생성
func NewClient(hub *Hub, conn *websocket.Conn, bufferSize int, verified *models.Actor) *Client {
	if bufferSize <= 0 {
		bufferSize = DefaultSendBuffer
	}
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, bufferSize),
		verified: verified,
		logger:   hub.logger,
	}
}

// ID 연결 ID
func (c *Client) ID() uint64 {
	return c.id
}

// UserID IDENTIFY로 바인딩된 사용자 ID (없으면 0)
func (c *Client) UserID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *Client) setUserID(userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
}

// Actor 점수 변경 시 사용할 주체. 토큰 신원과 IDENTIFY가 일치할 때만 토큰 역할을 사용
func (c *Client) Actor() (models.Actor, bool) {
	userID := c.UserID()
	if userID == 0 {
		return models.Actor{}, false
	}
	if c.verified != nil && c.verified.ID == userID {
		return *c.verified, true
	}
	return models.Actor{ID: userID, Role: models.RoleViewer}, true
}

// enqueue 버퍼에 넣기 (블로킹 없음). 닫혔거나 가득 차면 false
func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// sendJSON 이 연결에만 메시지 전송 (거절 응답 등)
func (c *Client) sendJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Uint64("connId", c.id), zap.Error(err))
		return
	}
	if !c.enqueue(data) {
		c.hub.Unregister(c)
	}
}

// readPump 클라이언트 메시지 읽기 (IDENTIFY, UPDATE_SCORE)
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket read error",
					zap.Uint64("connId", c.id),
					zap.Int64("userId", c.UserID()),
					zap.Error(err))
			}
			return
		}

		c.handleMessage(data)
	}
}

func (c *Client) handleMessage(data []byte) {
	var msg models.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendJSON(models.ErrorMessage{Type: models.MessageTypeError, Error: "malformed_message"})
		return
	}

	switch msg.Type {
	case models.MessageTypeIdentify:
		if msg.UserID <= 0 {
			c.sendJSON(models.ErrorMessage{Type: models.MessageTypeError, Error: "invalid_user"})
			return
		}
		c.hub.Bind(c, msg.UserID)

	case models.MessageTypeUpdateScore:
		c.handleUpdateScore(&msg)

	default:
		c.sendJSON(models.ErrorMessage{Type: models.MessageTypeError, Error: "unknown_type"})
	}
}

// handleUpdateScore 단순 스코어보드 경로. REST와 같은 업데이트 진입점을 탄다
func (c *Client) handleUpdateScore(msg *models.ClientMessage) {
	reject := func(code string) {
		c.sendJSON(models.ErrorMessage{Type: models.MessageTypeError, MatchID: msg.MatchID, Error: code})
	}

	actor, ok := c.Actor()
	if !ok {
		reject(service.ErrorCode(service.ErrUnauthorized))
		return
	}

	if limiter := c.hub.rateLimiter(); limiter != nil && !limiter.Allow(fmt.Sprintf("user:%d", actor.ID)) {
		reject("rate_limited")
		return
	}

	updater := c.hub.scoreUpdater()
	if updater == nil {
		reject("unavailable")
		return
	}

	ctx, cancel := context.WithTimeout(c.hub.ctx, updateTimeout)
	defer cancel()

	patch := models.MatchPatch{Score1: msg.Score1, Score2: msg.Score2}
	if _, err := updater.ApplyUpdate(ctx, msg.MatchID, patch, actor, models.SourceSocket); err != nil {
		c.logger.Info("Socket score update rejected",
			zap.Uint64("connId", c.id),
			zap.Int64("userId", actor.ID),
			zap.Int64("matchId", msg.MatchID),
			zap.Error(err))
		reject(service.ErrorCode(err))
	}
}

// writePump Hub로부터 메시지를 받아 클라이언트에게 전송
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub가 채널을 닫음
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("Failed to write message",
					zap.Uint64("connId", c.id),
					zap.Int64("userId", c.UserID()),
					zap.Error(err))
				c.hub.Unregister(c)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.Unregister(c)
				return
			}
		}
	}
}

// ServeWs WebSocket 연결 업그레이드 및 클라이언트 시작
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, bufferSize int, verified *models.Actor) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Warn("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := NewClient(hub, conn, bufferSize, verified)
	if err := hub.Register(client); err != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
