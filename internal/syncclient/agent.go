package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/livescore/livescore-backend/internal/models"
)

const (
	// DefaultReconnectDelay 끊긴 뒤 재접속까지 고정 대기 시간
	DefaultReconnectDelay = 5 * time.Second

	writeWait   = 10 * time.Second
	readTimeout = 90 * time.Second
	httpTimeout = 10 * time.Second
	eventBuffer = 64
)

var (
	ErrAlreadyStarted = errors.New("agent already started")
	ErrNotConnected   = errors.New("agent is not connected")

	errMatchGone = errors.New("match not found on server")
)

// Config 에이전트 설정
type Config struct {
	// ServerURL 예: http://localhost:8080
	ServerURL string
	// UserID 0이면 IDENTIFY를 보내지 않음
	UserID int64
	// Token 있으면 ?token=과 Authorization 헤더에 사용
	Token string

	ReconnectDelay time.Duration
	HTTPClient     *http.Client
	Dialer         *websocket.Dialer
	Logger         *zap.Logger
}

type event struct {
	kind    EventKind
	gen     uint64
	data    []byte
	matchID int64
	err     error
}

// Agent 클라이언트 동기화 에이전트.
// 모든 전이와 작업은 run 고루틴 하나에서 처리된다.
type Agent struct {
	cfg     Config
	id      string
	baseURL string
	wsURL   string
	store   *store
	logger  *zap.Logger

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	watched  map[int64]bool
	onUpdate func(MatchView)
	started  bool

	writeMu sync.Mutex

	// run 고루틴 전용
	gen   uint64
	timer *time.Timer

	dials      atomic.Int32
	reconnects atomic.Int32

	events chan event
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New 에이전트 생성 (접속은 Start에서)
func New(cfg Config) (*Agent, error) {
	base, err := url.Parse(strings.TrimRight(cfg.ServerURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url scheme %q", base.Scheme)
	}

	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: httpTimeout}
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	ws := *base
	ws.Scheme = "ws"
	if base.Scheme == "https" {
		ws.Scheme = "wss"
	}
	ws.Path = base.Path + "/api/v1/ws"
	if cfg.Token != "" {
		ws.RawQuery = url.Values{"token": {cfg.Token}}.Encode()
	}

	id := uuid.NewString()
	return &Agent{
		cfg:     cfg,
		id:      id,
		baseURL: base.String(),
		wsURL:   ws.String(),
		store:   newStore(),
		logger:  cfg.Logger.With(zap.String("agentId", id)),
		state:   StateDisconnected,
		watched: make(map[int64]bool),
		events:  make(chan event, eventBuffer),
		done:    make(chan struct{}),
	}, nil
}

// ID 에이전트 인스턴스 ID
func (a *Agent) ID() string {
	return a.id
}

// Start 이벤트 루프를 시작하고 첫 접속 시도
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return ErrAlreadyStarted
	}
	a.started = true
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.mu.Unlock()

	go a.run()
	a.post(event{kind: EventStart})
	return nil
}

// Stop 재접속 타이머와 연결을 정리하고 루프 종료를 기다린다
func (a *Agent) Stop() {
	a.mu.Lock()
	started := a.started
	a.mu.Unlock()

	if !started {
		return
	}
	a.cancel()
	<-a.done
}

// State 현재 연결 상태
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// OnUpdate 매치 값이 바뀔 때마다 호출할 콜백 (run 고루틴에서 호출됨)
func (a *Agent) OnUpdate(fn func(MatchView)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onUpdate = fn
}

// Watch 표시할 매치 추가. 접속 중이면 즉시 조회 경로로 가져온다
func (a *Agent) Watch(matchID int64) {
	a.mu.Lock()
	a.watched[matchID] = true
	started := a.started
	a.mu.Unlock()

	if started {
		a.post(event{kind: EventWatch, matchID: matchID})
	}
}

// Unwatch 표시 중인 매치 제거
func (a *Agent) Unwatch(matchID int64) {
	a.mu.Lock()
	delete(a.watched, matchID)
	a.mu.Unlock()

	a.store.remove(matchID)
}

// Snapshot 매치의 현재 로컬 값
func (a *Agent) Snapshot(matchID int64) (MatchView, bool) {
	return a.store.get(matchID)
}

// ApplyOptimistic 서버 확인 전 로컬 점수 표시. 다음 서버 값이 오면 버려진다
func (a *Agent) ApplyOptimistic(matchID int64, score1, score2 int) MatchView {
	v := a.store.applyOptimistic(matchID, score1, score2)
	a.notify(v)
	return v
}

// SubmitScore UPDATE_SCORE 전송 (단순 스코어보드 경로). 로컬에는 낙관적으로 먼저 반영
func (a *Agent) SubmitScore(matchID int64, score1, score2 int) error {
	if !a.State().live() {
		return ErrNotConnected
	}

	a.ApplyOptimistic(matchID, score1, score2)
	return a.writeJSON(models.ClientMessage{
		Type:    models.MessageTypeUpdateScore,
		MatchID: matchID,
		Score1:  &score1,
		Score2:  &score2,
	})
}

func (a *Agent) run() {
	defer close(a.done)

	for {
		select {
		case <-a.ctx.Done():
			a.dispatch(event{kind: EventStop})
			return
		case ev := <-a.events:
			a.dispatch(ev)
		}
	}
}

func (a *Agent) post(ev event) {
	select {
	case a.events <- ev:
	case <-a.ctx.Done():
	}
}

// dispatch 전이 함수를 적용하고 작업을 실행. 작업이 만든 후속 이벤트는 같은 자리에서 처리
func (a *Agent) dispatch(first event) {
	queue := []event{first}

	for len(queue) > 0 {
		ev := queue[0]
		queue = queue[1:]

		// 이미 닫은 연결에서 온 이벤트
		if ev.gen != 0 && ev.gen != a.gen {
			continue
		}

		current := a.State()
		tr := Next(current, ev.kind, a.cfg.UserID > 0)
		if tr.Next != current {
			a.setState(tr.Next)
		}

		for _, action := range tr.Actions {
			if follow, ok := a.perform(action, ev); ok {
				queue = append(queue, follow)
			}
		}
	}
}

func (a *Agent) setState(next State) {
	a.mu.Lock()
	prev := a.state
	a.state = next
	a.mu.Unlock()

	a.logger.Debug("Sync state changed",
		zap.String("from", prev.String()),
		zap.String("to", next.String()))
}

func (a *Agent) perform(action Action, ev event) (event, bool) {
	switch action {
	case ActionDial:
		return a.dial()

	case ActionSendIdentify:
		err := a.writeJSON(models.ClientMessage{Type: models.MessageTypeIdentify, UserID: a.cfg.UserID})
		if err != nil {
			return event{kind: EventClosed, gen: a.gen, err: err}, true
		}
		return event{kind: EventIdentified, gen: a.gen}, true

	case ActionResync:
		return a.resync(ev)

	case ActionApply:
		return a.applyMessage(ev.data)

	case ActionCloseConn:
		a.closeConn()

	case ActionScheduleReconnect:
		a.scheduleReconnect(ev.err)

	case ActionCancelReconnect:
		a.stopTimer()
	}

	return event{}, false
}

func (a *Agent) dial() (event, bool) {
	a.dials.Add(1)

	conn, _, err := a.cfg.Dialer.DialContext(a.ctx, a.wsURL, nil)
	if err != nil {
		return event{kind: EventDialFailed, err: err}, true
	}

	a.gen++
	gen := a.gen

	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	go a.readLoop(conn, gen)

	a.logger.Info("Connected to live score server", zap.String("url", a.wsURL))
	return event{kind: EventDialed, gen: gen}, true
}

func (a *Agent) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			a.post(event{kind: EventClosed, gen: gen, err: err})
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		a.post(event{kind: EventMessage, gen: gen, data: data})
	}
}

func (a *Agent) closeConn() {
	a.mu.Lock()
	conn := a.conn
	a.conn = nil
	a.mu.Unlock()

	// 이전 연결의 readLoop 이벤트 무시
	a.gen++

	if conn != nil {
		a.writeMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		a.writeMu.Unlock()
		conn.Close()
	}
}

// scheduleReconnect 대기 중인 타이머를 취소한 뒤 하나만 예약
func (a *Agent) scheduleReconnect(cause error) {
	a.stopTimer()
	a.reconnects.Add(1)

	a.timer = time.AfterFunc(a.cfg.ReconnectDelay, func() {
		a.post(event{kind: EventReconnectDue})
	})

	a.logger.Warn("Disconnected, reconnect scheduled",
		zap.Duration("delay", a.cfg.ReconnectDelay),
		zap.Error(cause))
}

func (a *Agent) stopTimer() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// resync 소켓으로 놓친 변경을 조회 경로로 복구. EventWatch면 해당 매치만
func (a *Agent) resync(ev event) (event, bool) {
	ids := []int64{ev.matchID}
	if ev.kind != EventWatch {
		ids = a.watchedIDs()
	}

	for _, id := range ids {
		match, err := a.fetchMatch(id)
		if errors.Is(err, errMatchGone) {
			a.logger.Warn("Watched match not found", zap.Int64("matchId", id))
			a.store.remove(id)
			continue
		}
		if err != nil {
			a.logger.Warn("Resync failed", zap.Int64("matchId", id), zap.Error(err))
			return event{kind: EventClosed, gen: a.gen, err: err}, true
		}
		a.applyAuthoritative(viewFromMatch(match))
	}

	if ev.kind == EventWatch {
		return event{}, false
	}
	return event{kind: EventResynced, gen: a.gen}, true
}

func (a *Agent) fetchMatch(matchID int64) (*models.Match, error) {
	req, err := http.NewRequestWithContext(a.ctx, http.MethodGet,
		fmt.Sprintf("%s/api/v1/matches/%d", a.baseURL, matchID), nil)
	if err != nil {
		return nil, err
	}
	if a.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+a.cfg.Token)
	}

	resp, err := a.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, errMatchGone
	default:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Match *models.Match `json:"match"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode match: %w", err)
	}
	if body.Match == nil {
		return nil, errors.New("empty match response")
	}

	return body.Match, nil
}

// applyMessage 브로드캐스트는 항상 로컬 값을 덮어쓴다
func (a *Agent) applyMessage(data []byte) (event, bool) {
	var envelope struct {
		Type    string `json:"type"`
		MatchID int64  `json:"matchId"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		a.logger.Warn("Malformed server message", zap.Error(err))
		return event{}, false
	}

	switch envelope.Type {
	case models.MessageTypeScoreUpdate:
		var e models.ScoreUpdateEvent
		if err := json.Unmarshal(data, &e); err != nil {
			a.logger.Warn("Malformed SCORE_UPDATE", zap.Error(err))
			return event{}, false
		}
		a.applyAuthoritative(viewFromEvent(&e))

	case models.MessageTypeScoreUpdated:
		var e models.ScoreUpdatedEvent
		if err := json.Unmarshal(data, &e); err != nil || e.Match == nil {
			a.logger.Warn("Malformed SCORE_UPDATED", zap.Error(err))
			return event{}, false
		}
		a.applyAuthoritative(viewFromMatch(e.Match))

	case models.MessageTypeError:
		a.logger.Warn("Server rejected request",
			zap.Int64("matchId", envelope.MatchID),
			zap.String("error", envelope.Error))

		// 거절된 낙관적 값은 서버 값으로 되돌린다
		if v, ok := a.store.get(envelope.MatchID); ok && v.Optimistic {
			return event{kind: EventWatch, matchID: envelope.MatchID}, true
		}

	default:
		a.logger.Debug("Ignoring server message", zap.String("type", envelope.Type))
	}

	return event{}, false
}

func (a *Agent) applyAuthoritative(v MatchView) {
	a.notify(a.store.applyAuthoritative(v))
}

func (a *Agent) notify(v MatchView) {
	a.mu.Lock()
	fn := a.onUpdate
	a.mu.Unlock()

	if fn != nil {
		fn(v)
	}
}

func (a *Agent) watchedIDs() []int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	ids := make([]int64, 0, len(a.watched))
	for id := range a.watched {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (a *Agent) writeJSON(v interface{}) error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}
