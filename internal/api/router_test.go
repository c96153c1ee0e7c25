package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/livescore/livescore-backend/internal/config"
	"github.com/livescore/livescore-backend/internal/models"
	"github.com/livescore/livescore-backend/internal/repository"
	"github.com/livescore/livescore-backend/internal/service"
	"github.com/livescore/livescore-backend/internal/websocket"
	"github.com/livescore/livescore-backend/pkg/database"
	jwtutil "github.com/livescore/livescore-backend/pkg/jwt"
	"github.com/livescore/livescore-backend/pkg/ratelimit"
)

type testServer struct {
	router *gin.Engine
	jwt    *jwtutil.JWTManager
	hub    *websocket.Hub
}

func newTestServer(t *testing.T, rateLimit int64) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Connect(database.DriverSQLite, "file::memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		Env:                "test",
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		WSSendBuffer:       16,
		UpdateRateLimit:    rateLimit,
	}

	hub := websocket.NewHub(zap.NewNop())
	t.Cleanup(hub.Shutdown)

	matchService := service.NewMatchService(repository.NewMatchRepository(db), nil, hub, 3)
	hub.SetScoreUpdater(matchService)

	jwtManager := jwtutil.NewJWTManager("test-secret", time.Hour)
	limiter := ratelimit.NewRateLimiter(rateLimit, 1)

	return &testServer{
		router: SetupRouter(cfg, matchService, hub, jwtManager, limiter),
		jwt:    jwtManager,
		hub:    hub,
	}
}

func (s *testServer) token(t *testing.T, userID int64, role models.Role) string {
	t.Helper()
	token, err := s.jwt.Generate(userID, string(role))
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func (s *testServer) seed(t *testing.T, id int64) {
	t.Helper()
	admin := s.token(t, 1, models.RoleAdmin)
	w, _ := s.do(t, http.MethodPost, "/api/v1/matches", admin, map[string]interface{}{
		"id": id, "tournamentId": 10, "round": 1, "matchNumber": id,
		"player1Id": 101, "player2Id": 102, "frameCount": 5,
	})
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t, 10)

	w, resp := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", resp["status"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_GetMatch(t *testing.T) {
	s := newTestServer(t, 10)
	s.seed(t, 1)

	w, resp := s.do(t, http.MethodGet, "/api/v1/matches/1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	match := resp["match"].(map[string]interface{})
	assert.Equal(t, "scheduled", match["status"])
	assert.Nil(t, match["score1"])

	w, _ = s.do(t, http.MethodGet, "/api/v1/matches/99", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/v1/matches/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_ListTournamentMatches(t *testing.T) {
	s := newTestServer(t, 10)
	s.seed(t, 2)
	s.seed(t, 1)

	w, resp := s.do(t, http.MethodGet, "/api/v1/tournaments/10/matches", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, resp["total"])

	w, resp = s.do(t, http.MethodGet, "/api/v1/tournaments/77/matches", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{}, resp["matches"])
}

func TestRouter_CreateMatchRequiresAdmin(t *testing.T) {
	s := newTestServer(t, 10)
	referee := s.token(t, 7, models.RoleReferee)

	w, _ := s.do(t, http.MethodPost, "/api/v1/matches", referee, map[string]interface{}{
		"id": 5, "tournamentId": 10,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	s.seed(t, 5)
	admin := s.token(t, 1, models.RoleAdmin)
	w, _ = s.do(t, http.MethodPost, "/api/v1/matches", admin, map[string]interface{}{
		"id": 5, "tournamentId": 10,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRouter_UpdateMatch(t *testing.T) {
	s := newTestServer(t, 10)
	s.seed(t, 1)
	referee := s.token(t, 7, models.RoleReferee)

	w, resp := s.do(t, http.MethodPatch, "/api/v1/matches/1", referee, map[string]interface{}{
		"score1": 3, "score2": 1,
	})
	require.Equal(t, http.StatusOK, w.Code)
	match := resp["match"].(map[string]interface{})
	assert.Equal(t, "completed", match["status"])
	assert.EqualValues(t, 101, match["winnerId"])
	assert.EqualValues(t, 7, match["lastEditedBy"])
}

func TestRouter_UpdateMatchErrors(t *testing.T) {
	s := newTestServer(t, 10)
	s.seed(t, 1)
	referee := s.token(t, 7, models.RoleReferee)
	player := s.token(t, 101, models.RolePlayer)
	admin := s.token(t, 1, models.RoleAdmin)

	tests := []struct {
		name   string
		path   string
		token  string
		body   interface{}
		status int
		code   string
	}{
		{"no token", "/api/v1/matches/1", "", map[string]int{"score1": 1}, http.StatusUnauthorized, ""},
		{"bad token", "/api/v1/matches/1", "garbage", map[string]int{"score1": 1}, http.StatusUnauthorized, ""},
		{"player", "/api/v1/matches/1", player, map[string]int{"score1": 1}, http.StatusForbidden, "unauthorized"},
		{"negative score", "/api/v1/matches/1", referee, map[string]int{"score1": -1}, http.StatusBadRequest, "invalid_transition"},
		{"empty patch", "/api/v1/matches/1", referee, map[string]int{}, http.StatusBadRequest, "invalid_transition"},
		{"missing match", "/api/v1/matches/42", referee, map[string]int{"score1": 1}, http.StatusNotFound, "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := s.do(t, http.MethodPatch, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.status, w.Code)
			if tt.code != "" {
				assert.Equal(t, tt.code, resp["error"])
			}
		})
	}

	// 잠금 후에는 심판도 423
	w, _ := s.do(t, http.MethodPost, "/api/v1/matches/1/lock", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := s.do(t, http.MethodPatch, "/api/v1/matches/1", referee, map[string]int{"score1": 1})
	assert.Equal(t, http.StatusLocked, w.Code)
	assert.Equal(t, "locked", resp["error"])

	w, _ = s.do(t, http.MethodPost, "/api/v1/matches/1/unlock", referee, nil)
	assert.Equal(t, http.StatusLocked, w.Code)

	w, resp = s.do(t, http.MethodPost, "/api/v1/matches/1/unlock", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp["match"].(map[string]interface{})["isLocked"])
}

func TestRouter_UpdateRateLimited(t *testing.T) {
	s := newTestServer(t, 2)
	s.seed(t, 1)
	referee := s.token(t, 7, models.RoleReferee)

	for i := 1; i <= 2; i++ {
		w, _ := s.do(t, http.MethodPatch, "/api/v1/matches/1", referee, map[string]int{"score1": i})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w, resp := s.do(t, http.MethodPatch, "/api/v1/matches/1", referee, map[string]int{"score1": 2, "score2": 1})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limited", resp["error"])
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestRouter_CORSPreflight(t *testing.T) {
	s := newTestServer(t, 10)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/matches/1", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/matches/1", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
