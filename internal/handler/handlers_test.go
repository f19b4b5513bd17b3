package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"Beacon/internal/access"
	"Beacon/internal/alert"
	"Beacon/internal/auth"
	"Beacon/internal/bridge"
	"Beacon/internal/models"
	"Beacon/internal/session"
	"Beacon/internal/store"
	"Beacon/pkg/hub"
	"Beacon/pkg/response"
	"Beacon/pkg/websocket"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	staff = access.Principal{ID: "op-1", Name: "Dana", Role: access.RoleStaff}
	user  = access.Principal{ID: "u-1", Name: "Sam", Role: access.RoleUser}
	other = access.Principal{ID: "u-2", Name: "Lee", Role: access.RoleUser}
)

type testEnv struct {
	engine   *gin.Engine
	jwt      *auth.JWTAuthenticator
	svc      *alert.Service
	sessions *session.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	gin.SetMode(gin.TestMode)

	jwtAuth, err := auth.NewJWTAuthenticator(auth.JWTConfig{Secret: []byte("test-secret"), Issuer: "beacon"})
	require.NoError(t, err)

	h := hub.NewHub(nil)
	svc := alert.NewService(store.NewMemoryStore(), nil)
	svc.SetEmitter(bridge.New(h, svc))
	m := session.NewManager(nil, session.Deps{
		Auth:   jwtAuth,
		Access: access.NewEvaluator(svc),
		Alerts: svc,
		Hub:    h,
	})
	svc.SetPresence(m)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		m.CloseAll(session.CloseGoingAway, "test finished")
		cancel()
	})

	engine := gin.New()
	NewHandlers(Options{
		BaseContext: ctx,
		Alerts:      svc,
		Sessions:    m,
		Hub:         h,
		Auth:        jwtAuth,
	}).Register(engine)

	return &testEnv{engine: engine, jwt: jwtAuth, svc: svc, sessions: m}
}

func (e *testEnv) token(t *testing.T, p access.Principal) string {
	tok, _, err := e.jwt.IssueToken(p)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path string, p *access.Principal, body interface{}) (*httptest.ResponseRecorder, response.Body) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if p != nil {
		req.Header.Set("Authorization", "Bearer "+e.token(t, *p))
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	var out response.Body
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func (e *testEnv) createAlert(t *testing.T) string {
	w, body := e.do(t, http.MethodPost, "/api/alerts", &user, gin.H{"latitude": 52.37, "longitude": 4.89})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := body.Data.(map[string]interface{})
	return data["id"].(string)
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)
	w, _ := env.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestAPIRequiresToken(t *testing.T) {
	env := newTestEnv(t)
	w, body := env.do(t, http.MethodGet, "/api/alerts", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", body.Code)
}

func TestCreateAlertValidation(t *testing.T) {
	env := newTestEnv(t)
	w, body := env.do(t, http.MethodPost, "/api/alerts", &user, gin.H{"latitude": 120.0, "longitude": 4.89})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "malformed_command", body.Code)

	w, _ = env.do(t, http.MethodPost, "/api/alerts", &user, gin.H{"latitude": 52.1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAlertLifecycleOverREST(t *testing.T) {
	env := newTestEnv(t)
	id := env.createAlert(t)

	w, body := env.do(t, http.MethodPost, "/api/alerts/"+id+"/acknowledge", &user, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", body.Code)

	w, body = env.do(t, http.MethodPost, "/api/alerts/"+id+"/acknowledge", &staff, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := body.Data.(map[string]interface{})
	assert.Equal(t, string(models.StatusAcknowledged), data["status"])
	assert.Equal(t, "op-1", data["assigned_operator"])

	w, body = env.do(t, http.MethodPost, "/api/alerts/"+id+"/acknowledge", &staff, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "illegal_transition", body.Code)

	w, body = env.do(t, http.MethodPost, "/api/alerts/"+id+"/resolve", &staff, gin.H{"notes": "all clear"})
	require.Equal(t, http.StatusOK, w.Code)
	data = body.Data.(map[string]interface{})
	assert.Equal(t, string(models.StatusResolved), data["status"])
	assert.Contains(t, data["operator_notes"], "all clear")

	w, body = env.do(t, http.MethodPost, "/api/alerts/"+id+"/location", &user, gin.H{"latitude": 1.0, "longitude": 2.0})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "alert_not_active", body.Code)
}

func TestCancelIsOwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	id := env.createAlert(t)

	w, _ := env.do(t, http.MethodPost, "/api/alerts/"+id+"/cancel", &staff, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body := env.do(t, http.MethodPost, "/api/alerts/"+id+"/cancel", &user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(models.StatusCanceled), body.Data.(map[string]interface{})["status"])
}

func TestGetAlertVisibility(t *testing.T) {
	env := newTestEnv(t)
	id := env.createAlert(t)

	w, _ := env.do(t, http.MethodGet, "/api/alerts/"+id, &user, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = env.do(t, http.MethodGet, "/api/alerts/"+id, &staff, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = env.do(t, http.MethodGet, "/api/alerts/"+id, &other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = env.do(t, http.MethodGet, "/api/alerts/missing", &staff, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStaffOnlyViews(t *testing.T) {
	env := newTestEnv(t)
	env.createAlert(t)

	for _, path := range []string{"/api/alerts/map", "/api/alerts/stats"} {
		w, _ := env.do(t, http.MethodGet, path, &user, nil)
		assert.Equal(t, http.StatusForbidden, w.Code, path)
		w, _ = env.do(t, http.MethodGet, path, &staff, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	_, body := env.do(t, http.MethodGet, "/api/alerts/stats", &staff, nil)
	stats := body.Data.(map[string]interface{})
	assert.EqualValues(t, 1, stats["total_alerts"])
}

func TestChatOverREST(t *testing.T) {
	env := newTestEnv(t)
	id := env.createAlert(t)

	w, _ := env.do(t, http.MethodPost, "/api/alerts/"+id+"/chat", &user, gin.H{"message": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/alerts/"+id+"/chat", strings.NewReader(`{"message":`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+env.token(t, user))
	w = httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var bad response.Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bad))
	assert.Equal(t, "malformed_command", bad.Code)
	assert.Contains(t, bad.Message, "invalid request")
	assert.NotContains(t, bad.Message, "Empty message")

	w, _ = env.do(t, http.MethodPost, "/api/alerts/"+id+"/chat", &staff, gin.H{"message": "help is on the way"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, body := env.do(t, http.MethodGet, "/api/alerts/"+id+"/chat", &user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "help is on the way")
	assert.NotNil(t, body.Data)

	w, _ = env.do(t, http.MethodGet, "/api/alerts/"+id+"/chat", &other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDisconnectUserRequiresStaff(t *testing.T) {
	env := newTestEnv(t)
	w, _ := env.do(t, http.MethodPost, "/api/users/u-1/disconnect", &user, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body := env.do(t, http.MethodPost, "/api/users/u-1/disconnect", &staff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, body.Data.(map[string]interface{})["closed"])
}

type wsFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dial(t *testing.T, srv *httptest.Server, path, token string) *gorilla.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	if token != "" {
		url += "?token=" + token
	}
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *gorilla.Conn) wsFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f wsFrame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestAlertFeedEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.engine)
	defer srv.Close()

	id := env.createAlert(t)
	conn := dial(t, srv, "/ws/alerts/"+id, env.token(t, user))

	first := readFrame(t, conn)
	assert.Equal(t, "alert_status", first.Type)

	w, _ := env.do(t, http.MethodPost, "/api/alerts/"+id+"/acknowledge", &staff, nil)
	require.Equal(t, http.StatusOK, w.Code)

	ev := readFrame(t, conn)
	assert.Equal(t, "alert_changed", ev.Type)
	assert.Contains(t, string(ev.Data), string(models.StatusAcknowledged))

	require.NoError(t, conn.WriteJSON(gin.H{"type": "ping"}))
	assert.Equal(t, "pong", readFrame(t, conn).Type)
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.engine)
	defer srv.Close()

	conn := dial(t, srv, websocket.RouteAdminAlerts, "garbage")
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, gorilla.IsCloseError(err, session.CloseUnauthorized), err.Error())
}

func TestWebSocketForbiddenFeed(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.engine)
	defer srv.Close()

	conn := dial(t, srv, websocket.RouteAdminAlerts, env.token(t, user))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, gorilla.IsCloseError(err, session.CloseForbidden), err.Error())
}

func TestRealtimeStatsRequiresStaff(t *testing.T) {
	env := newTestEnv(t)
	w, _ := env.do(t, http.MethodGet, websocket.RouteStats, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w, _ = env.do(t, http.MethodGet, websocket.RouteStats, &user, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = env.do(t, http.MethodGet, websocket.RouteStats, &staff, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.EqualValues(t, 0, out["sessions"])
	assert.Contains(t, out, "hub")
	assert.Contains(t, out, "config")
}
