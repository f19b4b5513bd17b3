package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubObserverGroupsByFamily(t *testing.T) {
	m := NewMetrics()
	m.Published("alert:a-1", 2, 0)
	m.Published("alert:a-2", 1, 1)
	m.Published("admin-alerts", 3, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.hubPublished.WithLabelValues("alert")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.hubDelivered.WithLabelValues("alert")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.hubDropped.WithLabelValues("alert")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.hubPublished.WithLabelValues("admin-alerts")))
}

func TestSessionMetrics(t *testing.T) {
	m := NewMetrics()
	m.SessionOpened("chat")
	m.SessionOpened("chat")
	m.SessionClosed("chat", 4008, 3*time.Second)
	m.CommandHandled("chat", "chat_message", "ok", time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsActive.WithLabelValues("chat")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.sessionsTotal.WithLabelValues("chat")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsClosed.WithLabelValues("chat", "4008")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("chat", "chat_message", "ok")))
}

func TestObserveTransition(t *testing.T) {
	m := NewMetrics()
	m.ObserveTransition("acknowledge", "")
	m.ObserveTransition("acknowledge", "illegal_transition")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.alertOperations.WithLabelValues("acknowledge", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.alertOperations.WithLabelValues("acknowledge", "illegal_transition")))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	r := gin.New()
	r.Use(Middleware(m))
	r.GET("/api/alerts/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/alerts/abc", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/api/alerts/:id", "204")))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, "http_requests_total"))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}

func TestTopicFamily(t *testing.T) {
	assert.Equal(t, "location", topicFamily("location:x"))
	assert.Equal(t, "map-alerts", topicFamily("map-alerts"))
}
