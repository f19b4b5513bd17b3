package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"Beacon/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/api/alerts", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func get(r http.Handler, path, ip string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = ip + ":4242"
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiterDeniesOverLimit(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := NewPrometheusObserver(reg)
	rl := NewRateLimiter(RateLimiterConfig{Rate: "2-M", AddHeaders: true, SkipPaths: []string{"/health"}}, nil).WithObserver(obs)
	r := newRouter(rl.Middleware())

	assert.Equal(t, http.StatusOK, get(r, "/api/alerts", "10.1.1.1").Code)
	w := get(r, "/api/alerts", "10.1.1.1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = get(r, "/api/alerts", "10.1.1.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate_limited")

	// 其他 IP 独立计数
	assert.Equal(t, http.StatusOK, get(r, "/api/alerts", "10.1.1.2").Code)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, get(r, "/health", "10.1.1.1").Code)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(obs.allow.WithLabelValues("/api/alerts")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.deny.WithLabelValues("/api/alerts")))
}

func TestRateLimiterCIDRLists(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:           "1-M",
		WhitelistCIDRs: []string{"127.0.0.0/8"},
		BlacklistCIDRs: []string{"192.168.0.0/16"},
	}, nil)
	r := newRouter(rl.Middleware())

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, get(r, "/api/alerts", "127.0.0.1").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, get(r, "/api/alerts", "192.168.1.10").Code)
}

func TestPerRouteRate(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: "100-M", PerRouteRates: map[string]string{"/api/alerts": "1-M"}}, nil)
	assert.Equal(t, "1-M", rl.pickRate("/api/alerts"))
	assert.Equal(t, "100-M", rl.pickRate("/api/other"))
}

func TestAccessLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger.Replace(zap.New(core))
	defer logger.Replace(nil)

	r := newRouter(AccessLog())
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/alerts", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1")
	r.ServeHTTP(w, req)

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "/api/alerts", ctx["route"])
	assert.Equal(t, int64(http.StatusOK), ctx["status"])
	assert.Equal(t, true, ctx["mobile"])
}
