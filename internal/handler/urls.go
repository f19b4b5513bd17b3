package handlers

import (
	"context"

	"Beacon/internal/alert"
	"Beacon/internal/auth"
	"Beacon/internal/session"
	"Beacon/pkg/hub"
	"Beacon/pkg/metrics"
	"Beacon/pkg/middleware"
	"Beacon/pkg/websocket"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Options 处理器依赖，Metrics / RateLimiter / DB 可为 nil
type Options struct {
	// 服务生命周期，websocket 会话在其结束时关闭
	BaseContext context.Context
	Alerts      *alert.Service
	Sessions    *session.Manager
	Hub         *hub.Hub
	Auth        auth.Authenticator
	Upgrader    *websocket.Upgrader
	Metrics     *metrics.Metrics
	RateLimiter *middleware.RateLimiter
	DB          *gorm.DB
}

type Handlers struct {
	ctx      context.Context
	alerts   *alert.Service
	sessions *session.Manager
	hub      *hub.Hub
	auth     auth.Authenticator
	upgrader *websocket.Upgrader
	metrics  *metrics.Metrics
	limiter  *middleware.RateLimiter
	db       *gorm.DB
}

func NewHandlers(opts Options) *Handlers {
	ctx := opts.BaseContext
	if ctx == nil {
		ctx = context.Background()
	}
	up := opts.Upgrader
	if up == nil {
		up = websocket.NewUpgrader(nil)
	}
	return &Handlers{
		ctx:      ctx,
		alerts:   opts.Alerts,
		sessions: opts.Sessions,
		hub:      opts.Hub,
		auth:     opts.Auth,
		upgrader: up,
		metrics:  opts.Metrics,
		limiter:  opts.RateLimiter,
		db:       opts.DB,
	}
}

func (h *Handlers) Register(engine *gin.Engine) {
	if h.metrics != nil {
		engine.Use(metrics.Middleware(h.metrics))
	}

	// Register System Module Routes
	h.registerSystemRoutes(engine)

	// Register Realtime Routes
	h.registerRealtimeRoutes(engine)

	// Register Business Module Routes
	api := engine.Group("/api")
	if h.limiter != nil {
		api.Use(h.limiter.Middleware())
	}
	api.Use(auth.Middleware(h.auth))
	h.registerAlertRoutes(api)
	h.registerUserRoutes(api)
}

// Alert Module
func (h *Handlers) registerAlertRoutes(r *gin.RouterGroup) {
	alerts := r.Group("/alerts")
	{
		alerts.POST("", h.handleCreateAlert)
		alerts.GET("", h.handleListAlerts)
		alerts.GET("/map", h.handleMapAlerts)
		alerts.GET("/stats", h.handleStats)

		alerts.GET("/:id", h.handleGetAlert)
		alerts.POST("/:id/acknowledge", h.handleTransition(alert.TransitionAcknowledge))
		alerts.POST("/:id/respond", h.handleTransition(alert.TransitionRespond))
		alerts.POST("/:id/resolve", h.handleTransition(alert.TransitionResolve))
		alerts.POST("/:id/false-alarm", h.handleTransition(alert.TransitionFalseAlarm))
		alerts.POST("/:id/cancel", h.handleTransition(alert.TransitionCancel))

		alerts.POST("/:id/location", h.handleRecordLocation)
		alerts.GET("/:id/locations", h.handleLocations)

		alerts.GET("/:id/chat", h.handleChatHistory)
		alerts.POST("/:id/chat", h.handlePostChat)
	}
}

// User Module
func (h *Handlers) registerUserRoutes(r *gin.RouterGroup) {
	users := r.Group("/users")
	{
		users.POST("/:user_id/notify", h.handleNotifyUser)
		users.POST("/:user_id/disconnect", h.handleDisconnectUser)
	}
}

// Realtime Module
func (h *Handlers) registerRealtimeRoutes(engine *gin.Engine) {
	engine.GET(websocket.RouteAdminAlerts, h.serveKind(session.KindAdminAlerts))
	engine.GET(websocket.RouteAlert, h.serveKind(session.KindAlert))
	engine.GET(websocket.RouteUser, h.serveKind(session.KindUser))
	engine.GET(websocket.RouteAdminDashboard, h.serveKind(session.KindAdminDashboard))
	engine.GET(websocket.RouteLocation, h.serveKind(session.KindLocation))
	engine.GET(websocket.RouteChat, h.serveKind(session.KindChat))
	engine.GET(websocket.RouteMapAlerts, h.serveKind(session.KindMap))
	engine.GET(websocket.RouteStats, auth.Middleware(h.auth), h.handleRealtimeStats)
}

// System Module
func (h *Handlers) registerSystemRoutes(engine *gin.Engine) {
	engine.GET("/health", h.HealthCheck)
	if h.metrics != nil {
		engine.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}
}
