package handlers

import (
	"net/http"

	"Beacon/internal/auth"
	"Beacon/internal/session"
	"Beacon/pkg/logger"
	"Beacon/pkg/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// serveKind 升级连接后交给会话管理器，鉴权在升级之后进行以便用关闭码拒绝
func (h *Handlers) serveKind(kind *session.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		params := session.Params{
			AlertID: c.Param("alert_id"),
			UserID:  c.Param("user_id"),
		}
		creds := auth.FromRequest(c.Request)

		conn, err := h.upgrader.Upgrade(c.Writer, c.Request)
		if err != nil {
			// 升级器已写回 HTTP 错误
			return
		}
		s := h.sessions.Serve(h.ctx, kind, params, creds, conn)
		logger.Debug("websocket session finished",
			zap.String("session_id", s.ID()),
			zap.String("kind", kind.Name),
			zap.String("remote", conn.RemoteAddr()),
			zap.Int("close_code", s.CloseCode()),
		)
	}
}

// handleRealtimeStats 实时连接统计，仅工作人员可见
func (h *Handlers) handleRealtimeStats(c *gin.Context) {
	if _, ok := requireStaff(c); !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessions":     h.sessions.Count(),
		"by_kind":      h.sessions.CountByKind(),
		"online_users": h.sessions.OnlineUsers(),
		"hub":          h.hub.Stats(),
		"config":       websocket.GetConfigSummary(h.upgrader.Config()),
	})
}
