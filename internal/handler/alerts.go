package handlers

import (
	"io"

	"Beacon/internal/access"
	"Beacon/internal/alert"
	"Beacon/internal/auth"
	"Beacon/internal/models"
	"Beacon/internal/protocol"
	"Beacon/internal/session"
	"Beacon/internal/topic"
	apperrors "Beacon/pkg/errors"
	"Beacon/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
)

const defaultChatLimit = 50

type notesRequest struct {
	Notes string `json:"notes"`
}

type chatRequest struct {
	Message string `json:"message" binding:"required"`
}

type notifyRequest struct {
	Title   string `json:"title"`
	Message string `json:"message" binding:"required"`
	AlertID string `json:"alert_id"`
}

// bindOptionalJSON 请求体为空时不报错
func bindOptionalJSON(c *gin.Context, v interface{}) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(v); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func requireStaff(c *gin.Context) (access.Principal, bool) {
	p := auth.CurrentPrincipal(c)
	if !p.IsStaff() {
		response.Error(c, apperrors.Forbidden("staff only"))
		return p, false
	}
	return p, true
}

func (h *Handlers) view(a *models.Alert) models.AlertView {
	return a.View(h.alerts.Now())
}

// handleCreateAlert 发起报警
func (h *Handlers) handleCreateAlert(c *gin.Context) {
	var req alert.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "invalid request: "+err.Error(), nil)
		return
	}
	a, err := h.alerts.Create(c.Request.Context(), auth.CurrentPrincipal(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Alert created", h.view(a))
}

// handleListAlerts 工作人员看进行中报警，用户看自己的
func (h *Handlers) handleListAlerts(c *gin.Context) {
	alerts, err := h.alerts.List(c.Request.Context(), auth.CurrentPrincipal(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "ok", protocol.AlertList(alerts, h.alerts.Now()))
}

func (h *Handlers) handleMapAlerts(c *gin.Context) {
	if _, ok := requireStaff(c); !ok {
		return
	}
	views, err := h.alerts.MapAlerts(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "ok", protocol.MapList(views))
}

func (h *Handlers) handleStats(c *gin.Context) {
	if _, ok := requireStaff(c); !ok {
		return
	}
	st, err := h.alerts.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "ok", st)
}

func (h *Handlers) handleGetAlert(c *gin.Context) {
	a, err := h.alerts.Get(c.Request.Context(), auth.CurrentPrincipal(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "ok", h.view(a))
}

// handleTransition 状态迁移，事件由 Service 统一发布
func (h *Handlers) handleTransition(t alert.Transition) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req notesRequest
		if err := bindOptionalJSON(c, &req); err != nil {
			response.Fail(c, "invalid request: "+err.Error(), nil)
			return
		}

		ctx, p, id := c.Request.Context(), auth.CurrentPrincipal(c), c.Param("id")
		var (
			a   *models.Alert
			err error
		)
		switch t {
		case alert.TransitionAcknowledge:
			a, err = h.alerts.Acknowledge(ctx, p, id)
		case alert.TransitionRespond:
			a, err = h.alerts.MarkResponding(ctx, p, id)
		case alert.TransitionResolve:
			a, err = h.alerts.Resolve(ctx, p, id, req.Notes)
		case alert.TransitionFalseAlarm:
			a, err = h.alerts.MarkFalseAlarm(ctx, p, id, req.Notes)
		case alert.TransitionCancel:
			a, err = h.alerts.Cancel(ctx, p, id)
		}
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, "Alert "+string(a.Status), h.view(a))
	}
}

func (h *Handlers) handleRecordLocation(c *gin.Context) {
	var in alert.LocationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Fail(c, "invalid request: "+err.Error(), nil)
		return
	}
	point, err := h.alerts.RecordLocation(c.Request.Context(), auth.CurrentPrincipal(c), c.Param("id"), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Location updated", point)
}

func (h *Handlers) handleLocations(c *gin.Context) {
	points, err := h.alerts.Locations(c.Request.Context(), auth.CurrentPrincipal(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "ok", gin.H{"alert_id": c.Param("id"), "locations": points, "count": len(points)})
}

func (h *Handlers) handleChatHistory(c *gin.Context) {
	ctx, id := c.Request.Context(), c.Param("id")
	if _, err := h.alerts.Get(ctx, auth.CurrentPrincipal(c), id); err != nil {
		response.Error(c, err)
		return
	}
	limit := cast.ToInt(c.Query("limit"))
	if limit <= 0 || limit > 500 {
		limit = defaultChatLimit
	}
	msgs, err := h.alerts.Chats(ctx, id, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "ok", protocol.ChatHistory(id, msgs))
}

func (h *Handlers) handlePostChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "invalid request: "+err.Error(), nil)
		return
	}
	msg, err := h.alerts.PostChat(c.Request.Context(), auth.CurrentPrincipal(c), c.Param("id"), req.Message)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Message sent", protocol.Chat(*msg))
}

// handleNotifyUser 工作人员给用户推送通知
func (h *Handlers) handleNotifyUser(c *gin.Context) {
	var req notifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "invalid request: "+err.Error(), nil)
		return
	}
	userID := c.Param("user_id")
	if err := h.alerts.NotifyUser(c.Request.Context(), auth.CurrentPrincipal(c), userID, req.Title, req.Message, req.AlertID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "Notification sent", gin.H{"user_id": userID, "online": h.hub.Members(topic.User(userID).String()) > 0})
}

// handleDisconnectUser 撤销授权后断开用户所有实时连接
func (h *Handlers) handleDisconnectUser(c *gin.Context) {
	if _, ok := requireStaff(c); !ok {
		return
	}
	userID := c.Param("user_id")
	n := h.sessions.CloseUser(userID, session.CloseForbidden, "disconnected by operator")
	response.Success(c, "User disconnected", gin.H{"user_id": userID, "closed": n})
}
