// Package protocol defines the tagged JSON messages exchanged with realtime clients.
package protocol

import (
	"encoding/json"
	"time"

	"Beacon/internal/models"
	apperrors "Beacon/pkg/errors"
	"Beacon/pkg/hub"
)

// 推送事件
const (
	EventAlertChanged     = "alert_changed"
	EventLocationChanged  = "location_changed"
	EventChatMessage      = "chat_message"
	EventDashboardStats   = "dashboard_stats"
	EventUserNotification = "user_notification"
)

// 快照
const (
	SnapshotActiveAlerts = "active_alerts"
	SnapshotAlertStatus  = "alert_status"
	SnapshotUserAlerts   = "user_alerts"
	SnapshotDashboard    = EventDashboardStats
	SnapshotLastLocation = "last_location"
	SnapshotChatHistory  = "chat_history"
	SnapshotMapAlerts    = "map_alerts"
)

// 回复
const (
	ReplySuccess = "success"
	ReplyError   = "error"
	ReplyPong    = "pong"
)

// 客户端命令
const (
	CommandPing            = "ping"
	CommandGetActiveAlerts = "get_active_alerts"
	CommandAcknowledge     = "acknowledge_alert"
	CommandRespond         = "respond_alert"
	CommandResolve         = "resolve_alert"
	CommandFalseAlarm      = "false_alarm"
	CommandGetStatus       = "get_status"
	CommandCancel          = "cancel_alert"
	CommandGetAlerts       = "get_alerts"
	CommandGetStats        = "get_stats"
	CommandLocationUpdate  = "location_update"
	CommandGetLastLocation = "get_last_location"
	CommandChatMessage     = "chat_message"
	CommandGetMapAlerts    = "get_map_alerts"
)

// Command 入站命令的公共头，其余字段由具体处理器解析
type Command struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// ParseCommand 解析类型标签
func ParseCommand(data []byte) (*Command, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, apperrors.Malformed("invalid JSON: " + err.Error())
	}
	if head.Type == "" {
		return nil, apperrors.Malformed("missing command type")
	}
	return &Command{Type: head.Type, Raw: data}, nil
}

// Decode 解析命令体
func (c *Command) Decode(v interface{}) error {
	if err := json.Unmarshal(c.Raw, v); err != nil {
		return apperrors.Malformed("invalid " + c.Type + " payload: " + err.Error())
	}
	return nil
}

// AlertIDPayload 需要报警 id 的命令
type AlertIDPayload struct {
	AlertID string `json:"alert_id"`
	Notes   string `json:"notes"`
}

// ChatPayload chat_message 命令
type ChatPayload struct {
	Message string `json:"message"`
}

// AlertChangedData alert_changed 事件体
type AlertChangedData struct {
	Change string           `json:"change"`
	Alert  models.AlertView `json:"alert"`
	Actor  string           `json:"actor,omitempty"`
}

// LocationData location_changed / last_location
type LocationData struct {
	AlertID  string                 `json:"alert_id"`
	Location *models.LocationUpdate `json:"location"`
}

// ChatData chat_message 事件体
type ChatData struct {
	ID        string    `json:"id"`
	AlertID   string    `json:"alert_id"`
	Message   string    `json:"message"`
	Sender    string    `json:"sender"`
	SenderID  string    `json:"sender_id"`
	IsStaff   bool      `json:"is_staff"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertListData 列表类快照
type AlertListData struct {
	Alerts []models.AlertView `json:"alerts"`
	Count  int                `json:"count"`
}

// MapListData 地图快照
type MapListData struct {
	Alerts []models.MapView `json:"alerts"`
	Count  int              `json:"count"`
}

// ChatHistoryData 对话历史
type ChatHistoryData struct {
	AlertID  string     `json:"alert_id"`
	Messages []ChatData `json:"messages"`
}

// NotificationData 用户通知
type NotificationData struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	AlertID   string    `json:"alert_id,omitempty"`
	From      string    `json:"from"`
	Timestamp time.Time `json:"timestamp"`
}

// SuccessData 命令成功回复
type SuccessData struct {
	Command string      `json:"command"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorData 命令失败回复，只发给发送者
type ErrorData struct {
	Command string         `json:"command,omitempty"`
	Code    apperrors.Code `json:"code"`
	Message string         `json:"message"`
}

func Chat(m models.ChatMessage) ChatData {
	return ChatData{
		ID:        m.ID,
		AlertID:   m.AlertID,
		Message:   m.Text,
		Sender:    m.SenderName,
		SenderID:  m.SenderID,
		IsStaff:   m.IsStaff(),
		Timestamp: m.Timestamp,
	}
}

func AlertList(alerts []*models.Alert, now time.Time) AlertListData {
	views := make([]models.AlertView, 0, len(alerts))
	for _, a := range alerts {
		views = append(views, a.View(now))
	}
	return AlertListData{Alerts: views, Count: len(views)}
}

func MapList(views []models.MapView) MapListData {
	if views == nil {
		views = []models.MapView{}
	}
	return MapListData{Alerts: views, Count: len(views)}
}

func ChatHistory(alertID string, msgs []models.ChatMessage) ChatHistoryData {
	out := make([]ChatData, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, Chat(m))
	}
	return ChatHistoryData{AlertID: alertID, Messages: out}
}

// Success 成功回复
func Success(command, message string, data interface{}) *hub.Message {
	return hub.NewMessage(ReplySuccess, SuccessData{Command: command, Message: message, Data: data})
}

// Error 错误回复，内部错误不暴露细节
func Error(command string, err error) *hub.Message {
	return hub.NewMessage(ReplyError, ErrorData{
		Command: command,
		Code:    apperrors.CodeOf(err),
		Message: apperrors.PublicMessage(err),
	})
}

// Pong 心跳回复
func Pong() *hub.Message {
	return hub.NewMessage(ReplyPong, nil)
}
