package session

import (
	"context"

	"Beacon/internal/access"
	"Beacon/internal/alert"
	"Beacon/internal/models"
	"Beacon/internal/protocol"
	"Beacon/internal/topic"
	apperrors "Beacon/pkg/errors"
	"Beacon/pkg/hub"
)

// Params 路由参数
type Params struct {
	AlertID string
	UserID  string
}

// Handler 命令处理器，返回发给本连接的唯一回复
type Handler func(ctx context.Context, s *Session, cmd *protocol.Command) (*hub.Message, error)

// Kind 消费者类型描述：加入的主题、加入时的快照、接受的命令
type Kind struct {
	Name     string
	Topic    func(params Params, p access.Principal) (topic.Topic, error)
	Snapshot func(ctx context.Context, s *Session) (*hub.Message, error)
	Commands map[string]Handler
}

// ChatHistoryLimit 加入对话时下发的历史条数
var ChatHistoryLimit = 50

var (
	KindAdminAlerts = &Kind{
		Name:     "admin_alerts",
		Topic:    fixed(topic.AdminAlerts()),
		Snapshot: activeAlerts,
		Commands: commands(map[string]Handler{
			protocol.CommandGetActiveAlerts: snapshotHandler(activeAlerts),
			protocol.CommandAcknowledge:     transition(alert.TransitionAcknowledge),
			protocol.CommandRespond:         transition(alert.TransitionRespond),
			protocol.CommandResolve:         transition(alert.TransitionResolve),
			protocol.CommandFalseAlarm:      transition(alert.TransitionFalseAlarm),
		}),
	}

	KindAlert = &Kind{
		Name:     "alert",
		Topic:    alertScoped(topic.Alert),
		Snapshot: alertStatus,
		Commands: commands(map[string]Handler{
			protocol.CommandGetStatus:   snapshotHandler(alertStatus),
			protocol.CommandCancel:      transition(alert.TransitionCancel),
			protocol.CommandAcknowledge: transition(alert.TransitionAcknowledge),
			protocol.CommandRespond:     transition(alert.TransitionRespond),
			protocol.CommandResolve:     transition(alert.TransitionResolve),
			protocol.CommandFalseAlarm:  transition(alert.TransitionFalseAlarm),
		}),
	}

	KindUser = &Kind{
		Name: "user",
		Topic: func(params Params, p access.Principal) (topic.Topic, error) {
			if params.UserID == "" {
				return topic.Topic{}, apperrors.NotFound("user id is required")
			}
			return topic.User(params.UserID), nil
		},
		Snapshot: userAlerts,
		Commands: commands(map[string]Handler{
			protocol.CommandGetAlerts: snapshotHandler(userAlerts),
		}),
	}

	KindAdminDashboard = &Kind{
		Name:     "admin_dashboard",
		Topic:    fixed(topic.AdminDashboard()),
		Snapshot: dashboardStats,
		Commands: commands(map[string]Handler{
			protocol.CommandGetStats: snapshotHandler(dashboardStats),
		}),
	}

	KindLocation = &Kind{
		Name:     "location",
		Topic:    alertScoped(topic.Location),
		Snapshot: lastLocation,
		Commands: commands(map[string]Handler{
			protocol.CommandLocationUpdate:  locationUpdate,
			protocol.CommandGetLastLocation: snapshotHandler(lastLocation),
		}),
	}

	KindChat = &Kind{
		Name:     "chat",
		Topic:    alertScoped(topic.Chat),
		Snapshot: chatHistory,
		Commands: commands(map[string]Handler{
			protocol.CommandChatMessage: chatMessage,
		}),
	}

	KindMap = &Kind{
		Name:     "map",
		Topic:    fixed(topic.MapAlerts()),
		Snapshot: mapAlerts,
		Commands: commands(map[string]Handler{
			protocol.CommandGetMapAlerts: snapshotHandler(mapAlerts),
		}),
	}
)

// Kinds 全部消费者类型
func Kinds() []*Kind {
	return []*Kind{KindAdminAlerts, KindAlert, KindUser, KindAdminDashboard, KindLocation, KindChat, KindMap}
}

// commands 所有类型都接受 ping
func commands(m map[string]Handler) map[string]Handler {
	m[protocol.CommandPing] = func(context.Context, *Session, *protocol.Command) (*hub.Message, error) {
		return protocol.Pong(), nil
	}
	return m
}

func fixed(t topic.Topic) func(Params, access.Principal) (topic.Topic, error) {
	return func(Params, access.Principal) (topic.Topic, error) { return t, nil }
}

func alertScoped(build func(string) topic.Topic) func(Params, access.Principal) (topic.Topic, error) {
	return func(params Params, _ access.Principal) (topic.Topic, error) {
		if params.AlertID == "" {
			return topic.Topic{}, apperrors.NotFound("alert id is required")
		}
		return build(params.AlertID), nil
	}
}

func snapshotHandler(fn func(context.Context, *Session) (*hub.Message, error)) Handler {
	return func(ctx context.Context, s *Session, _ *protocol.Command) (*hub.Message, error) {
		return fn(ctx, s)
	}
}

func (s *Session) snapshot(msgType string, data interface{}) *hub.Message {
	msg := hub.NewMessage(msgType, data)
	msg.Topic = s.topic.String()
	return msg
}

// targetAlert 报警作用域连接只能操作自己的报警，其余从命令体取 alert_id
func (s *Session) targetAlert(payload protocol.AlertIDPayload) (string, error) {
	if s.topic.Family.AlertScoped() {
		if payload.AlertID != "" && payload.AlertID != s.topic.ID {
			return "", apperrors.Forbidden("command targets a different alert")
		}
		return s.topic.ID, nil
	}
	if payload.AlertID == "" {
		return "", apperrors.Malformed("alert_id is required")
	}
	return payload.AlertID, nil
}

func activeAlerts(ctx context.Context, s *Session) (*hub.Message, error) {
	alerts, err := s.manager.deps.Alerts.ActiveAlerts(ctx)
	if err != nil {
		return nil, err
	}
	return s.snapshot(protocol.SnapshotActiveAlerts, protocol.AlertList(alerts, s.manager.deps.Alerts.Now())), nil
}

func alertStatus(ctx context.Context, s *Session) (*hub.Message, error) {
	a, err := s.manager.deps.Alerts.Get(ctx, s.principal, s.topic.ID)
	if err != nil {
		return nil, err
	}
	return s.snapshot(protocol.SnapshotAlertStatus, a.View(s.manager.deps.Alerts.Now())), nil
}

func userAlerts(ctx context.Context, s *Session) (*hub.Message, error) {
	alerts, err := s.manager.deps.Alerts.UserAlerts(ctx, s.topic.ID)
	if err != nil {
		return nil, err
	}
	return s.snapshot(protocol.SnapshotUserAlerts, protocol.AlertList(alerts, s.manager.deps.Alerts.Now())), nil
}

func dashboardStats(ctx context.Context, s *Session) (*hub.Message, error) {
	st, err := s.manager.deps.Alerts.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return s.snapshot(protocol.SnapshotDashboard, st), nil
}

func lastLocation(ctx context.Context, s *Session) (*hub.Message, error) {
	loc, err := s.manager.deps.Alerts.LastLocation(ctx, s.topic.ID)
	if err != nil {
		return nil, err
	}
	return s.snapshot(protocol.SnapshotLastLocation, protocol.LocationData{AlertID: s.topic.ID, Location: loc}), nil
}

func chatHistory(ctx context.Context, s *Session) (*hub.Message, error) {
	msgs, err := s.manager.deps.Alerts.Chats(ctx, s.topic.ID, ChatHistoryLimit)
	if err != nil {
		return nil, err
	}
	return s.snapshot(protocol.SnapshotChatHistory, protocol.ChatHistory(s.topic.ID, msgs)), nil
}

func mapAlerts(ctx context.Context, s *Session) (*hub.Message, error) {
	views, err := s.manager.deps.Alerts.MapAlerts(ctx)
	if err != nil {
		return nil, err
	}
	return s.snapshot(protocol.SnapshotMapAlerts, protocol.MapList(views)), nil
}

var transitionMessages = map[alert.Transition]string{
	alert.TransitionAcknowledge: "Alert acknowledged",
	alert.TransitionRespond:     "Alert marked as responding",
	alert.TransitionResolve:     "Alert resolved",
	alert.TransitionFalseAlarm:  "Alert marked as false alarm",
	alert.TransitionCancel:      "Alert canceled",
}

func transition(t alert.Transition) Handler {
	return func(ctx context.Context, s *Session, cmd *protocol.Command) (*hub.Message, error) {
		var payload protocol.AlertIDPayload
		if err := cmd.Decode(&payload); err != nil {
			return nil, err
		}
		id, err := s.targetAlert(payload)
		if err != nil {
			return nil, err
		}

		svc := s.manager.deps.Alerts
		var a *models.Alert
		switch t {
		case alert.TransitionAcknowledge:
			a, err = svc.Acknowledge(ctx, s.principal, id)
		case alert.TransitionRespond:
			a, err = svc.MarkResponding(ctx, s.principal, id)
		case alert.TransitionResolve:
			a, err = svc.Resolve(ctx, s.principal, id, payload.Notes)
		case alert.TransitionFalseAlarm:
			a, err = svc.MarkFalseAlarm(ctx, s.principal, id, payload.Notes)
		case alert.TransitionCancel:
			a, err = svc.Cancel(ctx, s.principal, id)
		default:
			return nil, apperrors.Malformed("unsupported transition")
		}
		if err != nil {
			return nil, err
		}
		return protocol.Success(cmd.Type, transitionMessages[t], a.View(svc.Now())), nil
	}
}

func locationUpdate(ctx context.Context, s *Session, cmd *protocol.Command) (*hub.Message, error) {
	var in alert.LocationInput
	if err := cmd.Decode(&in); err != nil {
		return nil, err
	}
	point, err := s.manager.deps.Alerts.RecordLocation(ctx, s.principal, s.topic.ID, in)
	if err != nil {
		return nil, err
	}
	return protocol.Success(cmd.Type, "Location updated", protocol.LocationData{AlertID: s.topic.ID, Location: point}), nil
}

func chatMessage(ctx context.Context, s *Session, cmd *protocol.Command) (*hub.Message, error) {
	var payload protocol.ChatPayload
	if err := cmd.Decode(&payload); err != nil {
		return nil, err
	}
	msg, err := s.manager.deps.Alerts.PostChat(ctx, s.principal, s.topic.ID, payload.Message)
	if err != nil {
		return nil, err
	}
	return protocol.Success(cmd.Type, "Message sent", protocol.Chat(*msg)), nil
}
