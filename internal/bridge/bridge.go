// Package bridge turns alert mutations into hub publishes and external exports.
// Every mutation path reaches it through alert.Service, so each mutation is
// published exactly once per affected topic no matter where it came from.
package bridge

import (
	"context"
	"time"

	"Beacon/internal/alert"
	"Beacon/internal/models"
	"Beacon/internal/protocol"
	"Beacon/internal/topic"
	"Beacon/pkg/eventsink"
	"Beacon/pkg/hub"
	"Beacon/pkg/logger"

	"go.uber.org/zap"
)

// Publisher Hub 的发布面
type Publisher interface {
	Publish(topic string, msg *hub.Message) (int, error)
	Members(topic string) int
}

// StatsSource 面板统计来源
type StatsSource interface {
	Stats(ctx context.Context) (*models.DashboardStats, error)
}

// Bridge 实现 alert.Emitter
type Bridge struct {
	hub   Publisher
	stats StatsSource
	sinks []eventsink.Sink
	now   func() time.Time

	// 面板刷新合并请求，容量 1
	dirty chan struct{}
}

var _ alert.Emitter = (*Bridge)(nil)

// New stats 可为 nil，此时不刷新面板
func New(h Publisher, stats StatsSource, sinks ...eventsink.Sink) *Bridge {
	return &Bridge{
		hub:   h,
		stats: stats,
		sinks: sinks,
		now:   func() time.Time { return time.Now().UTC() },
		dirty: make(chan struct{}, 1),
	}
}

// SetStats 延迟注入统计来源
func (b *Bridge) SetStats(s StatsSource) { b.stats = s }

func (b *Bridge) publish(t topic.Topic, msg *hub.Message) {
	n, err := b.hub.Publish(t.String(), msg)
	if err != nil {
		logger.Error("publish failed", zap.String("topic", t.String()), zap.String("type", msg.Type), zap.Error(err))
		return
	}
	logger.Debug("published", zap.String("topic", t.String()), zap.String("type", msg.Type), zap.Int("delivered", n))
}

func (b *Bridge) export(ctx context.Context, eventType, key string, at time.Time, payload interface{}) {
	if len(b.sinks) == 0 {
		return
	}
	env, err := eventsink.NewEnvelope(eventType, key, at, payload)
	if err != nil {
		logger.Error("encode event envelope failed", zap.String("type", eventType), zap.Error(err))
		return
	}
	for _, s := range b.sinks {
		if err := s.Emit(ctx, env); err != nil {
			logger.Warn("event export failed", zap.String("type", eventType), zap.String("key", key), zap.Error(err))
		}
	}
}

// AlertChanged -> admin-alerts, alert:{id}, map-alerts（仅有定位时）
func (b *Bridge) AlertChanged(ctx context.Context, ev alert.AlertChanged) {
	data := protocol.AlertChangedData{
		Change: string(ev.Kind),
		Alert:  ev.Alert.View(ev.At),
		Actor:  ev.Actor.ID,
	}
	msg := hub.NewMessage(protocol.EventAlertChanged, data)

	b.publish(topic.AdminAlerts(), msg)
	b.publish(topic.Alert(ev.Alert.ID), msg)
	if ev.Alert.HasLocation() {
		b.publish(topic.MapAlerts(), msg)
	}
	b.export(ctx, protocol.EventAlertChanged, ev.Alert.ID, ev.At, data)
	b.MarkDashboardDirty()
}

// LocationChanged -> location:{id}, alert:{id}, admin-alerts, map-alerts
func (b *Bridge) LocationChanged(ctx context.Context, ev alert.LocationChanged) {
	point := ev.Point
	data := protocol.LocationData{AlertID: ev.AlertID, Location: &point}
	msg := hub.NewMessage(protocol.EventLocationChanged, data)

	b.publish(topic.Location(ev.AlertID), msg)
	b.publish(topic.Alert(ev.AlertID), msg)
	b.publish(topic.AdminAlerts(), msg)
	b.publish(topic.MapAlerts(), msg)
	b.export(ctx, protocol.EventLocationChanged, ev.AlertID, point.Timestamp, data)
}

// ChatPosted -> chat:{id}
func (b *Bridge) ChatPosted(ctx context.Context, ev alert.ChatPosted) {
	data := protocol.Chat(ev.Message)
	b.publish(topic.Chat(ev.AlertID), hub.NewMessage(protocol.EventChatMessage, data))
	b.export(ctx, protocol.EventChatMessage, ev.AlertID, ev.Message.Timestamp, data)
}

// UserNotified -> user:{id}
func (b *Bridge) UserNotified(ctx context.Context, ev alert.UserNotified) {
	data := protocol.NotificationData{
		Title:     ev.Title,
		Message:   ev.Message,
		AlertID:   ev.AlertID,
		From:      ev.From.DisplayName(),
		Timestamp: ev.At,
	}
	b.publish(topic.User(ev.UserID), hub.NewMessage(protocol.EventUserNotification, data))
}

// MarkDashboardDirty 请求一次异步的面板刷新，多次请求会合并
func (b *Bridge) MarkDashboardDirty() {
	select {
	case b.dirty <- struct{}{}:
	default:
	}
}

// Run 处理面板刷新，直到 ctx 结束
func (b *Bridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.dirty:
			b.RefreshDashboard(ctx)
		}
	}
}

// RefreshDashboard 有订阅者时计算统计并推送到 admin-dashboard
func (b *Bridge) RefreshDashboard(ctx context.Context) {
	if b.stats == nil || b.hub.Members(topic.AdminDashboard().String()) == 0 {
		return
	}
	st, err := b.stats.Stats(ctx)
	if err != nil {
		logger.Error("compute dashboard stats failed", zap.Error(err))
		return
	}
	b.publish(topic.AdminDashboard(), hub.NewMessage(protocol.EventDashboardStats, st))
}

// Close 关闭所有导出
func (b *Bridge) Close() error {
	var first error
	for _, s := range b.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
