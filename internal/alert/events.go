package alert

import (
	"context"
	"time"

	"Beacon/internal/access"
	"Beacon/internal/models"
)

// ChangeKind AlertChanged 的原因
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
)

// AlertChanged 每次成功迁移（含创建）恰好一次
type AlertChanged struct {
	Kind  ChangeKind
	Alert *models.Alert
	Actor access.Principal
	At    time.Time
}

// LocationChanged 每次成功写入定位恰好一次
type LocationChanged struct {
	AlertID string
	Point   models.LocationUpdate
	Alert   *models.Alert
}

// ChatPosted 报警对话新消息
type ChatPosted struct {
	AlertID string
	Message models.ChatMessage
}

// UserNotified 发给某个用户的通知
type UserNotified struct {
	UserID  string
	Title   string
	Message string
	AlertID string
	From    access.Principal
	At      time.Time
}

// Emitter 事件出口，由事件桥实现。调用方在报警锁内调用，实现不得阻塞。
type Emitter interface {
	AlertChanged(ctx context.Context, ev AlertChanged)
	LocationChanged(ctx context.Context, ev LocationChanged)
	ChatPosted(ctx context.Context, ev ChatPosted)
	UserNotified(ctx context.Context, ev UserNotified)
}

type nopEmitter struct{}

func (nopEmitter) AlertChanged(context.Context, AlertChanged)       {}
func (nopEmitter) LocationChanged(context.Context, LocationChanged) {}
func (nopEmitter) ChatPosted(context.Context, ChatPosted)           {}
func (nopEmitter) UserNotified(context.Context, UserNotified)       {}
