// Package store persists alerts with their location and chat history.
package store

import (
	"context"
	"time"

	"Beacon/internal/models"
	apperrors "Beacon/pkg/errors"
)

var (
	// ErrNotFound 报警不存在
	ErrNotFound = apperrors.NotFound("alert not found")
	// ErrConflict Save 时版本号已过期
	ErrConflict = apperrors.Conflict("alert was modified concurrently")
)

// AlertStore 报警状态的唯一数据源。Save 对同一 id 的并发调用是原子的：
// 只有版本号与已存储版本一致时才写入，成功后版本号加一。
type AlertStore interface {
	// Create 写入新报警，initial 不为空时作为第一条定位
	Create(ctx context.Context, alert *models.Alert, initial *models.LocationUpdate) error
	Load(ctx context.Context, id string) (*models.Alert, error)
	Save(ctx context.Context, alert *models.Alert) error
	AppendLocation(ctx context.Context, alertID string, point *models.LocationUpdate) error
	AppendChat(ctx context.Context, alertID string, msg *models.ChatMessage) error

	Locations(ctx context.Context, alertID string) ([]models.LocationUpdate, error)
	LastLocation(ctx context.Context, alertID string) (*models.LocationUpdate, error)
	Chats(ctx context.Context, alertID string, limit int) ([]models.ChatMessage, error)
	ListActive(ctx context.Context) ([]*models.Alert, error)
	ListByUser(ctx context.Context, userID string, activeOnly bool) ([]*models.Alert, error)
	Stats(ctx context.Context, now time.Time) (*models.DashboardStats, error)

	Close() error
}

// ActiveStatuses 进行中的状态
var ActiveStatuses = []models.AlertStatus{models.StatusActive, models.StatusAcknowledged, models.StatusResponding}

// statsWindow 统计窗口起点：今天零点、本周一、本月一号
func statsWindow(now time.Time) (day, week, month time.Time) {
	y, m, d := now.Date()
	day = time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	offset := (int(day.Weekday()) + 6) % 7
	week = day.AddDate(0, 0, -offset)
	month = time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
	return day, week, month
}

func newStats() *models.DashboardStats {
	return &models.DashboardStats{
		AlertTypes:        make(map[models.AlertType]int64),
		PriorityBreakdown: make(map[int]int64),
	}
}
