package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Beacon/internal/models"
	apperrors "Beacon/pkg/errors"

	"gorm.io/gorm"
)

// GormStore 基于 gorm 的持久化实现，支持 sqlite/mysql/postgres
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 自动迁移三张表
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&models.Alert{}, &models.LocationUpdate{}, &models.ChatMessage{}); err != nil {
		return nil, apperrors.Wrap(err, "migrate alert tables")
	}
	return &GormStore{db: db}, nil
}

// DB 暴露给健康检查
func (s *GormStore) DB() *gorm.DB { return s.db }

func (s *GormStore) Create(ctx context.Context, alert *models.Alert, initial *models.LocationUpdate) error {
	alert.Version = 1
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(alert).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrConflict
			}
			return apperrors.Wrap(err, "create alert")
		}
		if initial != nil {
			initial.AlertID = alert.ID
			if err := tx.Create(initial).Error; err != nil {
				return apperrors.Wrap(err, "create initial location")
			}
		}
		return nil
	})
}

func (s *GormStore) Load(ctx context.Context, id string) (*models.Alert, error) {
	var a models.Alert
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "load alert")
	}
	return &a, nil
}

// Save 以版本号做比较并交换
func (s *GormStore) Save(ctx context.Context, alert *models.Alert) error {
	prev := alert.Version
	next := alert.Clone()
	next.Version = prev + 1

	res := s.db.WithContext(ctx).
		Model(next).
		Where("version = ?", prev).
		Select("*").
		Omit("id", "user_id", "created_at").
		Updates(next)
	if res.Error != nil {
		return apperrors.Wrap(res.Error, "save alert")
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Alert{}).Where("id = ?", alert.ID).Count(&count).Error; err != nil {
			return apperrors.Wrap(err, "save alert")
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrConflict
	}
	alert.Version = next.Version
	alert.UpdatedAt = next.UpdatedAt
	return nil
}

func (s *GormStore) exists(ctx context.Context, id string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Alert{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return apperrors.Wrap(err, "lookup alert")
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) AppendLocation(ctx context.Context, alertID string, point *models.LocationUpdate) error {
	if err := s.exists(ctx, alertID); err != nil {
		return err
	}
	point.ID = 0
	point.AlertID = alertID
	if err := s.db.WithContext(ctx).Create(point).Error; err != nil {
		return apperrors.Wrap(err, "append location")
	}
	return nil
}

func (s *GormStore) AppendChat(ctx context.Context, alertID string, msg *models.ChatMessage) error {
	if err := s.exists(ctx, alertID); err != nil {
		return err
	}
	msg.AlertID = alertID
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return apperrors.Wrap(err, "append chat")
	}
	return nil
}

func (s *GormStore) Locations(ctx context.Context, alertID string) ([]models.LocationUpdate, error) {
	if err := s.exists(ctx, alertID); err != nil {
		return nil, err
	}
	var out []models.LocationUpdate
	err := s.db.WithContext(ctx).Where("alert_id = ?", alertID).Order("timestamp ASC, id ASC").Find(&out).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "list locations")
	}
	return out, nil
}

func (s *GormStore) LastLocation(ctx context.Context, alertID string) (*models.LocationUpdate, error) {
	if err := s.exists(ctx, alertID); err != nil {
		return nil, err
	}
	var p models.LocationUpdate
	err := s.db.WithContext(ctx).Where("alert_id = ?", alertID).Order("timestamp DESC, id DESC").Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "last location")
	}
	return &p, nil
}

func (s *GormStore) Chats(ctx context.Context, alertID string, limit int) ([]models.ChatMessage, error) {
	if err := s.exists(ctx, alertID); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Where("alert_id = ?", alertID).Order("timestamp DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.ChatMessage
	if err := q.Find(&out).Error; err != nil {
		return nil, apperrors.Wrap(err, "list chat")
	}
	// 倒序取最近 N 条后翻转为正序
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *GormStore) ListActive(ctx context.Context) ([]*models.Alert, error) {
	var out []*models.Alert
	err := s.db.WithContext(ctx).Where("status IN ?", ActiveStatuses).Order("created_at DESC").Find(&out).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "list active alerts")
	}
	return out, nil
}

func (s *GormStore) ListByUser(ctx context.Context, userID string, activeOnly bool) ([]*models.Alert, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if activeOnly {
		q = q.Where("status IN ?", ActiveStatuses)
	}
	var out []*models.Alert
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, apperrors.Wrap(err, "list user alerts")
	}
	return out, nil
}

type typeCount struct {
	AlertType string
	Total     int64
}

type priorityCount struct {
	Priority int
	Total    int64
}

func (s *GormStore) Stats(ctx context.Context, now time.Time) (*models.DashboardStats, error) {
	day, week, month := statsWindow(now)
	st := newStats()
	db := s.db.WithContext(ctx)
	base := func() *gorm.DB { return db.Model(&models.Alert{}) }

	counts := []struct {
		dst   *int64
		query func() *gorm.DB
	}{
		{&st.TotalAlerts, base},
		{&st.ActiveAlerts, func() *gorm.DB { return base().Where("status IN ?", ActiveStatuses) }},
		{&st.AcknowledgedAlerts, func() *gorm.DB { return base().Where("status = ?", models.StatusAcknowledged) }},
		{&st.ResolvedAlerts, func() *gorm.DB { return base().Where("status = ?", models.StatusResolved) }},
		{&st.AlertsToday, func() *gorm.DB { return base().Where("created_at >= ?", day) }},
		{&st.AlertsThisWeek, func() *gorm.DB { return base().Where("created_at >= ?", week) }},
		{&st.AlertsThisMonth, func() *gorm.DB { return base().Where("created_at >= ?", month) }},
	}
	for _, c := range counts {
		if err := c.query().Count(c.dst).Error; err != nil {
			return nil, apperrors.Wrap(err, "count alerts")
		}
	}

	var types []typeCount
	if err := base().Select("alert_type, COUNT(*) AS total").Group("alert_type").Scan(&types).Error; err != nil {
		return nil, apperrors.Wrap(err, "count alert types")
	}
	for _, g := range types {
		st.AlertTypes[models.AlertType(g.AlertType)] = g.Total
	}

	var priorities []priorityCount
	if err := base().Select("priority, COUNT(*) AS total").Group("priority").Scan(&priorities).Error; err != nil {
		return nil, apperrors.Wrap(err, "count priorities")
	}
	for _, p := range priorities {
		st.PriorityBreakdown[p.Priority] = p.Total
	}

	// 平均响应时间在应用层计算，避免各数据库时间函数差异
	var acked []models.Alert
	if err := base().Select("created_at, acknowledged_at").Where("acknowledged_at IS NOT NULL").Find(&acked).Error; err != nil {
		return nil, apperrors.Wrap(err, "response times")
	}
	if len(acked) > 0 {
		var total float64
		for _, a := range acked {
			total += a.AcknowledgedAt.Sub(a.CreatedAt).Seconds()
		}
		avg := total / float64(len(acked))
		st.AverageResponseTime = &avg
	}
	return st, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return sqlDB.Close()
}
