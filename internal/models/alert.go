package models

import (
	"time"
)

// AlertType 报警触发方式
type AlertType string

const (
	AlertTypePanicButton  AlertType = "panic_button"
	AlertTypeShakeToAlert AlertType = "shake_to_alert"
	AlertTypeDecoyScreen  AlertType = "decoy_screen"
	AlertTypeManual       AlertType = "manual"
	AlertTypeScheduled    AlertType = "scheduled"
)

// AlertTypes 所有合法的报警类型
var AlertTypes = []AlertType{
	AlertTypePanicButton, AlertTypeShakeToAlert, AlertTypeDecoyScreen, AlertTypeManual, AlertTypeScheduled,
}

func (t AlertType) Valid() bool {
	for _, v := range AlertTypes {
		if v == t {
			return true
		}
	}
	return false
}

// AlertStatus 报警状态，只允许 alert 状态机修改
type AlertStatus string

const (
	StatusActive       AlertStatus = "active"
	StatusAcknowledged AlertStatus = "acknowledged"
	StatusResponding   AlertStatus = "responding"
	StatusResolved     AlertStatus = "resolved"
	StatusFalseAlarm   AlertStatus = "false_alarm"
	StatusCanceled     AlertStatus = "canceled"
)

// IsTerminal 终态不允许再迁移
func (s AlertStatus) IsTerminal() bool {
	switch s {
	case StatusResolved, StatusFalseAlarm, StatusCanceled:
		return true
	}
	return false
}

const (
	MinPriority     = 1
	MaxPriority     = 5
	DefaultPriority = 4
)

// Alert 一次紧急求助
type Alert struct {
	ID                string      `gorm:"primaryKey;size:36" json:"id"`
	UserID            string      `gorm:"size:64;index;not null" json:"user"`                  // 发起人，创建后不可变
	AlertType         AlertType   `gorm:"size:20;not null" json:"alert_type"`                  // 触发方式
	Status            AlertStatus `gorm:"size:20;index;not null;default:active" json:"status"` // 状态
	Priority          int         `gorm:"not null;default:4" json:"priority"`                  // 1 最高 5 最低
	Latitude          *float64    `json:"latitude"`                                            // 最近一次定位
	Longitude         *float64    `json:"longitude"`
	LocationAccuracy  *float64    `json:"location_accuracy"`                                   // 米
	Address           string      `gorm:"size:512" json:"address"`
	Description       string      `gorm:"type:text" json:"description"`
	IsSilent          bool        `json:"is_silent"`                                           // 静默报警
	AutoCallEmergency bool        `json:"auto_call_emergency"`
	AssignedOperator  string      `gorm:"size:64;index" json:"assigned_operator,omitempty"`    // 接警员
	OperatorNotes     string      `gorm:"type:text" json:"operator_notes"`                     // 只追加
	DeviceInfo        Blob        `gorm:"type:text" json:"device_info,omitempty"`              // 透传
	NetworkInfo       Blob        `gorm:"type:text" json:"network_info,omitempty"`             // 透传
	CreatedAt         time.Time   `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
	AcknowledgedAt    *time.Time  `json:"acknowledged_at"`
	ResolvedAt        *time.Time  `json:"resolved_at"`
	Version           int64       `gorm:"not null;default:0" json:"-"`                         // 乐观锁
}

func (Alert) TableName() string { return "panic_alerts" }

// IsActive 非终态即为进行中
func (a *Alert) IsActive() bool {
	return !a.Status.IsTerminal()
}

// HasLocation 是否已有定位
func (a *Alert) HasLocation() bool {
	return a.Latitude != nil && a.Longitude != nil
}

// Clone 深拷贝，事件与快照只使用拷贝
func (a *Alert) Clone() *Alert {
	if a == nil {
		return nil
	}
	c := *a
	c.Latitude = cloneFloat(a.Latitude)
	c.Longitude = cloneFloat(a.Longitude)
	c.LocationAccuracy = cloneFloat(a.LocationAccuracy)
	c.AcknowledgedAt = cloneTime(a.AcknowledgedAt)
	c.ResolvedAt = cloneTime(a.ResolvedAt)
	c.DeviceInfo = a.DeviceInfo.Clone()
	c.NetworkInfo = a.NetworkInfo.Clone()
	return &c
}

// ApplyLocation 用最新定位覆盖快照
func (a *Alert) ApplyLocation(p *LocationUpdate) {
	a.Latitude = cloneFloat(&p.Latitude)
	a.Longitude = cloneFloat(&p.Longitude)
	a.LocationAccuracy = cloneFloat(p.Accuracy)
}

// AlertView 推送与接口返回的报警投影
type AlertView struct {
	*Alert
	IsActive        bool  `json:"is_active"`
	DurationSeconds int64 `json:"duration_seconds"`
}

// View 生成投影
func (a *Alert) View(now time.Time) AlertView {
	c := a.Clone()
	return AlertView{Alert: c, IsActive: c.IsActive(), DurationSeconds: c.duration(now)}
}

func (a *Alert) duration(now time.Time) int64 {
	end := now
	if a.ResolvedAt != nil {
		end = *a.ResolvedAt
	}
	if end.Before(a.CreatedAt) {
		return 0
	}
	return int64(end.Sub(a.CreatedAt).Seconds())
}

// MapView 地图页只需要的字段
type MapView struct {
	ID               string      `json:"id"`
	User             string      `json:"user"`
	Status           AlertStatus `json:"status"`
	AlertType        AlertType   `json:"alert_type"`
	Priority         int         `json:"priority"`
	Lat              float64     `json:"lat"`
	Lng              float64     `json:"lng"`
	Accuracy         *float64    `json:"accuracy"`
	Address          string      `json:"address"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
	AssignedOperator string      `json:"assigned_operator,omitempty"`
	DurationSeconds  int64       `json:"duration_seconds"`
}

// MapView 没有定位的报警返回 false
func (a *Alert) MapView(now time.Time) (MapView, bool) {
	if !a.HasLocation() {
		return MapView{}, false
	}
	return MapView{
		ID:               a.ID,
		User:             a.UserID,
		Status:           a.Status,
		AlertType:        a.AlertType,
		Priority:         a.Priority,
		Lat:              *a.Latitude,
		Lng:              *a.Longitude,
		Accuracy:         cloneFloat(a.LocationAccuracy),
		Address:          a.Address,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
		AssignedOperator: a.AssignedOperator,
		DurationSeconds:  a.duration(now),
	}, true
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
