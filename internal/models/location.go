package models

import "time"

const DefaultProvider = "gps"

// LocationUpdate 定位历史，只追加
type LocationUpdate struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	AlertID      string    `gorm:"size:36;index:idx_location_alert_ts,priority:1;not null" json:"alert_id"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Accuracy     *float64  `json:"accuracy"`
	Altitude     *float64  `json:"altitude"`
	Speed        *float64  `json:"speed"`
	Heading      *float64  `json:"heading"`
	Provider     string    `gorm:"size:20;default:gps" json:"provider"`
	BatteryLevel *int      `json:"battery_level"`
	Timestamp    time.Time `gorm:"index:idx_location_alert_ts,priority:2" json:"timestamp"`
}

func (LocationUpdate) TableName() string { return "alert_locations" }

// Valid 经纬度范围校验
func (p *LocationUpdate) Valid() bool {
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}
