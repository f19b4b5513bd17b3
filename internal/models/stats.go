package models

// DashboardStats 管理面板统计
type DashboardStats struct {
	TotalAlerts         int64               `json:"total_alerts"`
	ActiveAlerts        int64               `json:"active_alerts"`
	AcknowledgedAlerts  int64               `json:"acknowledged_alerts"`
	ResolvedAlerts      int64               `json:"resolved_alerts"`
	AlertsToday         int64               `json:"alerts_today"`
	AlertsThisWeek      int64               `json:"alerts_this_week"`
	AlertsThisMonth     int64               `json:"alerts_this_month"`
	AverageResponseTime *float64            `json:"average_response_time"` // 秒，创建到受理
	AlertTypes          map[AlertType]int64 `json:"alert_types"`
	PriorityBreakdown   map[int]int64       `json:"priority_breakdown"`
	OnlineUsers         int                 `json:"online_users"`
}
