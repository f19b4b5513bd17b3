// Package topic names the closed set of fan-out addresses.
package topic

import (
	"fmt"
	"strings"
)

// Family 主题族
type Family string

const (
	FamilyAdminAlerts    Family = "admin-alerts"
	FamilyMapAlerts      Family = "map-alerts"
	FamilyAdminDashboard Family = "admin-dashboard"
	FamilyAlert          Family = "alert"
	FamilyLocation       Family = "location"
	FamilyChat           Family = "chat"
	FamilyUser           Family = "user"
)

// Scoped 是否需要 id
func (f Family) Scoped() bool {
	switch f {
	case FamilyAlert, FamilyLocation, FamilyChat, FamilyUser:
		return true
	}
	return false
}

// AlertScoped 以报警 id 为作用域
func (f Family) AlertScoped() bool {
	return f == FamilyAlert || f == FamilyLocation || f == FamilyChat
}

// StaffOnly 全局主题只对工作人员开放
func (f Family) StaffOnly() bool {
	return f == FamilyAdminAlerts || f == FamilyMapAlerts || f == FamilyAdminDashboard
}

// Topic 一个具体的推送地址
type Topic struct {
	Family Family
	ID     string
}

func (t Topic) String() string {
	if t.Family.Scoped() {
		return string(t.Family) + ":" + t.ID
	}
	return string(t.Family)
}

func AdminAlerts() Topic    { return Topic{Family: FamilyAdminAlerts} }
func MapAlerts() Topic      { return Topic{Family: FamilyMapAlerts} }
func AdminDashboard() Topic { return Topic{Family: FamilyAdminDashboard} }

func Alert(id string) Topic    { return Topic{Family: FamilyAlert, ID: id} }
func Location(id string) Topic { return Topic{Family: FamilyLocation, ID: id} }
func Chat(id string) Topic     { return Topic{Family: FamilyChat, ID: id} }
func User(id string) Topic     { return Topic{Family: FamilyUser, ID: id} }

// Parse 解析主题名，未知主题族返回错误
func Parse(s string) (Topic, error) {
	name, id, scoped := strings.Cut(s, ":")
	f := Family(name)
	switch f {
	case FamilyAdminAlerts, FamilyMapAlerts, FamilyAdminDashboard:
		if scoped {
			return Topic{}, fmt.Errorf("topic %q takes no id", s)
		}
		return Topic{Family: f}, nil
	case FamilyAlert, FamilyLocation, FamilyChat, FamilyUser:
		if !scoped || id == "" {
			return Topic{}, fmt.Errorf("topic %q requires an id", s)
		}
		return Topic{Family: f, ID: id}, nil
	}
	return Topic{}, fmt.Errorf("unknown topic %q", s)
}
