// Package access decides whether a principal may join a topic or act on an alert.
package access

import (
	"Beacon/internal/topic"
)

// Role 身份角色
type Role string

const (
	RoleStaff Role = "staff"
	RoleUser  Role = "user"
)

// Principal 已认证的调用方
type Principal struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Authenticated 匿名调用方 ID 为空
func (p Principal) Authenticated() bool { return p.ID != "" }

func (p Principal) IsStaff() bool { return p.Authenticated() && p.Role == RoleStaff }

// Owns ownerID 为空时视为不拥有
func (p Principal) Owns(ownerID string) bool {
	return p.Authenticated() && ownerID != "" && p.ID == ownerID
}

// DisplayName 聊天等场景下展示的名字
func (p Principal) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

// Action 针对报警的操作
type Action string

const (
	ActionRead          Action = "read"
	ActionCreate        Action = "create"
	ActionAcknowledge   Action = "acknowledge"
	ActionRespond       Action = "respond"
	ActionResolve       Action = "resolve"
	ActionFalseAlarm    Action = "false_alarm"
	ActionCancel        Action = "cancel"
	ActionWriteLocation Action = "write_location"
	ActionWriteChat     Action = "write_chat"
	ActionNotifyUser    Action = "notify_user"
)

// CanSubscribe 判断能否加入主题。ownerID 只对报警作用域主题有意义，
// user 主题的归属就是主题 id 本身。
func CanSubscribe(p Principal, t topic.Topic, ownerID string) bool {
	if !p.Authenticated() {
		return false
	}
	if p.IsStaff() {
		return true
	}
	switch {
	case t.Family.StaffOnly():
		return false
	case t.Family == topic.FamilyUser:
		return t.ID == p.ID
	case t.Family.AlertScoped():
		return p.Owns(ownerID)
	}
	return false
}

// CanPerform 判断能否执行操作
func CanPerform(p Principal, a Action, ownerID string) bool {
	if !p.Authenticated() {
		return false
	}
	switch a {
	case ActionCreate:
		return true
	case ActionAcknowledge, ActionRespond, ActionResolve, ActionFalseAlarm, ActionNotifyUser:
		return p.IsStaff()
	case ActionCancel, ActionWriteLocation:
		return p.Owns(ownerID)
	case ActionWriteChat, ActionRead:
		return p.IsStaff() || p.Owns(ownerID)
	}
	return false
}
