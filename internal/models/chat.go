package models

import "time"

// SenderRole 聊天发送方
type SenderRole string

const (
	SenderUser     SenderRole = "user"
	SenderOperator SenderRole = "operator"
)

// ChatMessage 报警内的对话，只追加
type ChatMessage struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	AlertID    string     `gorm:"size:36;index;not null" json:"alert_id"`
	SenderID   string     `gorm:"size:64;not null" json:"sender_id"`
	SenderName string     `gorm:"size:128" json:"sender"`
	SenderRole SenderRole `gorm:"size:16;not null" json:"sender_role"`
	Text       string     `gorm:"type:text;not null" json:"message"`
	Timestamp  time.Time  `gorm:"index" json:"timestamp"`
}

func (ChatMessage) TableName() string { return "alert_chat_messages" }

// IsStaff 由接警员发送
func (m *ChatMessage) IsStaff() bool { return m.SenderRole == SenderOperator }
