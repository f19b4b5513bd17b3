package hub

import (
	"encoding/json"
	"time"
)

// Message 推送给订阅者的消息，统一编码为 {"type","topic","data","timestamp"}
type Message struct {
	Type      string      `json:"type"`
	Topic     string      `json:"topic,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// NewMessage 创建消息，时间戳为毫秒
func NewMessage(msgType string, data interface{}) *Message {
	return &Message{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Encode 编码为 JSON
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}
