// Package eventsink exports domain events to systems outside the realtime hub.
package eventsink

import (
	"context"
	"encoding/json"
	"time"
)

// Envelope 对外导出的事件
type Envelope struct {
	Type    string          `json:"type"`
	Key     string          `json:"key"` // 分区键，通常为报警 id
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope 编码 payload
func NewEnvelope(eventType, key string, at time.Time, payload interface{}) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: eventType, Key: key, At: at, Payload: raw}, nil
}

// Sink 事件出口，Emit 不得长时间阻塞
type Sink interface {
	Emit(ctx context.Context, env Envelope) error
	Close() error
}

// Nop 丢弃所有事件
type Nop struct{}

func (Nop) Emit(context.Context, Envelope) error { return nil }
func (Nop) Close() error                         { return nil }
