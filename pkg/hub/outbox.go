package hub

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrOutboxClosed 订阅者已关闭
var ErrOutboxClosed = errors.New("outbox closed")

// Outbox 单个订阅者的有界发送队列，由订阅者自己的写协程消费。
// 队列 channel 永不关闭，关闭状态由 done 表示，Offer 在关闭后不会 panic。
type Outbox struct {
	id    string
	queue chan []byte
	done  chan struct{}

	closeOnce    sync.Once
	overflowOnce sync.Once
	onOverflow   func()
	dropped      atomic.Int64
}

// NewOutbox size 为队列容量
func NewOutbox(id string, size int) *Outbox {
	if size <= 0 {
		size = 1
	}
	return &Outbox{
		id:    id,
		queue: make(chan []byte, size),
		done:  make(chan struct{}),
	}
}

// OnOverflow 设置队列溢出时的回调，只触发一次
func (o *Outbox) OnOverflow(fn func()) { o.onOverflow = fn }

func (o *Outbox) ID() string { return o.id }

// Offer 非阻塞入队，队列满或已关闭时返回 false
func (o *Outbox) Offer(data []byte) bool {
	select {
	case <-o.done:
		return false
	default:
	}
	select {
	case o.queue <- data:
		return true
	default:
		o.dropped.Add(1)
		return false
	}
}

// Push 阻塞入队，用于必须送达发送者本人的回复
func (o *Outbox) Push(ctx context.Context, data []byte) error {
	select {
	case <-o.done:
		return ErrOutboxClosed
	default:
	}
	select {
	case o.queue <- data:
		return nil
	case <-o.done:
		return ErrOutboxClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Overflow 由 Hub 在背压断连策略下调用
func (o *Outbox) Overflow() {
	o.overflowOnce.Do(func() {
		if o.onOverflow != nil {
			o.onOverflow()
		}
	})
}

// C 写协程读取的队列
func (o *Outbox) C() <-chan []byte { return o.queue }

// Done 关闭信号
func (o *Outbox) Done() <-chan struct{} { return o.done }

// Close 幂等
func (o *Outbox) Close() {
	o.closeOnce.Do(func() { close(o.done) })
}

// Dropped 因队列满被丢弃的消息数
func (o *Outbox) Dropped() int64 { return o.dropped.Load() }

// Len 当前排队数
func (o *Outbox) Len() int { return len(o.queue) }
