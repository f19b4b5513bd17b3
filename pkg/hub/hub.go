// Package hub keeps per-topic subscriber sets and fans messages out to them.
package hub

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
)

// Subscriber 订阅者句柄
type Subscriber interface {
	ID() string
	// Offer 必须非阻塞
	Offer(data []byte) bool
	// Overflow 在断连策略下通知订阅者其队列已满
	Overflow()
}

// Observer 发布结果观察者，可接 Prometheus
type Observer interface {
	Published(topic string, delivered, dropped int)
}

// Config Hub配置
type Config struct {
	// 分片数量，降低不同主题之间的锁竞争
	ShardCount int
	// 慢消费者策略：队列满时断开，false 时只丢弃该条消息
	CloseOnBackpressure bool
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		ShardCount:          16,
		CloseOnBackpressure: true,
	}
}

type shard struct {
	mu     sync.RWMutex
	topics map[string]map[string]Subscriber
}

// Hub 主题到订阅者集合的映射。Hub 不包含任何业务逻辑。
type Hub struct {
	config   *Config
	shards   []*shard
	observer Observer

	published atomic.Int64
	delivered atomic.Int64
	dropped   atomic.Int64
}

// NewHub 创建新的Hub实例
func NewHub(config *Config) *Hub {
	if config == nil {
		config = DefaultConfig()
	}
	if config.ShardCount <= 0 {
		config.ShardCount = 1
	}
	h := &Hub{config: config, shards: make([]*shard, config.ShardCount)}
	for i := range h.shards {
		h.shards[i] = &shard{topics: make(map[string]map[string]Subscriber)}
	}
	return h
}

// SetObserver 设置观察者，需在使用前调用
func (h *Hub) SetObserver(o Observer) { h.observer = o }

func (h *Hub) shardFor(topic string) *shard {
	f := fnv.New32a()
	_, _ = f.Write([]byte(topic))
	return h.shards[f.Sum32()%uint32(len(h.shards))]
}

// Join 加入主题，同一 ID 重复加入视为一次
func (h *Hub) Join(topic string, sub Subscriber) {
	h.JoinWith(topic, sub, nil)
}

// JoinWith 加入主题并在同一临界区内执行 fn。fn 返回前该分片上的发布都会等待，
// 因此 fn 读到的状态与其后投递的事件之间没有空隙。fn 内不得再调用本 Hub。
func (h *Hub) JoinWith(topic string, sub Subscriber, fn func()) {
	s := h.shardFor(topic)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.join(topic, sub)
	if fn != nil {
		fn()
	}
}

func (s *shard) join(topic string, sub Subscriber) {
	members, ok := s.topics[topic]
	if !ok {
		members = make(map[string]Subscriber)
		s.topics[topic] = members
	}
	members[sub.ID()] = sub
}

// Leave 幂等，可对从未加入的主题调用
func (h *Hub) Leave(topic string, sub Subscriber) {
	s := h.shardFor(topic)
	s.mu.Lock()
	defer s.mu.Unlock()
	members, ok := s.topics[topic]
	if !ok {
		return
	}
	delete(members, sub.ID())
	if len(members) == 0 {
		delete(s.topics, topic)
	}
}

// snapshot 在读锁下复制成员列表
func (h *Hub) snapshot(topic string) []Subscriber {
	s := h.shardFor(topic)
	s.mu.RLock()
	defer s.mu.RUnlock()
	members := s.topics[topic]
	if len(members) == 0 {
		return nil
	}
	out := make([]Subscriber, 0, len(members))
	for _, sub := range members {
		out = append(out, sub)
	}
	return out
}

// Publish 编码一次后投递给调用时刻的成员快照，返回成功入队的数量
func (h *Hub) Publish(topic string, msg *Message) (int, error) {
	m := *msg
	m.Topic = topic
	data, err := m.Encode()
	if err != nil {
		return 0, err
	}
	return h.PublishRaw(topic, data), nil
}

// PublishRaw 投递已编码的数据。永不阻塞在慢订阅者上。
func (h *Hub) PublishRaw(topic string, data []byte) int {
	members := h.snapshot(topic)
	delivered, dropped := 0, 0
	for _, sub := range members {
		if h.trySend(sub, data) {
			delivered++
		} else {
			dropped++
		}
	}

	h.published.Add(1)
	h.delivered.Add(int64(delivered))
	h.dropped.Add(int64(dropped))
	if h.observer != nil {
		h.observer.Published(topic, delivered, dropped)
	}
	return delivered
}

func (h *Hub) trySend(sub Subscriber, data []byte) bool {
	if sub.Offer(data) {
		return true
	}
	if h.config.CloseOnBackpressure {
		sub.Overflow()
	}
	return false
}

// Members 主题当前成员数
func (h *Hub) Members(topic string) int {
	s := h.shardFor(topic)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.topics[topic])
}

// IsMember 是否已加入
func (h *Hub) IsMember(topic, subID string) bool {
	s := h.shardFor(topic)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.topics[topic][subID]
	return ok
}

// Stats Hub统计
type Stats struct {
	Topics        int   `json:"topics"`
	Subscriptions int   `json:"subscriptions"`
	Published     int64 `json:"published"`
	Delivered     int64 `json:"delivered"`
	Dropped       int64 `json:"dropped"`
}

func (h *Hub) Stats() Stats {
	st := Stats{
		Published: h.published.Load(),
		Delivered: h.delivered.Load(),
		Dropped:   h.dropped.Load(),
	}
	for _, s := range h.shards {
		s.mu.RLock()
		st.Topics += len(s.topics)
		for _, members := range s.topics {
			st.Subscriptions += len(members)
		}
		s.mu.RUnlock()
	}
	return st
}
