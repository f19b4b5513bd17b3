package session

import (
	"context"
	"sync"
	"time"

	"Beacon/internal/access"
	"Beacon/internal/alert"
	"Beacon/internal/auth"
	"Beacon/internal/models"
	apperrors "Beacon/pkg/errors"
	"Beacon/pkg/hub"
)

// AlertService 会话用到的报警操作
type AlertService interface {
	Now() time.Time
	Get(ctx context.Context, p access.Principal, alertID string) (*models.Alert, error)
	ActiveAlerts(ctx context.Context) ([]*models.Alert, error)
	UserAlerts(ctx context.Context, userID string) ([]*models.Alert, error)
	MapAlerts(ctx context.Context) ([]models.MapView, error)
	Stats(ctx context.Context) (*models.DashboardStats, error)
	LastLocation(ctx context.Context, alertID string) (*models.LocationUpdate, error)
	Chats(ctx context.Context, alertID string, limit int) ([]models.ChatMessage, error)

	Acknowledge(ctx context.Context, p access.Principal, alertID string) (*models.Alert, error)
	MarkResponding(ctx context.Context, p access.Principal, alertID string) (*models.Alert, error)
	Resolve(ctx context.Context, p access.Principal, alertID, notes string) (*models.Alert, error)
	MarkFalseAlarm(ctx context.Context, p access.Principal, alertID, notes string) (*models.Alert, error)
	Cancel(ctx context.Context, p access.Principal, alertID string) (*models.Alert, error)
	RecordLocation(ctx context.Context, p access.Principal, alertID string, in alert.LocationInput) (*models.LocationUpdate, error)
	PostChat(ctx context.Context, p access.Principal, alertID, text string) (*models.ChatMessage, error)
}

var _ AlertService = (*alert.Service)(nil)

// Deps 会话依赖
type Deps struct {
	Auth   auth.Authenticator
	Access *access.Evaluator
	Alerts AlertService
	Hub    *hub.Hub
}

// Observer 会话指标，可接 Prometheus
type Observer interface {
	SessionOpened(kind string)
	SessionClosed(kind string, code int, lifetime time.Duration)
	CommandHandled(kind, command, code string, took time.Duration)
}

// Config 会话配置
type Config struct {
	// 0 不限制
	MaxConnections int64
	// 单连接发送队列容量
	OutboxSize int
}

func DefaultConfig() *Config {
	return &Config{OutboxSize: 256}
}

// Manager 跟踪所有活跃会话
type Manager struct {
	config   *Config
	deps     Deps
	observer Observer

	mu       sync.RWMutex
	sessions map[string]*Session
	byUser   map[string]map[string]*Session
	started  map[string]time.Time
}

var _ alert.Presence = (*Manager)(nil)

func NewManager(config *Config, deps Deps) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	if config.OutboxSize <= 0 {
		config.OutboxSize = DefaultConfig().OutboxSize
	}
	return &Manager{
		config:   config,
		deps:     deps,
		sessions: make(map[string]*Session),
		byUser:   make(map[string]map[string]*Session),
		started:  make(map[string]time.Time),
	}
}

func (m *Manager) SetObserver(o Observer) { m.observer = o }

// Serve 运行一个会话直到结束，阻塞
func (m *Manager) Serve(ctx context.Context, kind *Kind, params Params, creds auth.Credentials, tr Transport) *Session {
	s := newSession(m, kind, params, tr)
	s.run(ctx, creds)
	return s
}

func (m *Manager) register(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.config.MaxConnections > 0 && int64(len(m.sessions)) >= m.config.MaxConnections {
		return ErrConnectionLimit
	}
	m.sessions[s.id] = s
	uid := s.principal.ID
	if m.byUser[uid] == nil {
		m.byUser[uid] = make(map[string]*Session)
	}
	m.byUser[uid][s.id] = s
	m.started[s.id] = time.Now()
	return nil
}

func (m *Manager) unregister(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, s.id)
	delete(m.started, s.id)
	uid := s.principal.ID
	if set := m.byUser[uid]; set != nil {
		delete(set, s.id)
		if len(set) == 0 {
			delete(m.byUser, uid)
		}
	}
}

func (m *Manager) opened(s *Session) {
	if m.observer != nil {
		m.observer.SessionOpened(s.kind.Name)
	}
}

func (m *Manager) closed(s *Session) {
	if m.observer == nil {
		return
	}
	m.mu.RLock()
	started, ok := m.started[s.id]
	m.mu.RUnlock()
	var lifetime time.Duration
	if ok {
		lifetime = time.Since(started)
	}
	m.observer.SessionClosed(s.kind.Name, s.closeCode, lifetime)
}

func (m *Manager) handled(s *Session, command string, err error, took time.Duration) {
	if m.observer == nil {
		return
	}
	code := "ok"
	if err != nil {
		code = string(apperrors.CodeOf(err))
	}
	m.observer.CommandHandled(s.kind.Name, command, code, took)
}

// Count 活跃会话数
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CountByKind 按类型统计
func (m *Manager) CountByKind() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int)
	for _, s := range m.sessions {
		out[s.kind.Name]++
	}
	return out
}

// OnlineUsers 有活跃会话的不同用户数
func (m *Manager) OnlineUsers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byUser)
}

// CloseUser 服务端关闭某用户的所有会话，返回关闭数量
func (m *Manager) CloseUser(userID string, code int, reason string) int {
	m.mu.RLock()
	targets := make([]*Session, 0, len(m.byUser[userID]))
	for _, s := range m.byUser[userID] {
		targets = append(targets, s)
	}
	m.mu.RUnlock()
	for _, s := range targets {
		s.RequestClose(code, reason)
	}
	return len(targets)
}

// CloseAll 关闭所有会话
func (m *Manager) CloseAll(code int, reason string) {
	m.mu.RLock()
	targets := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		targets = append(targets, s)
	}
	m.mu.RUnlock()
	for _, s := range targets {
		s.RequestClose(code, reason)
	}
}
