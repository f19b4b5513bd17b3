package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"Beacon/internal/models"
)

// MemoryStore 进程内实现，用于测试与单机部署
type MemoryStore struct {
	mu        sync.RWMutex
	alerts    map[string]*models.Alert
	locations map[string][]models.LocationUpdate
	chats     map[string][]models.ChatMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		alerts:    make(map[string]*models.Alert),
		locations: make(map[string][]models.LocationUpdate),
		chats:     make(map[string][]models.ChatMessage),
	}
}

func (s *MemoryStore) Create(ctx context.Context, alert *models.Alert, initial *models.LocationUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[alert.ID]; ok {
		return ErrConflict
	}
	alert.Version = 1
	s.alerts[alert.ID] = alert.Clone()
	if initial != nil {
		initial.AlertID = alert.ID
		s.locations[alert.ID] = append(s.locations[alert.ID], *initial)
	}
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, id string) (*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, alert *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.alerts[alert.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != alert.Version {
		return ErrConflict
	}
	alert.Version++
	s.alerts[alert.ID] = alert.Clone()
	return nil
}

func (s *MemoryStore) AppendLocation(ctx context.Context, alertID string, point *models.LocationUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[alertID]; !ok {
		return ErrNotFound
	}
	point.AlertID = alertID
	history := s.locations[alertID]
	point.ID = uint(len(history) + 1)
	s.locations[alertID] = append(history, *point)
	return nil
}

func (s *MemoryStore) AppendChat(ctx context.Context, alertID string, msg *models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[alertID]; !ok {
		return ErrNotFound
	}
	msg.AlertID = alertID
	s.chats[alertID] = append(s.chats[alertID], *msg)
	return nil
}

func (s *MemoryStore) Locations(ctx context.Context, alertID string) ([]models.LocationUpdate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.alerts[alertID]; !ok {
		return nil, ErrNotFound
	}
	return append([]models.LocationUpdate(nil), s.locations[alertID]...), nil
}

// LastLocation 没有定位时返回 nil, nil
func (s *MemoryStore) LastLocation(ctx context.Context, alertID string) (*models.LocationUpdate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.alerts[alertID]; !ok {
		return nil, ErrNotFound
	}
	history := s.locations[alertID]
	if len(history) == 0 {
		return nil, nil
	}
	last := history[len(history)-1]
	return &last, nil
}

// Chats 返回最近 limit 条，按时间正序；limit<=0 返回全部
func (s *MemoryStore) Chats(ctx context.Context, alertID string, limit int) ([]models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.alerts[alertID]; !ok {
		return nil, ErrNotFound
	}
	msgs := s.chats[alertID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]models.ChatMessage(nil), msgs...), nil
}

func (s *MemoryStore) ListActive(ctx context.Context) ([]*models.Alert, error) {
	return s.filter(func(a *models.Alert) bool { return a.IsActive() }), nil
}

func (s *MemoryStore) ListByUser(ctx context.Context, userID string, activeOnly bool) ([]*models.Alert, error) {
	return s.filter(func(a *models.Alert) bool {
		return a.UserID == userID && (!activeOnly || a.IsActive())
	}), nil
}

// filter 按创建时间倒序
func (s *MemoryStore) filter(keep func(*models.Alert) bool) []*models.Alert {
	s.mu.RLock()
	out := make([]*models.Alert, 0)
	for _, a := range s.alerts {
		if keep(a) {
			out = append(out, a.Clone())
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *MemoryStore) Stats(ctx context.Context, now time.Time) (*models.DashboardStats, error) {
	day, week, month := statsWindow(now)
	st := newStats()
	var responseTotal float64
	var responded int64

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.alerts {
		st.TotalAlerts++
		if a.IsActive() {
			st.ActiveAlerts++
		}
		switch a.Status {
		case models.StatusAcknowledged:
			st.AcknowledgedAlerts++
		case models.StatusResolved:
			st.ResolvedAlerts++
		}
		if !a.CreatedAt.Before(day) {
			st.AlertsToday++
		}
		if !a.CreatedAt.Before(week) {
			st.AlertsThisWeek++
		}
		if !a.CreatedAt.Before(month) {
			st.AlertsThisMonth++
		}
		st.AlertTypes[a.AlertType]++
		st.PriorityBreakdown[a.Priority]++
		if a.AcknowledgedAt != nil {
			responseTotal += a.AcknowledgedAt.Sub(a.CreatedAt).Seconds()
			responded++
		}
	}
	if responded > 0 {
		avg := responseTotal / float64(responded)
		st.AverageResponseTime = &avg
	}
	return st, nil
}

func (s *MemoryStore) Close() error { return nil }
