// Package alert owns the alert lifecycle: transitions, location ingestion and chat.
// Every mutation runs under a per-alert lock and emits its event before the lock
// is released, so subscribers observe events in mutation order.
package alert

import (
	"context"
	"strings"
	"time"

	"Beacon/internal/access"
	"Beacon/internal/models"
	"Beacon/internal/store"
	apperrors "Beacon/pkg/errors"
	"Beacon/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Observer 迁移结果观察者，code 为空表示成功
type Observer interface {
	ObserveTransition(transition string, code string)
}

// Presence 在线用户数来源
type Presence interface {
	OnlineUsers() int
}

// Service 报警生命周期入口，WebSocket 与 REST 共用
type Service struct {
	store    store.AlertStore
	emitter  Emitter
	locks    *keyedMutex
	now      func() time.Time
	observer Observer
	presence Presence
}

// Option 服务选项
type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithObserver(o Observer) Option { return func(s *Service) { s.observer = o } }

func NewService(st store.AlertStore, emitter Emitter, opts ...Option) *Service {
	if emitter == nil {
		emitter = nopEmitter{}
	}
	s := &Service{
		store:   st,
		emitter: emitter,
		locks:   newKeyedMutex(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetEmitter 用于先创建服务、后创建事件桥的场景
func (s *Service) SetEmitter(e Emitter) {
	if e == nil {
		e = nopEmitter{}
	}
	s.emitter = e
}

// SetPresence 注入在线人数来源
func (s *Service) SetPresence(p Presence) { s.presence = p }

// Now 服务时钟
func (s *Service) Now() time.Time { return s.now() }

// Owner 实现 access.OwnerSource
func (s *Service) Owner(ctx context.Context, alertID string) (string, error) {
	a, err := s.store.Load(ctx, alertID)
	if err != nil {
		return "", err
	}
	return a.UserID, nil
}

// CreateRequest 创建报警参数
type CreateRequest struct {
	AlertType         models.AlertType `json:"alert_type"`
	Priority          int              `json:"priority"`
	Latitude          *float64         `json:"latitude"`
	Longitude         *float64         `json:"longitude"`
	LocationAccuracy  *float64         `json:"location_accuracy"`
	Address           string           `json:"address"`
	Description       string           `json:"description"`
	IsSilent          bool             `json:"is_silent"`
	AutoCallEmergency bool             `json:"auto_call_emergency"`
	DeviceInfo        models.Blob      `json:"device_info"`
	NetworkInfo       models.Blob      `json:"network_info"`
}

func (r *CreateRequest) normalize() error {
	if r.Latitude == nil || r.Longitude == nil {
		return apperrors.Malformed("latitude and longitude are required")
	}
	if *r.Latitude < -90 || *r.Latitude > 90 || *r.Longitude < -180 || *r.Longitude > 180 {
		return apperrors.Malformed("coordinates out of range")
	}
	if r.AlertType == "" {
		r.AlertType = models.AlertTypePanicButton
	}
	if !r.AlertType.Valid() {
		return apperrors.Malformed("unknown alert_type " + string(r.AlertType))
	}
	if r.Priority == 0 {
		r.Priority = models.DefaultPriority
	}
	if r.Priority < models.MinPriority || r.Priority > models.MaxPriority {
		return apperrors.Malformed("priority must be between 1 and 5")
	}
	return nil
}

// Create 创建报警并记录第一条定位
func (s *Service) Create(ctx context.Context, p access.Principal, req CreateRequest) (*models.Alert, error) {
	if !access.CanPerform(p, access.ActionCreate, "") {
		return nil, apperrors.Unauthorized("authentication required")
	}
	if err := req.normalize(); err != nil {
		return nil, err
	}

	now := s.now()
	a := &models.Alert{
		ID:                uuid.NewString(),
		UserID:            p.ID,
		AlertType:         req.AlertType,
		Status:            models.StatusActive,
		Priority:          req.Priority,
		Address:           req.Address,
		Description:       req.Description,
		IsSilent:          req.IsSilent,
		AutoCallEmergency: req.AutoCallEmergency,
		DeviceInfo:        req.DeviceInfo,
		NetworkInfo:       req.NetworkInfo,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	initial := &models.LocationUpdate{
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		Accuracy:  req.LocationAccuracy,
		Provider:  models.DefaultProvider,
		Timestamp: now,
	}
	a.ApplyLocation(initial)

	unlock := s.locks.Lock(a.ID)
	defer unlock()
	if err := s.store.Create(ctx, a, initial); err != nil {
		s.observe("create", err)
		return nil, err
	}
	s.observe("create", nil)
	logger.Info("alert created", zap.String("alert_id", a.ID), zap.String("user_id", p.ID), zap.String("alert_type", string(a.AlertType)))
	s.emitter.AlertChanged(ctx, AlertChanged{Kind: ChangeCreated, Alert: a.Clone(), Actor: p, At: now})
	return a, nil
}

// Acknowledge 受理，仅 active 可受理
func (s *Service) Acknowledge(ctx context.Context, p access.Principal, alertID string) (*models.Alert, error) {
	return s.transition(ctx, p, alertID, TransitionAcknowledge, Input{Operator: p.ID})
}

// MarkResponding 出警中
func (s *Service) MarkResponding(ctx context.Context, p access.Principal, alertID string) (*models.Alert, error) {
	return s.transition(ctx, p, alertID, TransitionRespond, Input{Operator: p.ID})
}

// Resolve 处理完成，notes 追加到处理记录
func (s *Service) Resolve(ctx context.Context, p access.Principal, alertID, notes string) (*models.Alert, error) {
	return s.transition(ctx, p, alertID, TransitionResolve, Input{Operator: p.ID, Notes: notes})
}

// MarkFalseAlarm 误报
func (s *Service) MarkFalseAlarm(ctx context.Context, p access.Principal, alertID, notes string) (*models.Alert, error) {
	return s.transition(ctx, p, alertID, TransitionFalseAlarm, Input{Operator: p.ID, Notes: notes})
}

// Cancel 仅发起人可取消，任一非终态均可
func (s *Service) Cancel(ctx context.Context, p access.Principal, alertID string) (*models.Alert, error) {
	return s.transition(ctx, p, alertID, TransitionCancel, Input{})
}

func (s *Service) transition(ctx context.Context, p access.Principal, alertID string, t Transition, in Input) (*models.Alert, error) {
	a, err := s.doTransition(ctx, p, alertID, t, in)
	s.observe(string(t), err)
	return a, err
}

func (s *Service) doTransition(ctx context.Context, p access.Principal, alertID string, t Transition, in Input) (*models.Alert, error) {
	if !p.Authenticated() {
		return nil, apperrors.Unauthorized("authentication required")
	}
	action := t.action()
	if action != access.ActionCancel && !access.CanPerform(p, action, "") {
		return nil, apperrors.Forbidden("only staff may " + string(t) + " alerts")
	}

	unlock := s.locks.Lock(alertID)
	defer unlock()

	a, err := s.store.Load(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if !access.CanPerform(p, action, a.UserID) {
		return nil, apperrors.Forbidden("only the alert owner may " + string(t) + " it")
	}
	now := s.now()
	if err := Apply(a, t, in, now); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, a); err != nil {
		logger.Error("save alert failed", zap.String("alert_id", alertID), zap.String("transition", string(t)), zap.Error(err))
		return nil, err
	}

	logger.Info("alert transition",
		zap.String("alert_id", alertID),
		zap.String("transition", string(t)),
		zap.String("status", string(a.Status)),
		zap.String("actor", p.ID))
	s.emitter.AlertChanged(ctx, AlertChanged{Kind: ChangeKind(t), Alert: a.Clone(), Actor: p, At: now})
	return a, nil
}

// LocationInput 客户端上报的定位
type LocationInput struct {
	Latitude     *float64  `json:"latitude"`
	Longitude    *float64  `json:"longitude"`
	Accuracy     *float64  `json:"accuracy"`
	Altitude     *float64  `json:"altitude"`
	Speed        *float64  `json:"speed"`
	Heading      *float64  `json:"heading"`
	Provider     string    `json:"provider"`
	BatteryLevel *int      `json:"battery_level"`
	Timestamp    time.Time `json:"timestamp"`
}

func (in LocationInput) point() (*models.LocationUpdate, error) {
	if in.Latitude == nil || in.Longitude == nil {
		return nil, apperrors.Malformed("latitude and longitude are required")
	}
	p := &models.LocationUpdate{
		Latitude:     *in.Latitude,
		Longitude:    *in.Longitude,
		Accuracy:     in.Accuracy,
		Altitude:     in.Altitude,
		Speed:        in.Speed,
		Heading:      in.Heading,
		Provider:     in.Provider,
		BatteryLevel: in.BatteryLevel,
		Timestamp:    in.Timestamp,
	}
	if !p.Valid() {
		return nil, apperrors.Malformed("coordinates out of range")
	}
	if p.Provider == "" {
		p.Provider = models.DefaultProvider
	}
	return p, nil
}

// RecordLocation 追加定位并覆盖报警上的定位快照。时间戳早于上一条时取上一条的时间。
func (s *Service) RecordLocation(ctx context.Context, p access.Principal, alertID string, in LocationInput) (*models.LocationUpdate, error) {
	point, err := s.recordLocation(ctx, p, alertID, in)
	s.observe("record_location", err)
	return point, err
}

func (s *Service) recordLocation(ctx context.Context, p access.Principal, alertID string, in LocationInput) (*models.LocationUpdate, error) {
	if !p.Authenticated() {
		return nil, apperrors.Unauthorized("authentication required")
	}
	point, err := in.point()
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(alertID)
	defer unlock()

	a, err := s.store.Load(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if !access.CanPerform(p, access.ActionWriteLocation, a.UserID) {
		return nil, apperrors.Forbidden("only the alert owner may send location updates")
	}
	if !a.IsActive() {
		return nil, apperrors.WithCodef(apperrors.CodeAlertNotActive, "alert is %s", a.Status)
	}

	now := s.now()
	if point.Timestamp.IsZero() {
		point.Timestamp = now
	}
	last, err := s.store.LastLocation(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if last != nil && point.Timestamp.Before(last.Timestamp) {
		point.Timestamp = last.Timestamp
	}

	if err := s.store.AppendLocation(ctx, alertID, point); err != nil {
		return nil, err
	}
	a.ApplyLocation(point)
	a.UpdatedAt = now
	if err := s.store.Save(ctx, a); err != nil {
		logger.Error("save location snapshot failed", zap.String("alert_id", alertID), zap.Error(err))
		return nil, err
	}

	s.emitter.LocationChanged(ctx, LocationChanged{AlertID: alertID, Point: *point, Alert: a.Clone()})
	return point, nil
}

// PostChat 发送报警对话消息，工作人员以 operator 身份发送
func (s *Service) PostChat(ctx context.Context, p access.Principal, alertID, text string) (*models.ChatMessage, error) {
	if !p.Authenticated() {
		return nil, apperrors.Unauthorized("authentication required")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.Malformed("Empty message")
	}

	unlock := s.locks.Lock(alertID)
	defer unlock()

	a, err := s.store.Load(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if !access.CanPerform(p, access.ActionWriteChat, a.UserID) {
		return nil, apperrors.Forbidden("not a participant of this alert")
	}

	role := models.SenderUser
	if p.IsStaff() {
		role = models.SenderOperator
	}
	msg := &models.ChatMessage{
		ID:         uuid.NewString(),
		SenderID:   p.ID,
		SenderName: p.DisplayName(),
		SenderRole: role,
		Text:       text,
		Timestamp:  s.now(),
	}
	if err := s.store.AppendChat(ctx, alertID, msg); err != nil {
		return nil, err
	}
	s.emitter.ChatPosted(ctx, ChatPosted{AlertID: alertID, Message: *msg})
	return msg, nil
}

// NotifyUser 工作人员向用户推送通知
func (s *Service) NotifyUser(ctx context.Context, p access.Principal, userID, title, message, alertID string) error {
	if !access.CanPerform(p, access.ActionNotifyUser, "") {
		return apperrors.Forbidden("only staff may notify users")
	}
	if userID == "" || strings.TrimSpace(message) == "" {
		return apperrors.Malformed("user and message are required")
	}
	s.emitter.UserNotified(ctx, UserNotified{
		UserID: userID, Title: title, Message: message, AlertID: alertID, From: p, At: s.now(),
	})
	return nil
}

// Get 读取报警，需要读权限
func (s *Service) Get(ctx context.Context, p access.Principal, alertID string) (*models.Alert, error) {
	a, err := s.store.Load(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if !access.CanPerform(p, access.ActionRead, a.UserID) {
		return nil, apperrors.Forbidden("access to alert denied")
	}
	return a, nil
}

// List 工作人员看全部进行中报警，普通用户看自己的
func (s *Service) List(ctx context.Context, p access.Principal) ([]*models.Alert, error) {
	if !p.Authenticated() {
		return nil, apperrors.Unauthorized("authentication required")
	}
	if p.IsStaff() {
		return s.store.ListActive(ctx)
	}
	return s.store.ListByUser(ctx, p.ID, false)
}

// ActiveAlerts 所有进行中报警
func (s *Service) ActiveAlerts(ctx context.Context) ([]*models.Alert, error) {
	return s.store.ListActive(ctx)
}

// UserAlerts 用户自己进行中的报警
func (s *Service) UserAlerts(ctx context.Context, userID string) ([]*models.Alert, error) {
	return s.store.ListByUser(ctx, userID, true)
}

// MapAlerts 地图上显示的进行中且有定位的报警
func (s *Service) MapAlerts(ctx context.Context) ([]models.MapView, error) {
	alerts, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]models.MapView, 0, len(alerts))
	for _, a := range alerts {
		if v, ok := a.MapView(now); ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// Stats 面板统计
func (s *Service) Stats(ctx context.Context) (*models.DashboardStats, error) {
	st, err := s.store.Stats(ctx, s.now())
	if err != nil {
		return nil, err
	}
	if s.presence != nil {
		st.OnlineUsers = s.presence.OnlineUsers()
	}
	return st, nil
}

// Locations 定位历史
func (s *Service) Locations(ctx context.Context, p access.Principal, alertID string) ([]models.LocationUpdate, error) {
	if _, err := s.Get(ctx, p, alertID); err != nil {
		return nil, err
	}
	return s.store.Locations(ctx, alertID)
}

// LastLocation 最近一次定位，可能为 nil
func (s *Service) LastLocation(ctx context.Context, alertID string) (*models.LocationUpdate, error) {
	return s.store.LastLocation(ctx, alertID)
}

// Chats 最近的对话
func (s *Service) Chats(ctx context.Context, alertID string, limit int) ([]models.ChatMessage, error) {
	return s.store.Chats(ctx, alertID, limit)
}

func (s *Service) observe(op string, err error) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveTransition(op, string(apperrors.CodeOf(err)))
}
