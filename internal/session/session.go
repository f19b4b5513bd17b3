// Package session runs one realtime connection: authenticate, admit, join,
// snapshot, then process commands one at a time until the transport closes.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"Beacon/internal/access"
	"Beacon/internal/auth"
	"Beacon/internal/protocol"
	"Beacon/internal/topic"
	apperrors "Beacon/pkg/errors"
	"Beacon/pkg/hub"
	"Beacon/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Transport 双工消息通道，由 websocket 适配器实现
type Transport interface {
	Send(ctx context.Context, data []byte) error
	// Receive 在连接关闭后返回错误
	Receive(ctx context.Context) ([]byte, error)
	// Close 幂等
	Close(code int, reason string) error
}

// 关闭码
const (
	CloseNormal       = 1000
	CloseGoingAway    = 1001
	CloseInternal     = 1011
	CloseTryAgain     = 1013
	CloseUnauthorized = 4001
	CloseForbidden    = 4003
	CloseNotFound     = 4004
	CloseSlowConsumer = 4008
)

// ErrConnectionLimit 连接数已达上限
var ErrConnectionLimit = errors.New("connection limit exceeded")

// CloseCodeFor 准入失败时的关闭码
func CloseCodeFor(err error) int {
	if errors.Is(err, ErrConnectionLimit) {
		return CloseTryAgain
	}
	switch apperrors.CodeOf(err) {
	case apperrors.CodeUnauthorized:
		return CloseUnauthorized
	case apperrors.CodeForbidden:
		return CloseForbidden
	case apperrors.CodeNotFound, apperrors.CodeMalformedCommand:
		return CloseNotFound
	default:
		return CloseInternal
	}
}

// State 连接状态
type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	default:
		return "closed"
	}
}

// Session 单个连接
type Session struct {
	id        string
	kind      *Kind
	params    Params
	transport Transport
	manager   *Manager

	principal access.Principal
	topic     topic.Topic
	owner     string
	outbox    *hub.Outbox
	state     atomic.Int32

	cancel      context.CancelFunc
	closeOnce   sync.Once
	closeCode   int
	closeReason string
	writerDone  chan struct{}
}

func (s *Session) ID() string                  { return s.id }
func (s *Session) Kind() *Kind                 { return s.kind }
func (s *Session) Principal() access.Principal { return s.principal }
func (s *Session) Topic() topic.Topic          { return s.topic }
func (s *Session) State() State                { return State(s.state.Load()) }

// Owner 准入时查到的报警归属，非报警作用域主题为空
func (s *Session) Owner() string { return s.owner }

// CloseCode 会话结束后的关闭码
func (s *Session) CloseCode() int {
	if s.State() != StateClosed {
		return 0
	}
	return s.closeCode
}

func (s *Session) setState(st State) { s.state.Store(int32(st)) }

// RequestClose 非阻塞，实际关闭由会话自己的协程执行。可在发布协程中调用。
func (s *Session) RequestClose(code int, reason string) {
	s.closeOnce.Do(func() {
		s.closeCode = code
		s.closeReason = reason
		if s.cancel != nil {
			s.cancel()
		}
	})
}

func newSession(m *Manager, kind *Kind, params Params, tr Transport) *Session {
	return &Session{
		id:         uuid.NewString(),
		kind:       kind,
		params:     params,
		transport:  tr,
		manager:    m,
		writerDone: make(chan struct{}),
	}
}

// reject 准入阶段失败，直接关闭传输
func (s *Session) reject(err error) {
	code := CloseCodeFor(err)
	s.closeOnce.Do(func() {
		s.closeCode = code
		s.closeReason = apperrors.PublicMessage(err)
	})
	s.setState(StateClosed)
	if code == CloseInternal {
		logger.Error("session admission failed", zap.String("session_id", s.id), zap.String("kind", s.kind.Name), zap.Error(err))
	} else {
		logger.Info("session rejected", zap.String("session_id", s.id), zap.String("kind", s.kind.Name), zap.Int("code", code), zap.String("reason", s.closeReason))
	}
	_ = s.transport.Close(code, s.closeReason)
}

func (s *Session) run(parent context.Context, creds auth.Credentials) {
	deps := s.manager.deps
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	defer cancel()

	p, err := deps.Auth.Authenticate(ctx, creds)
	if err != nil {
		logger.Debug("session authentication failed", zap.String("session_id", s.id), zap.Error(err))
		s.reject(apperrors.Unauthorized("authentication failed"))
		return
	}
	s.principal = p
	s.setState(StateAuthenticated)

	t, err := s.kind.Topic(s.params, p)
	if err != nil {
		s.reject(err)
		return
	}
	owner, err := deps.Access.Admit(ctx, p, t)
	if err != nil {
		s.reject(err)
		return
	}
	s.topic, s.owner = t, owner

	if err := s.manager.register(s); err != nil {
		s.reject(err)
		return
	}
	defer s.manager.unregister(s)

	s.outbox = hub.NewOutbox(s.id, s.manager.config.OutboxSize)
	s.outbox.OnOverflow(func() { s.RequestClose(CloseSlowConsumer, "slow consumer") })
	// 快照在加入的同一临界区内读取并入队，之后的事件一定排在快照后面
	deps.Hub.JoinWith(t.String(), s.outbox, func() { s.queueSnapshot(ctx) })
	s.setState(StateActive)
	s.manager.opened(s)
	logger.Info("session active",
		zap.String("session_id", s.id),
		zap.String("kind", s.kind.Name),
		zap.String("topic", t.String()),
		zap.String("user_id", p.ID))

	defer s.teardown()

	go s.writeLoop(ctx)
	go s.closeWhenDone(ctx)

	s.readLoop(ctx)
}

// queueSnapshot 发布被挡住期间调用，不能阻塞在发送队列上。新建的队列必有空位。
func (s *Session) queueSnapshot(ctx context.Context) {
	if s.kind.Snapshot == nil {
		return
	}
	msg, err := s.kind.Snapshot(ctx, s)
	if err != nil {
		msg = s.errorReply("", err)
	}
	if !s.outbox.Offer(s.encode(msg)) {
		logger.Warn("snapshot dropped", zap.String("session_id", s.id), zap.String("kind", s.kind.Name))
	}
}

// teardown 无条件离开所有主题
func (s *Session) teardown() {
	s.RequestClose(CloseNormal, "")
	s.manager.deps.Hub.Leave(s.topic.String(), s.outbox)
	s.outbox.Close()
	<-s.writerDone
	_ = s.transport.Close(s.closeCode, s.closeReason)
	s.setState(StateClosed)
	s.manager.closed(s)
	logger.Info("session closed",
		zap.String("session_id", s.id),
		zap.String("kind", s.kind.Name),
		zap.Int("code", s.closeCode),
		zap.Int64("dropped", s.outbox.Dropped()))
}

func (s *Session) closeWhenDone(ctx context.Context) {
	<-ctx.Done()
	// 父 ctx 结束时视为服务端关闭
	s.RequestClose(CloseGoingAway, "server shutting down")
	_ = s.transport.Close(s.closeCode, s.closeReason)
}

func (s *Session) writeLoop(ctx context.Context) {
	defer close(s.writerDone)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.outbox.Done():
			return
		case data := <-s.outbox.C():
			if err := s.transport.Send(ctx, data); err != nil {
				if ctx.Err() == nil {
					logger.Warn("session write failed", zap.String("session_id", s.id), zap.Error(err))
				}
				s.RequestClose(CloseGoingAway, "write failed")
				return
			}
		}
	}
}

func (s *Session) readLoop(ctx context.Context) {
	for {
		data, err := s.transport.Receive(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logger.Debug("session receive ended", zap.String("session_id", s.id), zap.Error(err))
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		s.reply(ctx, s.handle(ctx, data))
	}
}

// handle 每条命令恰好产生一条回复
func (s *Session) handle(ctx context.Context, data []byte) *hub.Message {
	start := time.Now()
	cmd, err := protocol.ParseCommand(data)
	if err != nil {
		s.manager.handled(s, "", err, time.Since(start))
		return s.errorReply("", err)
	}

	h, ok := s.kind.Commands[cmd.Type]
	if !ok {
		err = apperrors.WithCodef(apperrors.CodeMalformedCommand, "unknown command %q", cmd.Type)
		s.manager.handled(s, "unknown", err, time.Since(start))
		return s.errorReply(cmd.Type, err)
	}

	msg, err := s.call(ctx, h, cmd)
	s.manager.handled(s, cmd.Type, err, time.Since(start))
	if err != nil {
		return s.errorReply(cmd.Type, err)
	}
	return msg
}

// call 处理器 panic 时转为 internal 错误，连接照常继续
func (s *Session) call(ctx context.Context, h Handler, cmd *protocol.Command) (msg *hub.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			msg, err = nil, apperrors.Errorf("command %s panicked: %v", cmd.Type, r)
		}
	}()
	return h(ctx, s, cmd)
}

func (s *Session) errorReply(command string, err error) *hub.Message {
	if apperrors.CodeOf(err) == apperrors.CodeInternal {
		logger.Error("session command failed",
			zap.String("session_id", s.id),
			zap.String("command", command),
			zap.Error(err))
	}
	return protocol.Error(command, err)
}

// reply 发给本连接，经同一个发送队列以保证与事件的顺序
func (s *Session) reply(ctx context.Context, msg *hub.Message) {
	if err := s.outbox.Push(ctx, s.encode(msg)); err != nil && ctx.Err() == nil {
		logger.Warn("reply dropped", zap.String("session_id", s.id), zap.Error(err))
	}
}

func (s *Session) encode(msg *hub.Message) []byte {
	data, err := msg.Encode()
	if err != nil {
		logger.Error("encode reply failed", zap.String("session_id", s.id), zap.String("type", msg.Type), zap.Error(err))
		data, _ = protocol.Error("", apperrors.Wrap(err, "encode reply")).Encode()
	}
	return data
}
