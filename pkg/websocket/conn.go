package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// ErrClosed 连接已关闭
var ErrClosed = errors.New(ErrConnectionClosed)

// 关闭帧原因最长 123 字节
const maxCloseReason = 123

// Upgrader 按配置升级 HTTP 连接
type Upgrader struct {
	config   *Config
	upgrader websocket.Upgrader
}

// NewUpgrader 根据配置创建WebSocket升级器
func NewUpgrader(cfg *Config) *Upgrader {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	u := &Upgrader{config: cfg}
	u.upgrader = websocket.Upgrader{
		ReadBufferSize:    cfg.ReadBufferSize,
		WriteBufferSize:   cfg.WriteBufferSize,
		CheckOrigin:       u.checkOrigin,
		EnableCompression: cfg.EnableCompression,
	}
	return u
}

// Config 升级器使用的配置
func (u *Upgrader) Config() *Config { return u.config }

func (u *Upgrader) checkOrigin(r *http.Request) bool {
	if len(u.config.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range u.config.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) || strings.EqualFold(allowed, parsed.Host) {
			return true
		}
	}
	return false
}

// Upgrade 升级并启动心跳
func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	ws, err := u.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Errorf("WebSocket升级失败: %v", err)
		return nil, err
	}
	if u.config.EnableCompression {
		ws.EnableWriteCompression(true)
		if u.config.CompressionLevel != 0 {
			_ = ws.SetCompressionLevel(u.config.CompressionLevel)
		}
	}
	return NewConn(ws, u.config), nil
}

// Conn gorilla 连接适配为 session.Transport。
// 写操作串行；Receive 只能由一个协程调用。
type Conn struct {
	ws     *websocket.Conn
	config *Config

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
	lastPong  atomic.Int64
}

// NewConn 设置读限制、读超时和 pong 处理，并启动 ping 协程
func NewConn(ws *websocket.Conn, cfg *Config) *Conn {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := &Conn{ws: ws, config: cfg, done: make(chan struct{})}
	c.lastPong.Store(time.Now().UnixNano())

	ws.SetReadLimit(cfg.MaxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(cfg.ConnectionTimeout))
	ws.SetPongHandler(func(string) error {
		c.lastPong.Store(time.Now().UnixNano())
		return ws.SetReadDeadline(time.Now().Add(cfg.ConnectionTimeout))
	})

	go c.pingLoop()
	return c
}

// RemoteAddr 对端地址
func (c *Conn) RemoteAddr() string { return c.ws.RemoteAddr().String() }

// LastPong 最近一次收到 pong 的时间
func (c *Conn) LastPong() time.Time { return time.Unix(0, c.lastPong.Load()) }

func (c *Conn) pingLoop() {
	interval := c.config.HeartbeatInterval
	if interval <= 0 {
		interval = DefaultHeartbeatInterval * time.Second
	}
	ticker := time.NewTicker(time.Duration(float64(interval) * 0.9))
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.config.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				logrus.Debugf("WebSocket心跳失败 %s: %v", c.RemoteAddr(), err)
				return
			}
		}
	}
}

// Send 写入一条文本消息
func (c *Conn) Send(ctx context.Context, data []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	deadline := time.Now().Add(c.config.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.ws.SetWriteDeadline(deadline)
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Receive 读取下一条消息。阻塞读不响应 ctx，需要 Close 才能打断。
func (c *Conn) Receive(ctx context.Context) ([]byte, error) {
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				select {
				case <-c.done:
				default:
					logrus.Warnf("WebSocket读取错误: %v", err)
				}
			}
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		return data, nil
	}
}

// Close 发送关闭帧后关闭底层连接，幂等
func (c *Conn) Close(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if len(reason) > maxCloseReason {
			reason = reason[:maxCloseReason]
		}
		msg := websocket.FormatCloseMessage(code, reason)
		deadline := time.Now().Add(c.config.WriteTimeout)
		if werr := c.ws.WriteControl(websocket.CloseMessage, msg, deadline); werr != nil && !errors.Is(werr, websocket.ErrCloseSent) {
			logrus.Debugf("WebSocket关闭帧发送失败: %v", werr)
		}
		err = c.ws.Close()
	})
	return err
}
