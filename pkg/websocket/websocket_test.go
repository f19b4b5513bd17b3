package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, ValidateConfig(cfg))
	assert.Equal(t, int64(100000), cfg.MaxConnections)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.True(t, cfg.CloseOnBackpressure)
}

func TestValidateConfig(t *testing.T) {
	assert.Error(t, ValidateConfig(nil))

	cfg := DefaultConfig()
	cfg.HeartbeatInterval = cfg.ConnectionTimeout
	assert.Error(t, ValidateConfig(cfg))

	cfg = DefaultConfig()
	cfg.CompressionLevel = 12
	assert.Error(t, ValidateConfig(cfg))

	cfg = DefaultConfig()
	cfg.MessageBufferSize = 0
	assert.Error(t, ValidateConfig(cfg))
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv(EnvWebSocketMaxConnections, "10")
	t.Setenv(EnvWebSocketHeartbeatInterval, "5")
	t.Setenv(EnvWebSocketConnectionTimeout, "1m")
	t.Setenv(EnvWebSocketMessageBufferSize, "32")
	t.Setenv(EnvWebSocketCloseOnBackpressure, "false")
	t.Setenv(EnvWebSocketAllowedOrigins, "example.com, https://ops.example.com")

	cfg := LoadConfigFromEnv()
	assert.Equal(t, int64(10), cfg.MaxConnections)
	assert.Equal(t, 5*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, time.Minute, cfg.ConnectionTimeout)
	assert.Equal(t, 32, cfg.MessageBufferSize)
	assert.False(t, cfg.CloseOnBackpressure)
	assert.Equal(t, []string{"example.com", "https://ops.example.com"}, cfg.AllowedOrigins)
	require.NoError(t, ValidateConfig(cfg))

	summary := GetConfigSummary(cfg)
	assert.Equal(t, int64(10), summary["max_connections"])
}

func TestCheckOrigin(t *testing.T) {
	u := NewUpgrader(&Config{AllowedOrigins: []string{"ops.example.com"}})
	r := httptest.NewRequest(http.MethodGet, "/ws/alerts", nil)
	assert.True(t, u.checkOrigin(r))

	r.Header.Set("Origin", "https://ops.example.com")
	assert.True(t, u.checkOrigin(r))

	r.Header.Set("Origin", "https://evil.example.net")
	assert.False(t, u.checkOrigin(r))
}

// echoServer 回显收到的消息，收到 "bye" 时以 4003 关闭
func echoServer(t *testing.T, cfg *Config) *httptest.Server {
	up := NewUpgrader(cfg)
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r)
		if err != nil {
			return
		}
		ctx := context.Background()
		for {
			data, err := conn.Receive(ctx)
			if err != nil {
				_ = conn.Close(websocket.CloseNormalClosure, "")
				return
			}
			if string(data) == "bye" {
				_ = conn.Close(4003, "access revoked")
				return
			}
			if err := conn.Send(ctx, data); err != nil {
				return
			}
		}
	}))
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return c
}

func TestConnSendReceiveAndCloseCode(t *testing.T) {
	srv := echoServer(t, nil)
	defer srv.Close()

	c := dial(t, srv)
	defer c.Close()

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	_, data, err := c.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"ping"}`, string(data))

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte("bye")))
	_, _, err = c.ReadMessage()
	var ce *websocket.CloseError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 4003, ce.Code)
	assert.Equal(t, "access revoked", ce.Text)
}

func TestConnHeartbeat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HeartbeatInterval = 20 * time.Millisecond
	srv := echoServer(t, cfg)
	defer srv.Close()

	c := dial(t, srv)
	defer c.Close()

	pings := make(chan struct{}, 4)
	c.SetPingHandler(func(string) error {
		select {
		case pings <- struct{}{}:
		default:
		}
		return nil
	})
	go func() {
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-pings:
	case <-time.After(time.Second):
		t.Fatal("no ping received")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	up := NewUpgrader(nil)
	done := make(chan *Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r)
		require.NoError(t, err)
		done <- conn
	}))
	defer srv.Close()

	c := dial(t, srv)
	defer c.Close()

	conn := <-done
	require.NoError(t, conn.Close(4008, strings.Repeat("x", 200)))
	assert.NoError(t, conn.Close(1000, ""))
	assert.ErrorIs(t, conn.Send(context.Background(), []byte("late")), ErrClosed)

	_, _, err := c.ReadMessage()
	var ce *websocket.CloseError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 4008, ce.Code)
	assert.Len(t, ce.Text, maxCloseReason)
}
