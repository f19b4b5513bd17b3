package websocket

import (
	"fmt"
	"time"

	"Beacon/pkg/util"
)

// Config WebSocket传输配置
type Config struct {
	MaxConnections    int64
	HeartbeatInterval time.Duration
	ConnectionTimeout time.Duration
	WriteTimeout      time.Duration
	// 单连接发送队列容量
	MessageBufferSize int
	ReadBufferSize    int
	WriteBufferSize   int
	MaxMessageSize    int64
	EnableCompression bool
	CompressionLevel  int
	// 为空时允许所有来源
	AllowedOrigins []string
	// 慢消费者断开，false 时只丢弃
	CloseOnBackpressure bool
	ShardCount          int
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		MaxConnections:      DefaultMaxConnections,
		HeartbeatInterval:   DefaultHeartbeatInterval * time.Second,
		ConnectionTimeout:   DefaultConnectionTimeout * time.Second,
		WriteTimeout:        DefaultWriteTimeout * time.Second,
		MessageBufferSize:   DefaultMessageBufferSize,
		ReadBufferSize:      DefaultReadBufferSize,
		WriteBufferSize:     DefaultWriteBufferSize,
		MaxMessageSize:      DefaultMaxMessageSize,
		CloseOnBackpressure: true,
		ShardCount:          16,
	}
}

// LoadConfigFromEnv 从环境变量加载WebSocket配置
func LoadConfigFromEnv() *Config {
	config := DefaultConfig()

	if maxConnections := util.GetIntEnv(EnvWebSocketMaxConnections); maxConnections > 0 {
		config.MaxConnections = maxConnections
	}

	if d := util.GetDurationEnv(EnvWebSocketHeartbeatInterval, time.Second); d > 0 {
		config.HeartbeatInterval = d
	}

	if d := util.GetDurationEnv(EnvWebSocketConnectionTimeout, time.Second); d > 0 {
		config.ConnectionTimeout = d
	}

	if d := util.GetDurationEnv(EnvWebSocketWriteTimeout, time.Second); d > 0 {
		config.WriteTimeout = d
	}

	if n := util.GetIntEnv(EnvWebSocketMessageBufferSize); n > 0 {
		config.MessageBufferSize = int(n)
	}

	if readBuf := util.GetIntEnv(EnvWebSocketReadBufferSize); readBuf > 0 {
		config.ReadBufferSize = int(readBuf)
	}

	if writeBuf := util.GetIntEnv(EnvWebSocketWriteBufferSize); writeBuf > 0 {
		config.WriteBufferSize = int(writeBuf)
	}

	if maxMsg := util.GetIntEnv(EnvWebSocketMaxMessageSize); maxMsg > 0 {
		config.MaxMessageSize = maxMsg
	}

	if v, ok := util.LookupBoolEnv(EnvWebSocketEnableCompression); ok {
		config.EnableCompression = v
	}

	if level := util.GetIntEnv(EnvWebSocketCompressionLevel); level != 0 {
		config.CompressionLevel = int(level)
	}

	if origins := util.GetListEnv(EnvWebSocketAllowedOrigins); len(origins) > 0 {
		config.AllowedOrigins = origins
	}

	if v, ok := util.LookupBoolEnv(EnvWebSocketCloseOnBackpressure); ok {
		config.CloseOnBackpressure = v
	}

	if shards := util.GetIntEnv(EnvWebSocketShardCount); shards > 0 {
		config.ShardCount = int(shards)
	}

	return config
}

// ValidateConfig 验证WebSocket配置
func ValidateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("配置不能为空")
	}

	if config.MaxConnections <= 0 {
		return fmt.Errorf("最大连接数必须大于0")
	}

	if config.HeartbeatInterval <= 0 {
		return fmt.Errorf("心跳间隔必须大于0")
	}

	if config.ConnectionTimeout <= 0 {
		return fmt.Errorf("连接超时时间必须大于0")
	}

	if config.WriteTimeout <= 0 {
		return fmt.Errorf("写超时必须大于0")
	}

	if config.MessageBufferSize <= 0 {
		return fmt.Errorf("消息缓冲区大小必须大于0")
	}

	if config.ShardCount <= 0 {
		return fmt.Errorf("分片数量必须大于0")
	}

	if config.CompressionLevel < -2 || config.CompressionLevel > 9 {
		return fmt.Errorf("压缩等级必须在-2到9之间")
	}

	if config.ReadBufferSize <= 0 || config.WriteBufferSize <= 0 {
		return fmt.Errorf("读/写缓冲区大小必须大于0")
	}

	if config.MaxMessageSize <= 0 {
		return fmt.Errorf("最大消息大小必须大于0")
	}

	// 心跳间隔应该小于连接超时时间
	if config.HeartbeatInterval >= config.ConnectionTimeout {
		return fmt.Errorf("心跳间隔必须小于连接超时时间")
	}

	return nil
}

// GetConfigSummary 获取配置摘要
func GetConfigSummary(config *Config) map[string]interface{} {
	return map[string]interface{}{
		"max_connections":       config.MaxConnections,
		"heartbeat_interval":    config.HeartbeatInterval.String(),
		"connection_timeout":    config.ConnectionTimeout.String(),
		"write_timeout":         config.WriteTimeout.String(),
		"message_buffer_size":   config.MessageBufferSize,
		"read_buffer_size":      config.ReadBufferSize,
		"write_buffer_size":     config.WriteBufferSize,
		"max_message_size":      config.MaxMessageSize,
		"enable_compression":    config.EnableCompression,
		"compression_level":     config.CompressionLevel,
		"allowed_origins":       config.AllowedOrigins,
		"close_on_backpressure": config.CloseOnBackpressure,
		"shard_count":           config.ShardCount,
	}
}
