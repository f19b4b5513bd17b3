package websocket

const (
	// 默认配置值
	DefaultMaxConnections    = 100000
	DefaultHeartbeatInterval = 30
	DefaultConnectionTimeout = 60
	DefaultWriteTimeout      = 10
	DefaultMessageBufferSize = 256
	DefaultReadBufferSize    = 1024
	DefaultWriteBufferSize   = 1024
	DefaultMaxMessageSize    = 4096

	// 环境变量配置键
	EnvWebSocketMaxConnections      = "WS_MAX_CONNECTIONS"
	EnvWebSocketHeartbeatInterval   = "WS_HEARTBEAT_INTERVAL"
	EnvWebSocketConnectionTimeout   = "WS_CONNECTION_TIMEOUT"
	EnvWebSocketWriteTimeout        = "WS_WRITE_TIMEOUT"
	EnvWebSocketMessageBufferSize   = "WS_MESSAGE_BUFFER_SIZE"
	EnvWebSocketEnableCompression   = "WS_ENABLE_COMPRESSION"
	EnvWebSocketCompressionLevel    = "WS_COMPRESSION_LEVEL"
	EnvWebSocketReadBufferSize      = "WS_READ_BUFFER_SIZE"
	EnvWebSocketWriteBufferSize     = "WS_WRITE_BUFFER_SIZE"
	EnvWebSocketMaxMessageSize      = "WS_MAX_MESSAGE_SIZE"
	EnvWebSocketAllowedOrigins      = "WS_ALLOWED_ORIGINS"
	EnvWebSocketCloseOnBackpressure = "HUB_CLOSE_ON_BACKPRESSURE"
	EnvWebSocketShardCount          = "HUB_SHARD_COUNT"

	// 错误消息
	ErrConnectionClosed = "连接已关闭"
	ErrWriteTimeout     = "写入超时"

	// 路由路径
	RouteAdminAlerts    = "/ws/alerts"
	RouteAlert          = "/ws/alerts/:alert_id"
	RouteUser           = "/ws/user/:user_id"
	RouteAdminDashboard = "/ws/admin/dashboard"
	RouteLocation       = "/ws/location/:alert_id"
	RouteChat           = "/ws/chat/:alert_id"
	RouteMapAlerts      = "/ws/map/alerts"
	RouteStats          = "/ws/stats"
)
