package config

import (
	"log"
	"os"
	"time"

	"Beacon/internal/auth"
	"Beacon/pkg/cache"
	"Beacon/pkg/eventsink"
	"Beacon/pkg/logger"
	"Beacon/pkg/middleware"
	"Beacon/pkg/util"
	"Beacon/pkg/websocket"
)

// Config 全局配置，全部来自环境变量
type Config struct {
	Env      string `env:"APP_ENV"`
	Addr     string `env:"ADDR"`
	Mode     string `env:"MODE"`
	DBDriver string `env:"DB_DRIVER"`
	DSN      string `env:"DSN"`
	Log      logger.LogConfig
	JWT      auth.JWTConfig
	Cache    cache.Config
	// 报警归属缓存时间
	OwnerCacheTTL time.Duration `env:"OWNER_CACHE_TTL"`
	WebSocket     *websocket.Config
	Kafka         eventsink.KafkaConfig
	RateLimit     middleware.RateLimiterConfig
	// 面板统计定时推送，cron 表达式
	StatsSchedule string `env:"STATS_SCHEDULE"`
	// 优雅退出等待时间
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"`
}

var GlobalConfig *Config

func Load() error {
	// 1. 根据环境加载 .env 文件
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development" // 默认使用开发环境
	}
	if err := util.LoadEnv(env); err != nil && !util.IsNotExist(err) {
		log.Printf("Failed to load .env file: %v", err)
	}

	// 2. 加载全局配置
	GlobalConfig = FromEnv(env)
	return nil
}

// FromEnv 读取当前进程环境
func FromEnv(env string) *Config {
	cacheCfg := cache.DefaultConfig()
	if v := util.GetEnv("CACHE_TYPE"); v != "" {
		cacheCfg.Type = v
	}
	if v := util.GetEnv("REDIS_ADDR"); v != "" {
		cacheCfg.Redis.Addr = v
	}
	cacheCfg.Redis.Password = util.GetEnv("REDIS_PASSWORD")
	cacheCfg.Redis.DB = int(util.GetIntEnv("REDIS_DB"))
	if n := util.GetIntEnv("REDIS_POOL_SIZE"); n > 0 {
		cacheCfg.Redis.PoolSize = int(n)
	}
	if v := util.GetEnv("REDIS_KEY_PREFIX"); v != "" {
		cacheCfg.Redis.KeyPrefix = v
	}
	if n := util.GetIntEnv("LOCAL_CACHE_MAX_SIZE"); n > 0 {
		cacheCfg.Local.MaxSize = int(n)
	}
	if d := util.GetDurationEnv("LOCAL_CACHE_DEFAULT_EXPIRATION", time.Second); d > 0 {
		cacheCfg.Local.DefaultExpiration = d
	}
	if d := util.GetDurationEnv("LOCAL_CACHE_CLEANUP_INTERVAL", time.Second); d > 0 {
		cacheCfg.Local.CleanupInterval = d
	}

	jwtHours := util.GetIntEnv("JWT_EXPIRE_HOURS")
	if jwtHours <= 0 {
		jwtHours = 24
	}

	ownerTTL := util.GetDurationEnv("OWNER_CACHE_TTL", time.Second)
	if ownerTTL <= 0 {
		ownerTTL = 10 * time.Minute
	}
	shutdown := util.GetDurationEnv("SHUTDOWN_TIMEOUT", time.Second)
	if shutdown <= 0 {
		shutdown = 10 * time.Second
	}

	return &Config{
		Env:      env,
		Addr:     util.GetEnvDefault("ADDR", ":8080"),
		Mode:     util.GetEnvDefault("MODE", "debug"),
		DBDriver: util.GetEnv("DB_DRIVER"),
		DSN:      util.GetEnv("DSN"),
		Log: logger.LogConfig{
			Level:      util.GetEnv("LOG_LEVEL"),
			Filename:   util.GetEnv("LOG_FILENAME"),
			MaxSize:    int(util.GetIntEnv("LOG_MAX_SIZE")),
			MaxAge:     int(util.GetIntEnv("LOG_MAX_AGE")),
			MaxBackups: int(util.GetIntEnv("LOG_MAX_BACKUPS")),
		},
		JWT: auth.JWTConfig{
			Secret:    []byte(util.GetEnv("JWT_SECRET")),
			Issuer:    util.GetEnvDefault("JWT_ISSUER", "beacon"),
			ExpiresIn: time.Duration(jwtHours) * time.Hour,
		},
		Cache:         cacheCfg,
		OwnerCacheTTL: ownerTTL,
		WebSocket:     websocket.LoadConfigFromEnv(),
		Kafka: eventsink.KafkaConfig{
			Brokers: eventsink.ParseBrokers(util.GetEnv("KAFKA_BROKERS")),
			Topic:   util.GetEnvDefault("KAFKA_TOPIC", "beacon.alert-events"),
		},
		RateLimit: middleware.RateLimiterConfig{
			Rate:       util.GetEnvDefault("RATE_LIMIT", "600-M"),
			Identifier: util.GetEnvDefault("RATE_LIMIT_IDENTIFIER", "ip"),
			SkipPaths:  []string{"/health", "/metrics", "/ws/"},
			AddHeaders: true,
		},
		StatsSchedule:   util.GetEnvDefault("STATS_SCHEDULE", "@every 30s"),
		ShutdownTimeout: shutdown,
	}
}

// IsRelease gin release 模式
func (c *Config) IsRelease() bool {
	return c.Mode == "release" || c.Mode == "production"
}
