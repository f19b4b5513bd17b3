package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Beacon/internal/access"
	"Beacon/internal/alert"
	"Beacon/internal/auth"
	"Beacon/internal/bridge"
	handlers "Beacon/internal/handler"
	"Beacon/internal/session"
	"Beacon/internal/store"
	"Beacon/pkg/cache"
	"Beacon/pkg/config"
	"Beacon/pkg/eventsink"
	"Beacon/pkg/hub"
	"Beacon/pkg/logger"
	"Beacon/pkg/metrics"
	"Beacon/pkg/middleware"
	"Beacon/pkg/scheduler"
	"Beacon/pkg/util"
	"Beacon/pkg/websocket"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg := config.GlobalConfig

	if err := logger.Init(&cfg.Log, cfg.Mode); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := websocket.ValidateConfig(cfg.WebSocket); err != nil {
		logger.Fatal("invalid websocket config", zap.Error(err))
	}

	// 数据库
	db, err := util.OpenDatabase(&gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}, cfg.DBDriver, cfg.DSN)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	st, err := store.NewGormStore(db)
	if err != nil {
		logger.Fatal("migrate database", zap.Error(err))
	}
	defer func() { _ = st.Close() }()

	// 缓存，redis 模式下与限流共用客户端
	var redisClient *redis.Client
	var ownerCache cache.Cache
	if cfg.Cache.Type == "redis" {
		rc := cfg.Cache.Redis
		redisClient = redis.NewClient(&redis.Options{
			Addr:         rc.Addr,
			Password:     rc.Password,
			DB:           rc.DB,
			PoolSize:     rc.PoolSize,
			DialTimeout:  rc.DialTimeout,
			ReadTimeout:  rc.ReadTimeout,
			WriteTimeout: rc.WriteTimeout,
		})
		ownerCache = cache.NewRedisCacheWithClient(redisClient, rc.KeyPrefix)
	} else if ownerCache, err = cache.NewCache(cfg.Cache); err != nil {
		logger.Fatal("init cache", zap.Error(err))
	}
	defer func() { _ = ownerCache.Close() }()

	jwtAuth, err := auth.NewJWTAuthenticator(cfg.JWT)
	if err != nil {
		logger.Fatal("init authenticator", zap.Error(err))
	}

	m := metrics.NewMetrics()

	// 推送核心
	h := hub.NewHub(&hub.Config{
		ShardCount:          cfg.WebSocket.ShardCount,
		CloseOnBackpressure: cfg.WebSocket.CloseOnBackpressure,
	})
	h.SetObserver(m)

	svc := alert.NewService(st, nil, alert.WithObserver(m))

	sinks := []eventsink.Sink{}
	if cfg.Kafka.Enabled() {
		ks, err := eventsink.NewKafkaSink(cfg.Kafka)
		if err != nil {
			logger.Fatal("init kafka sink", zap.Error(err))
		}
		sinks = append(sinks, ks)
	}
	br := bridge.New(h, svc, sinks...)
	svc.SetEmitter(br)

	sessions := session.NewManager(&session.Config{
		MaxConnections: cfg.WebSocket.MaxConnections,
		OutboxSize:     cfg.WebSocket.MessageBufferSize,
	}, session.Deps{
		Auth:   jwtAuth,
		Access: access.NewEvaluator(access.NewCachedOwners(svc, ownerCache, cfg.OwnerCacheTTL)),
		Alerts: svc,
		Hub:    h,
	})
	sessions.SetObserver(m)
	svc.SetPresence(sessions)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go br.Run(ctx)

	cr := scheduler.NewCron(time.Local)
	if _, err := cr.Add(cfg.StatsSchedule, scheduler.FuncJob(func(context.Context) { br.MarkDashboardDirty() })); err != nil {
		logger.Fatal("schedule dashboard refresh", zap.Error(err), zap.String("expr", cfg.StatsSchedule))
	}
	cr.Start(ctx)

	// 限流
	var limitStore limiter.Store
	if redisClient != nil {
		if limitStore, err = middleware.NewRedisStore(redisClient, cfg.Cache.Redis.KeyPrefix+"ratelimit"); err != nil {
			logger.Fatal("init rate limit store", zap.Error(err))
		}
	}
	rl := middleware.NewRateLimiter(cfg.RateLimit, limitStore).
		WithObserver(middleware.NewPrometheusObserver(m.Registry()))

	if cfg.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.AccessLog())

	handlers.NewHandlers(handlers.Options{
		BaseContext: ctx,
		Alerts:      svc,
		Sessions:    sessions,
		Hub:         h,
		Auth:        jwtAuth,
		Upgrader:    websocket.NewUpgrader(cfg.WebSocket),
		Metrics:     m,
		RateLimiter: rl,
		DB:          db,
	}).Register(engine)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("beacon listening", zap.String("addr", cfg.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	sessions.CloseAll(session.CloseGoingAway, "server shutting down")
	cr.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	if err := br.Close(); err != nil {
		logger.Error("close event sinks", zap.Error(err))
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}
