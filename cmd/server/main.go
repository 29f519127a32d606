package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"chat-realtime-service/internal/client"
	"chat-realtime-service/internal/config"
	"chat-realtime-service/internal/database"
	"chat-realtime-service/internal/job"
	"chat-realtime-service/internal/metrics"
	"chat-realtime-service/internal/presence"
	"chat-realtime-service/internal/push"
	"chat-realtime-service/internal/repository"
	"chat-realtime-service/internal/router"
	"chat-realtime-service/internal/service"
	"chat-realtime-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Info("Starting chat realtime service",
		zap.Int("port", cfg.Server.Port),
		zap.String("env", cfg.Server.Env),
		zap.String("base_path", cfg.Server.BasePath),
		zap.Bool("push_enabled", cfg.Push.Enabled),
	)

	db, err := database.InitPostgres(cfg.Database, cfg.Server.Env)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	logger.Info("PostgreSQL connected")

	redisClient, err := database.InitRedis(cfg.Redis.URL)
	if err != nil {
		logger.Warn("Redis unavailable, presence mirror disabled", zap.Error(err))
	} else if redisClient != nil {
		defer redisClient.Close()
		logger.Info("Redis connected")
	}

	m := metrics.New()

	messageRepo := repository.NewMessageRepository(db)
	callRepo := repository.NewCallRepository(db)
	channelRepo := repository.NewChannelRepository(db)
	userRepo := repository.NewUserRepository(db)

	registry := presence.NewMemoryRegistry()
	mirror := presence.NewRedisMirror(redisClient, logger)
	if err := mirror.Reset(context.Background()); err != nil {
		logger.Warn("Failed to reset presence mirror", zap.Error(err))
	}

	var pushClient client.PushClient = client.NewNoOpPushClient()
	if cfg.Push.Enabled {
		pushClient = client.NewPushClient(cfg.Push.ServiceURL, cfg.Push.APIKey, cfg.Push.Timeout, logger, m)
	}
	pushes := push.NewDispatcher(pushClient, cfg.Push.Timeout, logger, m)

	hub := websocket.NewHub(logger, m)

	statusService := service.NewStatusService(messageRepo, registry, hub, logger)
	deliveryService := service.NewDeliveryService(messageRepo, channelRepo, userRepo, registry, hub, pushes, logger, m)
	typingService := service.NewTypingService(channelRepo, registry, hub)
	callService := service.NewCallService(callRepo, messageRepo, userRepo, registry, hub, pushes, logger, m)
	presenceService := service.NewPresenceService(userRepo, registry, mirror, statusService, hub, logger, m)

	dispatcher := websocket.NewDispatcher(hub, deliveryService, statusService, typingService, callService, logger, m)
	wsHandler := websocket.NewHandler(hub, presenceService, dispatcher, cfg.WebSocket.Origins(), cfg.WebSocket.SendBufferSize, logger)

	scheduler := job.NewScheduler(logger)
	if err := scheduler.Add("missed-calls", cfg.Calls.SweepSchedule, job.NewMissedCallJob(callService, cfg.Calls.MissedAfter, logger)); err != nil {
		logger.Fatal("Failed to schedule missed call sweep", zap.Error(err))
	}
	scheduler.Start()

	r := router.Setup(router.Config{
		DB:          db,
		Redis:       redisClient,
		Logger:      logger,
		Metrics:     m,
		BasePath:    cfg.Server.BasePath,
		CORSOrigins: cfg.Server.CORSOrigins,
		JWTSecret:   cfg.Auth.SecretKey,
		Presence:    presenceService,
		WebSocket:   wsHandler,
	})

	// no WriteTimeout: it would cut long-lived websocket connections
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}

	go func() {
		logger.Info("Chat realtime service started", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	scheduler.Stop()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	// hijacked sockets are not closed by Shutdown
	hub.Shutdown()
	waitOrTimeout(ctx, hub.Wait)
	waitOrTimeout(ctx, pushes.Wait)

	logger.Info("Server exited gracefully")
}

func waitOrTimeout(ctx context.Context, wait func()) {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// initLogger initializes the zap logger with the specified level
func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      zapLevel == zapcore.DebugLevel,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}
