package router

import (
	"chat-realtime-service/internal/handler"
	"chat-realtime-service/internal/metrics"
	"chat-realtime-service/internal/middleware"
	"chat-realtime-service/internal/service"
	"chat-realtime-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Config struct {
	DB          *gorm.DB
	Redis       *redis.Client
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	BasePath    string
	CORSOrigins string
	JWTSecret   string

	Presence  service.PresenceService
	WebSocket *websocket.Handler
}

func Setup(cfg Config) *gin.Engine {
	r := gin.New()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.Metrics(cfg.Metrics))

	healthHandler := handler.NewHealthHandler(cfg.DB, cfg.Redis)
	presenceHandler := handler.NewPresenceHandler(cfg.Presence, cfg.Logger)
	validator := middleware.NewJWTValidator(cfg.JWTSecret)

	// Health endpoints (no auth)
	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group(cfg.BasePath)
	{
		api.GET("/health", healthHandler.Health)
		api.GET("/ready", healthHandler.Ready)

		// identity comes from the userId query parameter
		api.GET("/ws", cfg.WebSocket.ServeWS)

		authenticated := api.Group("")
		authenticated.Use(middleware.AuthMiddleware(validator))
		{
			authenticated.GET("/presence/online", presenceHandler.GetOnlineUsers)
			authenticated.GET("/presence/:userId", presenceHandler.GetUserStatus)
		}
	}

	return r
}
