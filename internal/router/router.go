package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"presence-service/internal/handler"
	"presence-service/internal/metrics"
	"presence-service/internal/middleware"
	"presence-service/internal/websocket"
)

// Config carries the dependencies the router wires into routes.
type Config struct {
	Logger          *zap.Logger
	BasePath        string
	CORSOrigins     string
	Validator       middleware.TokenValidator
	Metrics         *metrics.Metrics
	WSHandler       *websocket.Handler
	PresenceHandler *handler.PresenceHandler
	HealthHandler   *handler.HealthHandler
}

func Setup(cfg Config) *gin.Engine {
	r := gin.New()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.Metrics(cfg.Metrics))

	// Health and scrape endpoints, no auth
	r.GET("/health", cfg.HealthHandler.Health)
	r.GET("/ready", cfg.HealthHandler.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group(cfg.BasePath)
	{
		api.GET("/health", cfg.HealthHandler.Health)
		api.GET("/ready", cfg.HealthHandler.Ready)

		// The socket authenticates via its token query parameter, not the
		// REST auth middleware.
		api.GET("/ws", cfg.WSHandler.HandleWebSocket)

		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(cfg.Validator))
		{
			authenticated.GET("/online", cfg.PresenceHandler.GetOnlineUsers)
			authenticated.GET("/status/:userId", cfg.PresenceHandler.GetUserStatus)
			authenticated.GET("/workspace/:workspaceId", cfg.PresenceHandler.GetWorkspaceRoster)
		}
	}

	return r
}
