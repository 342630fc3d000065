// @title           Presence Service API
// @version         1.0
// @description     Workspace real-time presence and session management API

// @host      localhost:8002
// @BasePath  /api/presence

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"presence-service/internal/client"
	"presence-service/internal/config"
	"presence-service/internal/database"
	"presence-service/internal/handler"
	"presence-service/internal/metrics"
	"presence-service/internal/presence"
	"presence-service/internal/repository"
	"presence-service/internal/router"
	"presence-service/internal/websocket"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
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

	instanceID := uuid.New().String()
	logger.Info("Starting Presence Service",
		zap.String("port", cfg.Server.Port),
		zap.String("base_path", cfg.Server.BasePath),
		zap.String("instance_id", instanceID),
		zap.Duration("idle_timeout", cfg.Presence.IdleTimeout),
		zap.Duration("sweep_interval", cfg.Presence.SweepInterval),
		zap.Int("max_connections_per_user", cfg.Presence.MaxConnectionsPerUser),
		zap.Duration("reconnect_grace", cfg.Presence.ReconnectGrace),
	)

	// Presence keeps working in memory when the database is down; the
	// repository no-ops until the connection attaches.
	presenceRepo := repository.NewPresenceRepository(nil)
	db, err := database.InitPostgres(cfg.Database.URL, logger)
	if err != nil {
		logger.Warn("Failed to connect to database on startup, will retry in background", zap.Error(err))
		database.InitPostgresAsync(cfg.Database.URL, 5*time.Second, logger, func(conn *gorm.DB) {
			presenceRepo.AttachDB(conn)
		})
	} else {
		presenceRepo.AttachDB(db)
	}

	redisClient, err := database.InitRedis(cfg.Redis.URL, logger)
	if err != nil {
		logger.Warn("Redis unavailable, cross-instance fan-out disabled", zap.Error(err))
	}

	m := metrics.New()

	authClient := client.NewAuthClient(cfg.Auth.ServiceURL, cfg.Auth.SecretKey, logger)
	workspaceClient := client.NewWorkspaceClient(cfg.Services.WorkspaceServiceURL, 10*time.Second)

	// Core wiring. The hub needs the registry for broadcast targeting and the
	// registry broadcasts through the hub, so the roster attaches last.
	clock := presence.NewClock()
	hub := websocket.NewHub(m, logger)
	broadcaster := presence.MultiBroadcaster{
		hub,
		presence.NewRedisBroadcaster(redisClient, instanceID, logger),
	}

	gate := presence.NewConnectionGate(authClient, cfg.Presence.MaxConnectionsPerUser, logger)
	window := presence.NewReconnectionWindow(clock, cfg.Presence.ReconnectGrace, gate.ReleaseSlot, logger)
	registry := presence.NewWorkspaceSessionRegistry(broadcaster, clock, func(connID uuid.UUID) bool {
		_, ok := gate.Lookup(connID)
		return ok
	}, logger)
	tracker := presence.NewPresenceTracker(clock, presenceRepo, broadcaster, registry, cfg.Presence.IdleTimeout, logger)
	hub.SetRoster(registry)

	manager := presence.NewManager(gate, registry, tracker, window, workspaceClient, m, logger)

	subscriberCtx, cancelSubscriber := context.WithCancel(context.Background())
	defer cancelSubscriber()
	subscriber := websocket.NewSubscriber(redisClient, hub, instanceID, logger)
	go subscriber.Run(subscriberCtx)

	// Periodic idle sweep. A panicking sweep is recovered by the job chain;
	// the scheduler must outlive any single bad run.
	sweeper := cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(zap.NewStdLog(logger)))))
	sweeper.Schedule(cron.Every(cfg.Presence.SweepInterval), cron.FuncJob(func() {
		start := time.Now()
		manager.SweepIdle(context.Background())
		m.IdleSweepDuration.Observe(time.Since(start).Seconds())
		m.ActiveWorkspaces.Set(float64(registry.WorkspaceCount()))
	}))
	sweeper.Start()

	wsHandler := websocket.NewHandler(hub, manager, logger)
	presenceHandler := handler.NewPresenceHandler(manager, presenceRepo, logger)
	healthHandler := handler.NewHealthHandler(db, redisClient)

	r := router.Setup(router.Config{
		Logger:          logger,
		BasePath:        cfg.Server.BasePath,
		CORSOrigins:     getEnv("CORS_ORIGINS", "*"),
		Validator:       authClient,
		Metrics:         m,
		WSHandler:       wsHandler,
		PresenceHandler: presenceHandler,
		HealthHandler:   healthHandler,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		logger.Info("Presence Service started successfully", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	sweeper.Stop()
	cancelSubscriber()
	manager.Shutdown()
	hub.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited gracefully")
}

// initLogger initializes the zap logger with the specified level.
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

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
