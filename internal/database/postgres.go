package database

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"presence-service/internal/domain"
)

// InitPostgres opens the database connection and runs migrations. A failure
// is returned, not fatal: the service runs presence purely in memory until
// the database comes up.
func InitPostgres(dsn string, log *zap.Logger) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database url is not configured")
	}

	logLevel := logger.Silent
	if os.Getenv("ENV") == "dev" {
		logLevel = logger.Info
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var conn *gorm.DB
	var err error
	done := make(chan struct{})
	go func() {
		conn, err = gorm.Open(postgres.Open(dsn), gormConfig)
		close(done)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("database connection timeout")
	case <-done:
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := conn.AutoMigrate(&domain.UserPresence{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("postgres connected and migrated")
	return conn, nil
}

// InitPostgresAsync retries the connection in the background without
// blocking startup, invoking onReady once connected.
func InitPostgresAsync(dsn string, retryInterval time.Duration, log *zap.Logger, onReady func(*gorm.DB)) {
	go func() {
		for {
			conn, err := InitPostgres(dsn, log)
			if err != nil {
				log.Warn("database connection failed, retrying",
					zap.Duration("retry_in", retryInterval),
					zap.Error(err))
				time.Sleep(retryInterval)
				continue
			}
			onReady(conn)
			return
		}
	}()
}
