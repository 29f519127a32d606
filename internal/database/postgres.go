// internal/database/postgres.go
package database

import (
	"context"
	"fmt"
	"time"

	"chat-realtime-service/internal/config"
	"chat-realtime-service/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitPostgres opens the PostgreSQL connection and runs migrations.
func InitPostgres(cfg config.DatabaseConfig, env string) (*gorm.DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	logLevel := logger.Silent
	if env == "dev" || env == "development" {
		logLevel = logger.Info
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	// gorm.Open has no context; bound it here
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	type result struct {
		db  *gorm.DB
		err error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := gorm.Open(postgres.Open(cfg.URL), gormConfig)
		done <- result{db: conn, err: err}
	}()

	var conn *gorm.DB
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("database connection timeout")
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", res.err)
		}
		conn = res.db
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := AutoMigrate(conn); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return conn, nil
}

// AutoMigrate creates or updates every table the realtime service touches.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.UserContact{},
		&model.PushToken{},
		&model.Channel{},
		&model.ChannelMember{},
		&model.Message{},
		&model.ChannelMessage{},
		&model.Call{},
	)
}
