package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/insect-id/internal/config"
	"github.com/example/insect-id/internal/repository"
)

// openKV connects the configured backend. The returned func releases it.
func openKV(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.KV, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		logger.Warn("using in-memory store, history is lost on restart")
		return repository.NewMemoryKV(), func() {}, nil

	case config.BackendRedis:
		redisCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		client, err := initRedis(redisCtx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewRedisKV(client, logger), func() { _ = client.Close() }, nil

	case config.BackendPostgres:
		return openGorm(ctx, postgres.Open(cfg.DatabaseDSN), logger)

	case config.BackendSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		return openGorm(ctx, sqlite.Open(cfg.SQLitePath), logger)
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func openGorm(ctx context.Context, dialector gorm.Dialector, logger *zap.Logger) (repository.KV, func(), error) {
	db, err := initDatabase(ctx, dialector, logger)
	if err != nil {
		return nil, nil, err
	}
	kv := repository.NewGormKV(db, logger)
	if err := kv.AutoMigrate(ctx); err != nil {
		return nil, nil, fmt.Errorf("auto migrate failed: %w", err)
	}
	closeFn := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return kv, closeFn, nil
}

// newGormLogger routes gorm's output through zap. Missing keys are the normal
// state for a new device, so record-not-found is not logged.
func newGormLogger(logger *zap.Logger) gormlogger.Interface {
	return gormlogger.New(zap.NewStdLog(logger.Named("gorm")), gormlogger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

func initDatabase(ctx context.Context, dialector gorm.Dialector, logger *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger(logger)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access db handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return db, nil
}

func initRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}
