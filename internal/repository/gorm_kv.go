package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/insect-id/internal/logging"
)

// KVEntry is one persisted key.
type KVEntry struct {
	Key       string    `gorm:"column:entry_key;primaryKey;size:255"`
	Value     string    `gorm:"column:value;type:text"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName overrides the default table name.
func (KVEntry) TableName() string {
	return "kv_entries"
}

// GormKV stores keys in a single SQL table. It works with any gorm dialect
// supporting ON CONFLICT, which covers postgres and sqlite.
type GormKV struct {
	db *gorm.DB
	retrier
}

// NewGormKV creates a new repository instance.
func NewGormKV(db *gorm.DB, logger *zap.Logger) *GormKV {
	return &GormKV{db: db, retrier: newRetrier(logger.Named("gorm_kv"))}
}

// AutoMigrate ensures the schema is available.
func (r *GormKV) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&KVEntry{})
}

func (r *GormKV) Get(ctx context.Context, key string) ([]byte, error) {
	var entry KVEntry
	err := r.executeWithRetry(ctx, "gorm_kv.get", logging.RequestIDFromContext(ctx), func() error {
		err := r.db.WithContext(ctx).Take(&entry, "entry_key = ?", key).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return []byte(entry.Value), nil
}

func (r *GormKV) Set(ctx context.Context, key string, value []byte) error {
	entry := KVEntry{Key: key, Value: string(value), UpdatedAt: time.Now().UTC()}
	return r.executeWithRetry(ctx, "gorm_kv.set", logging.RequestIDFromContext(ctx), func() error {
		return r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "entry_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&entry).Error
	})
}

func (r *GormKV) Delete(ctx context.Context, key string) error {
	return r.executeWithRetry(ctx, "gorm_kv.delete", logging.RequestIDFromContext(ctx), func() error {
		return r.db.WithContext(ctx).Delete(&KVEntry{}, "entry_key = ?", key).Error
	})
}

func (r *GormKV) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return logging.NewOperationError("gorm_kv.ping", "", err)
	}
	return logging.NewOperationError("gorm_kv.ping", "", sqlDB.PingContext(ctx))
}
