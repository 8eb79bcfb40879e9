// internal/storage/gormstore/gormstore.go
package gormstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lasersell/lasersell/internal/storage"
	"github.com/lasersell/lasersell/internal/storage/models"
)

const maxListLimit = 500

// Store is a gorm-backed storage.Journal.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ storage.Journal = (*Store)(nil)

// IsPostgresDSN reports whether dsn names a PostgreSQL database rather than a sqlite file.
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open connects to dsn, creating the sqlite directory if needed, and migrates the schema.
func Open(dsn string, zapLogger *zap.Logger, debug bool) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("journal path is empty")
	}

	var dialector gorm.Dialector
	if IsPostgresDSN(dsn) {
		dialector = postgres.Open(dsn)
	} else {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create journal dir: %w", err)
			}
		}
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(zapLogger.Named("gorm"), debug),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	if IsPostgresDSN(dsn) {
		sqlDB.SetMaxIdleConns(2)
		sqlDB.SetMaxOpenConns(4)
		sqlDB.SetConnMaxLifetime(time.Hour)
	} else {
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
	}

	s := &Store{db: db, logger: zapLogger}
	if err := s.migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	if err := s.db.AutoMigrate(&models.Sell{}, &models.SessionError{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *Store) RecordSell(ctx context.Context, sell *models.Sell) error {
	return s.db.WithContext(ctx).Create(sell).Error
}

func (s *Store) RecordError(ctx context.Context, rec *models.SessionError) error {
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *Store) ListSells(ctx context.Context, limit int) ([]*models.Sell, error) {
	var sells []*models.Sell
	err := s.db.WithContext(ctx).
		Order("created_at desc").
		Order("id desc").
		Limit(clampLimit(limit)).
		Find(&sells).Error
	return sells, err
}

func (s *Store) ListErrors(ctx context.Context, limit int) ([]*models.SessionError, error) {
	var errs []*models.SessionError
	err := s.db.WithContext(ctx).
		Order("created_at desc").
		Order("id desc").
		Limit(clampLimit(limit)).
		Find(&errs).Error
	return errs, err
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
