// internal/storage/sqlstore/sqlstore.go
package sqlstore

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/rovshanmuradov/solana-autotrader/internal/storage"
	"github.com/rovshanmuradov/solana-autotrader/internal/storage/models"
)

// gormLogger реализует интерфейс logger.Interface для GORM
type gormLogger struct {
	zapLogger     *zap.Logger
	logLevel      logger.LogLevel
	slowThreshold time.Duration
}

// newGormLogger создает новый логгер для GORM
func newGormLogger(zapLogger *zap.Logger) logger.Interface {
	return &gormLogger{
		zapLogger:     zapLogger,
		logLevel:      logger.Warn,
		slowThreshold: 200 * time.Millisecond,
	}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.logLevel = level
	return &newLogger
}

func (l *gormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Info {
		l.zapLogger.Sugar().Infof(msg, data...)
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Warn {
		l.zapLogger.Sugar().Warnf(msg, data...)
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Error {
		l.zapLogger.Sugar().Errorf(msg, data...)
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.logLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
	}

	switch {
	case err != nil && l.logLevel >= logger.Error:
		l.zapLogger.Error("trace", append(fields, zap.Error(err))...)
	case elapsed > l.slowThreshold && l.logLevel >= logger.Warn:
		l.zapLogger.Warn("slow query", fields...)
	case l.logLevel >= logger.Info:
		l.zapLogger.Debug("trace", fields...)
	}
}

// sqlStorage хранит коллекции в Postgres или SQLite через GORM
type sqlStorage struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ storage.Storage = (*sqlStorage)(nil)

// NewStorage открывает базу (driver: postgres | sqlite) и применяет миграции.
func NewStorage(driver, dsn string, zapLogger *zap.Logger) (storage.Storage, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(zapLogger.Named("gorm")),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&models.Position{}, &models.SoldPosition{}, &models.Transaction{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &sqlStorage{
		db:     db,
		logger: zapLogger.Named("sqlstore"),
	}, nil
}

func (s *sqlStorage) LoadPositions(ctx context.Context) ([]models.Position, error) {
	var positions []models.Position
	err := s.db.WithContext(ctx).Order("purchase_time asc, address asc").Find(&positions).Error
	return positions, err
}

// SavePositions заменяет таблицу позиций целиком в одной транзакции
func (s *sqlStorage) SavePositions(ctx context.Context, positions []models.Position) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.Position{}).Error; err != nil {
			return err
		}
		if len(positions) == 0 {
			return nil
		}
		return tx.Create(&positions).Error
	})
}

func (s *sqlStorage) LoadSoldPositions(ctx context.Context) ([]models.SoldPosition, error) {
	var sold []models.SoldPosition
	err := s.db.WithContext(ctx).Order("sold_at desc").Find(&sold).Error
	return sold, err
}

func (s *sqlStorage) SaveSoldPositions(ctx context.Context, sold []models.SoldPosition) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.SoldPosition{}).Error; err != nil {
			return err
		}
		if len(sold) == 0 {
			return nil
		}
		return tx.Create(&sold).Error
	})
}

// SaveTransaction сохраняет запись журнала; повтор по той же подписи обновляет статус
func (s *sqlStorage) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "signature"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "error"}),
	}).Create(tx).Error
}

func (s *sqlStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
