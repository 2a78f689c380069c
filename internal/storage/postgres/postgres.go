package postgres

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/atomx-labs/atomx/internal/storage"
	"github.com/atomx-labs/atomx/internal/storage/models"
)

// gormLogger bridges GORM's logger.Interface onto zap.
type gormLogger struct {
	zapLogger *zap.Logger
	logLevel  logger.LogLevel
}

func newGormLogger(zapLogger *zap.Logger) logger.Interface {
	return &gormLogger{zapLogger: zapLogger, logLevel: logger.Warn}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	next := *l
	next.logLevel = level
	return &next
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
	if err != nil {
		l.zapLogger.Error("trace", append(fields, zap.Error(err))...)
		return
	}
	if l.logLevel >= logger.Info {
		l.zapLogger.Info("trace", fields...)
	}
}

type postgresStorage struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStorage opens a Postgres-backed indexer store.
func NewStorage(dsn string, zapLogger *zap.Logger) (storage.Storage, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newGormLogger(zapLogger.Named("gorm")),
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
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &postgresStorage{db: db, logger: zapLogger.Named("storage")}, nil
}

func (p *postgresStorage) RunMigrations() error {
	var lockObtained bool
	if err := p.db.Raw("SELECT pg_try_advisory_lock(417)").Scan(&lockObtained).Error; err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !lockObtained {
		return fmt.Errorf("another migration is in progress")
	}
	defer p.db.Exec("SELECT pg_advisory_unlock(417)")

	if err := p.db.AutoMigrate(&models.TreasuryEvent{}, &models.Opportunity{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

func (p *postgresStorage) SaveTreasuryEvent(ctx context.Context, ev *models.TreasuryEvent) error {
	if err := p.db.WithContext(ctx).Create(ev).Error; err != nil {
		return fmt.Errorf("save treasury event: %w", err)
	}
	return nil
}

func (p *postgresStorage) ListTreasuryEvents(ctx context.Context, kind string, limit, offset int) ([]*models.TreasuryEvent, error) {
	q := p.db.WithContext(ctx).Order("occurred_at DESC").Limit(limit).Offset(offset)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var out []*models.TreasuryEvent
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list treasury events: %w", err)
	}
	return out, nil
}

func (p *postgresStorage) SaveOpportunity(ctx context.Context, opp *models.Opportunity) error {
	if err := p.db.WithContext(ctx).Create(opp).Error; err != nil {
		return fmt.Errorf("save opportunity: %w", err)
	}
	return nil
}

func (p *postgresStorage) ListOpportunities(ctx context.Context, pair string, limit, offset int) ([]*models.Opportunity, error) {
	q := p.db.WithContext(ctx).Order("detected_at DESC").Limit(limit).Offset(offset)
	if pair != "" {
		q = q.Where("pair = ?", pair)
	}
	var out []*models.Opportunity
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list opportunities: %w", err)
	}
	return out, nil
}

func (p *postgresStorage) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
