package db

import (
	"context"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fatflowers/payflow/internal/models"
	cfgpkg "github.com/fatflowers/payflow/pkg/config"
	gormzap "github.com/fatflowers/payflow/pkg/gormlog"
)

func NewDB(l *zap.SugaredLogger, cfg *cfgpkg.Config) (*gorm.DB, error) {
	return Open(l, cfg.Database.DSN)
}

// Open connects to dsn. postgres:// and postgresql:// URLs (or key=value DSNs
// with a host) select PostgreSQL; anything else is a SQLite database file.
func Open(l *zap.SugaredLogger, dsn string) (*gorm.DB, error) {
	if dsn == "" {
		l.Error("database DSN is empty")
		return nil, gorm.ErrInvalidDB
	}
	driver, dialector := dialectorFor(dsn)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormzap.New(l)})
	if err != nil {
		l.Errorf("failed to connect database: %v", err)
		return nil, err
	}
	l.Infow("connected to settlement database", "driver", driver)
	return db, nil
}

func dialectorFor(dsn string) (string, gorm.Dialector) {
	if isPostgresDSN(dsn) {
		return "postgres", postgres.Open(dsn)
	}
	return "sqlite", sqlite.Open(dsn)
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}

var Module = fx.Options(
	fx.Provide(NewDB),
	fx.Invoke(AutoMigrate),
	fx.Invoke(registerDBClose),
)

// AutoMigrate creates the settlements table on startup.
func AutoMigrate(l *zap.SugaredLogger, db *gorm.DB) error {
	if err := db.AutoMigrate(&models.SettlementEntry{}); err != nil {
		l.Errorf("automigrate failed: %v", err)
		return err
	}
	l.Infow("automigrate completed")
	return nil
}

// registerDBClose ensures the underlying *sql.DB is closed on shutdown
func registerDBClose(lc fx.Lifecycle, l *zap.SugaredLogger, gdb *gorm.DB) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				l.Warnw("gorm: get sql.DB failed", "err", err)
				return nil
			}
			l.Infow("closing settlement database")
			return sqlDB.Close()
		},
	})
}
