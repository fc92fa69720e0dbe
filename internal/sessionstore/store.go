package sessionstore

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/resonantfield/tapedeck/internal/conf"
	"github.com/resonantfield/tapedeck/internal/errors"
	"github.com/resonantfield/tapedeck/internal/logging"
)

// Store is the recording-session / project / backup-history index. It
// wraps a GORM connection opened against either SQLite or MySQL depending
// on conf.Settings.SessionStore.Driver.
type Store struct {
	db     *gorm.DB
	driver string
	log    *slog.Logger
}

// Open opens the configured driver, runs auto-migration, and returns a
// ready-to-use Store. Callers must call Close when done.
func Open(settings *conf.Settings) (*Store, error) {
	log := logging.ForService("sessionstore")

	var (
		db  *gorm.DB
		err error
	)

	switch settings.SessionStore.Driver {
	case "mysql":
		db, err = openMySQL(settings, log)
	case "sqlite", "":
		db, err = openSQLite(settings, log)
	default:
		return nil, errors.Newf("unsupported session store driver %q", settings.SessionStore.Driver).
			Component("sessionstore").
			Category(errors.CategorySessionStore).
			Context("operation", "open").
			Context("driver", settings.SessionStore.Driver).
			Build()
	}
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&ProjectRecord{}, &SessionRecord{}, &BackupRunRecord{}); err != nil {
		return nil, errors.New(err).
			Component("sessionstore").
			Category(errors.CategorySessionStore).
			Context("operation", "auto_migrate").
			Build()
	}

	driver := settings.SessionStore.Driver
	if driver == "" {
		driver = "sqlite"
	}

	return &Store{db: db, driver: driver, log: log}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.New(err).
			Component("sessionstore").
			Category(errors.CategorySessionStore).
			Context("operation", "get_underlying_sqldb").
			Build()
	}
	if err := sqlDB.Close(); err != nil {
		return errors.New(err).
			Component("sessionstore").
			Category(errors.CategorySessionStore).
			Context("operation", "close").
			Build()
	}
	s.log.Info("session store closed", "driver", s.driver)
	return nil
}

// Optimize runs driver-appropriate maintenance (VACUUM/ANALYZE for SQLite,
// OPTIMIZE TABLE for MySQL). It is safe to call periodically from a
// background maintenance loop.
func (s *Store) Optimize(ctx context.Context) error {
	start := time.Now()
	logger := s.log.With("operation", "optimize", "driver", s.driver)
	logger.Info("starting session store optimization")

	select {
	case <-ctx.Done():
		return errors.New(ctx.Err()).
			Component("sessionstore").
			Category(errors.CategorySessionStore).
			Context("operation", "optimize").
			Context("reason", "context_cancelled").
			Build()
	default:
	}

	var stmt string
	switch s.driver {
	case "mysql":
		stmt = "OPTIMIZE TABLE project_records, session_records, backup_run_records"
	default:
		stmt = "VACUUM"
	}

	if err := s.db.WithContext(ctx).Exec(stmt).Error; err != nil {
		return errors.New(err).
			Component("sessionstore").
			Category(errors.CategorySessionStore).
			Context("operation", "optimize").
			Context("statement", stmt).
			Build()
	}

	if s.driver != "mysql" {
		if err := s.db.WithContext(ctx).Exec("ANALYZE").Error; err != nil {
			logger.Warn("ANALYZE failed during optimization", "error", err)
		}
	}

	logger.Info("session store optimization complete", "elapsed", time.Since(start))
	return nil
}
