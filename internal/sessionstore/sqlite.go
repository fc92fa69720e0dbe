package sessionstore

import (
	"log/slog"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/resonantfield/tapedeck/internal/conf"
	"github.com/resonantfield/tapedeck/internal/errors"
)

func openSQLite(settings *conf.Settings, log *slog.Logger) (*gorm.DB, error) {
	dbPath := settings.SessionStore.SQLite.Path
	if dbPath == "" {
		dbPath = filepath.Join(settings.Paths.ProjectsDir, "sessions.db")
	}

	log.Info("opening sqlite session store", "path", dbPath)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, errors.New(err).
			Component("sessionstore").
			Category(errors.CategorySessionStore).
			Context("operation", "create_database_directory").
			Context("directory", filepath.Dir(dbPath)).
			Build()
	}

	gormLogger := logger.Default.LogMode(logger.Warn)
	if settings.Debug {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, errors.New(err).
			Component("sessionstore").
			Category(errors.CategorySessionStore).
			Context("operation", "open_sqlite_database").
			Context("db_path", dbPath).
			Build()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.New(err).
			Component("sessionstore").
			Category(errors.CategorySessionStore).
			Context("operation", "get_underlying_sqldb").
			Build()
	}

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-4000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			log.Warn("failed to set sqlite pragma", "pragma", pragma, "error", err)
		}
	}
	sqlDB.SetMaxOpenConns(1) // sqlite writers serialize regardless; avoid contention on the file lock

	log.Info("sqlite session store opened", "path", dbPath, "journal_mode", "WAL")
	return db, nil
}
