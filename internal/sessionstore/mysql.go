package sessionstore

import (
	"fmt"
	"log/slog"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/resonantfield/tapedeck/internal/conf"
	"github.com/resonantfield/tapedeck/internal/errors"
)

func openMySQL(settings *conf.Settings, log *slog.Logger) (*gorm.DB, error) {
	cfg := settings.SessionStore.MySQL
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	sanitizedDSN := fmt.Sprintf("%s:***@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username, cfg.Host, cfg.Port, cfg.Database)
	log.Info("opening mysql session store", "dsn", sanitizedDSN)

	gormLogger := logger.Default.LogMode(logger.Warn)
	if settings.Debug {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, errors.New(err).
			Component("sessionstore").
			Category(errors.CategorySessionStore).
			Context("operation", "open_mysql_database").
			Context("dsn", sanitizedDSN).
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
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)

	log.Info("mysql session store opened", "host", cfg.Host, "database", cfg.Database)
	return db, nil
}
