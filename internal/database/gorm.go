package database

import (
	"fmt"

	"chatbot-console/internal/config"
	"chatbot-console/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var GormDB *gorm.DB

// Dialector picks the gorm driver named by DB_DRIVER.
func Dialector(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.DBDriver {
	case "postgres":
		return postgres.Open(cfg.PostgresDSN()), nil
	case "sqlite":
		return sqlite.Open(cfg.DBPath), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

// Open connects with the given dialector and migrates the schema.
func Open(dialector gorm.Dialector, logMode logger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logMode),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&models.StoredValue{}); err != nil {
		return nil, fmt.Errorf("auto-migration: %w", err)
	}
	return db, nil
}

// InitGorm opens the configured database and sets GormDB.
func InitGorm(cfg *config.Config, log *logrus.Entry) error {
	dialector, err := Dialector(cfg)
	if err != nil {
		return err
	}

	db, err := Open(dialector, logger.Warn)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.DBDriver, err)
	}
	GormDB = db

	log.WithField("driver", cfg.DBDriver).Info("Database connected and migrated")
	return nil
}
