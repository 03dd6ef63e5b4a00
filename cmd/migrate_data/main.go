package main

import (
	"flag"

	"chatbot-console/internal/config"
	"chatbot-console/internal/database"
	"chatbot-console/internal/logger"
	"chatbot-console/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	gormlogger "gorm.io/gorm/logger"
)

// Copies stored console state from a local SQLite file into the configured
// PostgreSQL database, then resyncs the id sequence.
func main() {
	source := flag.String("from", "", "SQLite file to read (defaults to DB_PATH)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	if _, err := logger.Init(cfg.Log); err != nil {
		logrus.Fatalf("Failed to init logger: %v", err)
	}
	log := logger.For("migrate")

	if *source == "" {
		*source = cfg.DBPath
	}
	if cfg.DBDriver != "postgres" {
		log.Fatal("DB_DRIVER must be postgres for the destination")
	}

	// 1. Connect to SQLite (Source)
	sqliteDB, err := database.Open(sqlite.Open(*source), gormlogger.Warn)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to SQLite")
	}
	log.Infof("Connected to SQLite at %s", *source)

	// 2. Connect to PostgreSQL (Destination)
	if err := database.InitGorm(cfg, log); err != nil {
		log.WithError(err).Fatal("Failed to connect to PostgreSQL")
	}
	pgDB := database.GormDB

	log.Info("Starting data migration...")

	copied, err := copyStoredValues(sqliteDB, pgDB)
	if err != nil {
		log.WithError(err).Fatal("Error migrating stored_values")
	}
	log.WithField("rows", copied).Info("Successfully migrated stored_values")

	table := models.StoredValue{}.TableName()
	query := "SELECT setval(pg_get_serial_sequence('" + table + "', 'id'), coalesce(max(id), 0) + 1, false) FROM " + table
	if err := pgDB.Exec(query).Error; err != nil {
		log.WithError(err).Fatalf("Error syncing sequence for %s", table)
	}
	log.Infof("Successfully synced sequence for %s", table)

	log.Info("Migration completed!")
}
