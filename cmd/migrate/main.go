package main

import (
	"f1report/internal/config"
	"f1report/internal/database"
	"f1report/internal/di"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load config")
	}
	logger := di.NewLogger(cfg)

	if !cfg.DB.Enabled {
		logger.Warn("Run history database is disabled, nothing to migrate")
		return
	}

	db, err := database.NewDatabase(cfg.DB, true)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	// Run migrations
	if err := database.AutoMigrate(db, logger); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}

	logger.Info("Migrations completed successfully")
}
