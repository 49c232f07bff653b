package db

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"go-llmlab/internal/archive"
	"go-llmlab/internal/config"
	"go-llmlab/internal/user"
)

var DB *gorm.DB

// Open connects to the configured database and migrates every table.
func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.Database.DSN)
	case "sqlite", "":
		dialector = sqlite.Open(cfg.Database.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&user.User{}); err != nil {
		return nil, err
	}

	// Conversations, turns and brochures
	if err := db.AutoMigrate(archive.Models()...); err != nil {
		return nil, err
	}
	return db, nil
}

func Init(cfg *config.Config) error {
	db, err := Open(cfg)
	if err != nil {
		return err
	}
	DB = db
	logrus.WithField("driver", cfg.Database.Driver).Info("Database connected and migrated")
	return nil
}
