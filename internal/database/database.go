package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite" // Pure Go
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlog "gorm.io/gorm/logger"

	"github.com/r0gig0r/double-take/config"
	"github.com/r0gig0r/double-take/internal/core/models"
)

// DB holds the global GORM database connection pool.
var DB *gorm.DB

// Init opens the configured database and sets the global DB handle.
func Init(cfg config.DBConfig) error {
	db, err := Open(cfg.File)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Open opens a SQLite database at the given path and migrates the schema.
func Open(file string) (*gorm.DB, error) {
	dbDir := filepath.Dir(file)
	if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory '%s': %w", dbDir, err)
	}

	// Route GORM's logger through the configured logrus instance
	gormLogger := gormlog.New(
		log.StandardLogger(),
		gormlog.Config{
			SlowThreshold:             2 * time.Second,
			LogLevel:                  gormlog.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	log.Infof("Connecting to database: %s", file)
	db, err := gorm.Open(sqlite.Open(file), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.MatchRecord{},
		&models.TrainingRecord{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database schema: %w", err)
	}

	return db, nil
}
