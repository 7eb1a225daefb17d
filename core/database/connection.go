package database

import (
	"fmt"
	"time"

	"github.com/AzielCF/az-wrap/core/config"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// IsSQLite reports whether the configured driver stores every chat store in its own file.
func IsSQLite(db config.DatabaseConfig) bool {
	return db.Driver == "sqlite" || db.Driver == ""
}

// Dialector builds the gorm dialector for one chat store. With SQLite name is a file
// path; with Postgres it is the database name.
func Dialector(db config.DatabaseConfig, name string) (gorm.Dialector, error) {
	switch {
	case db.Driver == "postgres":
		return postgres.Open(fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
			db.Host, db.User, db.Password, name, db.Port)), nil
	case IsSQLite(db):
		return sqlite.Open(fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on", name)), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", db.Driver)
	}
}

// Open connects to the chat store called name.
func Open(cfg *config.Config, name string) (*gorm.DB, error) {
	dialector, err := Dialector(cfg.Database, name)
	if err != nil {
		return nil, err
	}

	logLevel := logger.Warn
	if cfg.App.Debug {
		logLevel = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chat store (%s): %w", name, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB instance: %w", err)
	}
	// SQLite serializes writers; a single connection avoids busy errors.
	if IsSQLite(cfg.Database) {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	} else {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(5)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db, nil
}
