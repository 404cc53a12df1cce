// Package repo implements the data persistence layer for the webhook
// pipeline, backed by GORM. This file contains database bootstrapping for
// SQLite (pure Go driver, default) and MySQL (production deployments),
// plus schema migrations.
package repo

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tapcommerce/go-merchant-backend/internal/domain"
)

// ErrNotFound is the repo-level sentinel for missing rows, shielding
// callers from gorm.ErrRecordNotFound.
var ErrNotFound = errors.New("not found")

// Open opens the datastore for the given driver ("sqlite" or "mysql") and
// instruments the handle with OpenTelemetry tracing.
func Open(driver, dsn string) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	switch driver {
	case "mysql":
		db, err = gorm.Open(mysql.Open(dsn), &gorm.Config{})
	default:
		db, err = openSQLite(dsn)
	}
	if err != nil {
		return nil, err
	}

	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}
	return db, nil
}

// openSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func openSQLite(path string) (*gorm.DB, error) {
	// Fail early if the parent directory does not exist instead of the
	// opaque sqlite "out of memory (14)".
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// AutoMigrate creates/updates the tables the pipeline reads and writes.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.WebhookDelivery{},
		&domain.Customer{},
		&domain.Sale{},
		&domain.CheckoutAttempt{},
		&domain.AbandonedCart{},
	)
}
