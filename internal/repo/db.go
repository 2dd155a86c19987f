// Package repo implements the data persistence layer for campaign plans and
// idempotency records, backed by GORM on SQLite (pure Go driver).
package repo

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-send-pacer/internal/config"
	"github.com/tbourn/go-send-pacer/internal/domain"
)

// OpenSQLite opens (or creates) the plan store described by cfg and installs
// the OpenTelemetry plugin so every query becomes a span.
//
// PRAGMAs travel in the DSN, so each pooled connection gets them rather than
// only the one that happened to run an Exec.
func OpenSQLite(cfg config.DBConfig) (*gorm.DB, error) {
	// A missing directory otherwise surfaces as sqlite "out of memory (14)".
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("db dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(sqliteDSN(cfg)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	if err := db.Use(tracing.NewPlugin()); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	conns := cfg.MaxOpenConns
	if conns < 1 {
		conns = 1
	}
	sqlDB.SetMaxOpenConns(conns)
	sqlDB.SetMaxIdleConns(conns)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func sqliteDSN(cfg config.DBConfig) string {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeout.Milliseconds()))
	return cfg.Path + "?" + q.Encode()
}

// AutoMigrate creates or updates the plans and idempotency tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.Plan{}, &domain.Idempotency{})
}
