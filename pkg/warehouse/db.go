// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package warehouse loads the staging lake into a relational store with
// natural-key upserts. Schema bootstrap is idempotent and the loaders
// tolerate malformed files and rows: failures are counted, not fatal.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // register sqlite to sql
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"
)

// Error is the default warehouse error class
var Error = errs.Class("warehouse error")

var mon = monkit.Package()

// Config holds the warehouse settings.
type Config struct {
	Path     string // sqlite database file
	Progress bool   // show a progress bar during loads
}

// DB is the warehouse database.
type DB struct {
	log    *zap.Logger
	config Config

	mu sync.Mutex
	db *sql.DB

	now func() time.Time
}

// Open opens the warehouse at the configured path and bootstraps the
// schema. Bootstrap is create-if-not-exists for both tables and indexes,
// so it is safe on every run.
func Open(ctx context.Context, log *zap.Logger, config Config) (_ *DB, err error) {
	defer mon.Task()(&ctx)(&err)

	if dir := filepath.Dir(config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, Error.Wrap(err)
		}
	}

	sqlite, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?cache=shared&mode=rwc&mutex=full", config.Path))
	if err != nil {
		return nil, Error.Wrap(err)
	}

	// try to enable write-ahead-logging
	_, _ = sqlite.Exec(`PRAGMA journal_mode = WAL`)

	defer func() {
		if err != nil {
			_ = sqlite.Close()
		}
	}()

	tx, err := sqlite.Begin()
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range schema {
		if _, err := tx.Exec(stmt); err != nil {
			return nil, Error.Wrap(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, Error.Wrap(err)
	}

	log.Info("warehouse ready", zap.String("path", config.Path))
	return &DB{log: log, config: config, db: sqlite, now: time.Now}, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		message_id   INTEGER NOT NULL,
		channel_name TEXT NOT NULL,
		message_date TIMESTAMP,
		message_text TEXT,
		views        INTEGER,
		forwards     INTEGER,
		has_media    BOOLEAN NOT NULL DEFAULT 0,
		image_path   TEXT,
		raw_data     TEXT,
		loaded_at    TIMESTAMP NOT NULL,
		PRIMARY KEY (message_id, channel_name)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages (channel_name);`,
	`CREATE INDEX IF NOT EXISTS idx_messages_date ON messages (message_date);`,
	`CREATE INDEX IF NOT EXISTS idx_messages_loaded_at ON messages (loaded_at);`,
	`CREATE TABLE IF NOT EXISTS detections (
		message_id       INTEGER NOT NULL,
		channel_name     TEXT NOT NULL,
		image_path       TEXT,
		detected_class   TEXT,
		confidence_score REAL,
		image_category   TEXT,
		num_detections   INTEGER,
		loaded_at        TIMESTAMP NOT NULL,
		PRIMARY KEY (message_id, channel_name)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_detections_channel ON detections (channel_name);`,
}

// Close closes the database.
func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) locked() func() {
	db.mu.Lock()
	return db.mu.Unlock
}

// LoadStats reports the outcome of one load run. A run that only hits
// file- or row-level failures is still a success with a non-zero tally.
type LoadStats struct {
	FilesProcessed int `json:"files_processed"`
	RowsLoaded     int `json:"rows_loaded"`
	Errors         int `json:"errors"`
}

// TableStats summarizes the messages table.
type TableStats struct {
	TotalMessages  int64
	UniqueChannels int64
	EarliestDate   string
	LatestDate     string
}

// Stats queries summary statistics from the messages table.
func (db *DB) Stats(ctx context.Context) (_ *TableStats, err error) {
	defer mon.Task()(&ctx)(&err)
	defer db.locked()()

	stats := &TableStats{}
	err = db.db.QueryRow(`
		SELECT COUNT(*),
		       COUNT(DISTINCT channel_name),
		       COALESCE(MIN(message_date), ''),
		       COALESCE(MAX(message_date), '')
		FROM messages`).
		Scan(&stats.TotalMessages, &stats.UniqueChannels, &stats.EarliestDate, &stats.LatestDate)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return stats, nil
}
