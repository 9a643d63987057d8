// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package warehouse

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"time"

	"github.com/cheggaaa/pb"
	"go.uber.org/zap"

	"github.com/chanlake/chanlake/storage/lakestore"
)

// LoadMessages upserts every partition file of the lake into the messages
// table. Malformed files and rows are logged, counted and skipped; a
// missing or empty lake yields a zero-row, zero-error result so the load
// can run before any data exists.
func (db *DB) LoadMessages(ctx context.Context, lake *lakestore.Store) (_ *LoadStats, err error) {
	defer mon.Task()(&ctx)(&err)

	paths, err := lake.ListPartitions(ctx)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	db.log.Info("loading partition files", zap.Int("count", len(paths)))

	stats := &LoadStats{}

	var bar *pb.ProgressBar
	if db.config.Progress && len(paths) > 0 {
		bar = pb.StartNew(len(paths))
	}

	for _, path := range paths {
		if bar != nil {
			bar.Increment()
		}
		loaded, err := db.loadPartitionFile(ctx, path, stats)
		if err != nil {
			stats.Errors++
			db.log.Error("skipping partition file", zap.String("path", path), zap.Error(err))
			continue
		}
		stats.FilesProcessed++
		stats.RowsLoaded += loaded
	}

	if bar != nil {
		bar.Finish()
	}

	mon.IntVal("messages_loaded").Observe(int64(stats.RowsLoaded))
	db.log.Info("message load complete",
		zap.Int("files_processed", stats.FilesProcessed),
		zap.Int("rows_loaded", stats.RowsLoaded),
		zap.Int("errors", stats.Errors))
	return stats, nil
}

// loadPartitionFile upserts a single partition file inside one transaction.
// Rows that cannot be decoded are counted in stats and skipped before the
// batch, so one bad row never loses the rest of the file.
func (db *DB) loadPartitionFile(ctx context.Context, path string, stats *LoadStats) (loaded int, err error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return 0, Error.Wrap(err)
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return 0, Error.New("not a JSON array: %v", err)
	}

	// Pre-validate every row so the batch below only sees good rows.
	valid := make([]lakestore.Message, 0, len(rows))
	for _, raw := range rows {
		var msg lakestore.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			stats.Errors++
			db.log.Warn("skipping malformed row", zap.String("path", path), zap.Error(err))
			continue
		}
		if msg.ID == 0 || msg.Channel == "" {
			stats.Errors++
			db.log.Warn("skipping row without natural key", zap.String("path", path))
			continue
		}
		valid = append(valid, msg)
	}

	defer db.locked()()

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, Error.Wrap(err)
	}
	defer func() { _ = tx.Rollback() }()

	loadedAt := db.now().UTC()
	for _, msg := range valid {
		raw, err := json.Marshal(msg)
		if err != nil {
			stats.Errors++
			continue
		}
		_, err = tx.Exec(`
			INSERT OR REPLACE INTO messages
				(message_id, channel_name, message_date, message_text, views,
				 forwards, has_media, image_path, raw_data, loaded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			msg.ID, msg.Channel, messageDate(msg.Date), msg.Text, msg.Views,
			msg.Forwards, msg.HasMedia, msg.ImagePath, string(raw), loadedAt)
		if err != nil {
			return 0, Error.Wrap(err)
		}
		loaded++
	}

	if err := tx.Commit(); err != nil {
		return 0, Error.Wrap(err)
	}
	return loaded, nil
}

func messageDate(date *time.Time) interface{} {
	if date == nil {
		return nil
	}
	return date.UTC().Format(time.RFC3339)
}
