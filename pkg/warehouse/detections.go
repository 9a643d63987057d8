// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package warehouse

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cheggaaa/pb"
	"go.uber.org/zap"
)

// detectionRow is one pre-validated detections upsert.
type detectionRow struct {
	messageID     int64
	channel       string
	imagePath     interface{}
	detectedClass interface{}
	confidence    interface{}
	category      interface{}
	numDetections interface{}
}

// LoadDetections upserts the detection staging CSV into the detections
// table. Rows are validated before the batched transaction so a single
// invalid row cannot lose the remainder of the batch. A missing CSV yields
// a zero-row, zero-error result.
func (db *DB) LoadDetections(ctx context.Context, csvPath string) (_ *LoadStats, err error) {
	defer mon.Task()(&ctx)(&err)

	stats := &LoadStats{}

	fh, err := os.Open(csvPath)
	if err != nil {
		if os.IsNotExist(err) {
			db.log.Warn("detection CSV not found, nothing to load", zap.String("path", csvPath))
			return stats, nil
		}
		return nil, Error.Wrap(err)
	}
	defer func() { _ = fh.Close() }()

	rows, err := db.readDetectionRows(csv.NewReader(fh), stats)
	if err != nil {
		stats.Errors++
		db.log.Error("skipping detection CSV", zap.String("path", csvPath), zap.Error(err))
		return stats, nil
	}
	stats.FilesProcessed++

	if len(rows) == 0 {
		db.log.Info("no valid detection rows to load")
		return stats, nil
	}

	var bar *pb.ProgressBar
	if db.config.Progress {
		bar = pb.StartNew(len(rows))
	}

	defer db.locked()()

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { _ = tx.Rollback() }()

	loadedAt := db.now().UTC()
	for _, row := range rows {
		_, err := tx.Exec(`
			INSERT OR REPLACE INTO detections
				(message_id, channel_name, image_path, detected_class,
				 confidence_score, image_category, num_detections, loaded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			row.messageID, row.channel, row.imagePath, row.detectedClass,
			row.confidence, row.category, row.numDetections, loadedAt)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		stats.RowsLoaded++
		if bar != nil {
			bar.Increment()
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, Error.Wrap(err)
	}
	if bar != nil {
		bar.Finish()
	}

	mon.IntVal("detections_loaded").Observe(int64(stats.RowsLoaded))
	db.log.Info("detection load complete",
		zap.Int("rows_loaded", stats.RowsLoaded),
		zap.Int("errors", stats.Errors))
	return stats, nil
}

// detectionHeader is the expected CSV header, in order.
var detectionHeader = []string{
	"message_id", "channel_name", "image_path", "detected_class",
	"confidence_score", "image_category", "num_detections",
}

func (db *DB) readDetectionRows(reader *csv.Reader, stats *LoadStats) ([]detectionRow, error) {
	header, err := reader.Read()
	if err == io.EOF {
		return nil, Error.New("empty CSV, missing header")
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}

	column := map[string]int{}
	for i, name := range header {
		column[strings.TrimSpace(name)] = i
	}
	for _, name := range detectionHeader {
		if _, ok := column[name]; !ok {
			return nil, Error.New("missing column %q", name)
		}
	}

	var rows []detectionRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			stats.Errors++
			db.log.Warn("skipping malformed CSV row", zap.Error(err))
			continue
		}

		field := func(name string) string {
			return strings.TrimSpace(record[column[name]])
		}

		messageID, err := strconv.ParseInt(field("message_id"), 10, 64)
		channel := field("channel_name")
		if err != nil || messageID == 0 || channel == "" {
			stats.Errors++
			db.log.Warn("skipping row without natural key")
			continue
		}

		rows = append(rows, detectionRow{
			messageID:     messageID,
			channel:       channel,
			imagePath:     nullableString(field("image_path")),
			detectedClass: nullableString(field("detected_class")),
			confidence:    nullableFloat(field("confidence_score")),
			category:      nullableString(field("image_category")),
			numDetections: nullableInt(field("num_detections")),
		})
	}
	return rows, nil
}

func nullableString(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func nullableFloat(value string) interface{} {
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	return parsed
}

func nullableInt(value string) interface{} {
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil
	}
	return parsed
}
