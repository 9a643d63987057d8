// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package runlog keeps a durable ledger of extraction run summaries in a
// Bolt database, so past runs stay queryable after the summary documents
// rotate away.
package runlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/chanlake/chanlake/pkg/scraper"
)

// Error is the default runlog error class
var Error = errs.Class("runlog error")

var (
	defaultTimeout = 1 * time.Second
	runsBucket     = []byte("runs")
)

const (
	// fileMode sets permissions so owner can read and write
	fileMode = 0600
	// keyFormat pads fractional seconds to a fixed width so bolt's
	// lexicographic key order stays chronological
	keyFormat = "2006-01-02T15:04:05.000000000Z07:00"
)

// Log is the run ledger backed by a Bolt database.
type Log struct {
	logger *zap.Logger
	db     *bolt.DB
	Path   string
}

// New opens (or creates) the run ledger at path.
func New(logger *zap.Logger, path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, Error.Wrap(err)
	}

	db, err := bolt.Open(path, fileMode, &bolt.Options{Timeout: defaultTimeout})
	if err != nil {
		return nil, Error.Wrap(err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(runsBucket)
		return err
	})
	if err != nil {
		return nil, Error.Wrap(errs.Combine(err, db.Close()))
	}

	return &Log{
		logger: logger,
		db:     db,
		Path:   path,
	}, nil
}

// Close closes the ledger.
func (log *Log) Close() error {
	return log.db.Close()
}

// Append records a run summary keyed by its start time. Appending the same
// run twice overwrites the prior entry.
func (log *Log) Append(summary *scraper.RunSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return Error.Wrap(err)
	}
	key := []byte(summary.StartTime.UTC().Format(keyFormat))

	err = log.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(runsBucket).Put(key, data)
	})
	return Error.Wrap(err)
}

// List returns the recorded run summaries, newest first.
func (log *Log) List() (_ []scraper.RunSummary, err error) {
	var summaries []scraper.RunSummary
	err = log.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(runsBucket).Cursor()
		for key, value := cursor.Last(); key != nil; key, value = cursor.Prev() {
			var summary scraper.RunSummary
			if err := json.Unmarshal(value, &summary); err != nil {
				log.logger.Warn("skipping unreadable ledger entry",
					zap.ByteString("key", key), zap.Error(err))
				continue
			}
			summaries = append(summaries, summary)
		}
		return nil
	})
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return summaries, nil
}
