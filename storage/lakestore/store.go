// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package lakestore implements the partitioned staging lake: one JSON
// document per (date, channel) partition, committed with a temp-file write
// and a single rename so readers never observe a partial document.
package lakestore

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"

	"github.com/chanlake/chanlake/pkg/partition"
)

// Error is the default lakestore error class
var Error = errs.Class("lakestore error")

var mon = monkit.Package()

// Store is a durable partition store rooted at a single directory.
type Store struct {
	log  *zap.Logger
	root string
}

// New creates a partition store rooted at the specified directory.
func New(log *zap.Logger, root string) *Store {
	return &Store{log: log, root: root}
}

// Root returns the lake root directory.
func (store *Store) Root() string { return store.root }

// Path returns the absolute path of the partition file for key.
func (store *Store) Path(key partition.Key) string {
	return filepath.Join(store.root, key.Path())
}

// ReadPartition loads the current content of a partition keyed by message
// id. A missing partition yields an empty map. A malformed partition also
// yields an empty map with a logged warning: ingestion availability is
// preferred over strict corruption detection, since the next write restores
// a complete document.
func (store *Store) ReadPartition(ctx context.Context, key partition.Key) (_ map[int64]Message, err error) {
	defer mon.Task()(&ctx)(&err)

	data, err := ioutil.ReadFile(store.Path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return map[int64]Message{}, nil
		}
		return nil, Error.Wrap(err)
	}

	var list []Message
	if err := json.Unmarshal(data, &list); err != nil {
		store.log.Warn("malformed partition file, treating as empty",
			zap.String("path", store.Path(key)),
			zap.Error(err))
		return map[int64]Message{}, nil
	}

	messages := make(map[int64]Message, len(list))
	for _, msg := range list {
		messages[msg.ID] = msg
	}
	return messages, nil
}

// WritePartition atomically replaces the content of a partition. The full
// mapping is serialized sorted by message id to a temporary sibling file,
// synced, then renamed over the target path, so a crash at any point leaves
// either the prior complete content or the new complete content.
func (store *Store) WritePartition(ctx context.Context, key partition.Key, messages map[int64]Message) (err error) {
	defer mon.Task()(&ctx)(&err)

	data, err := json.MarshalIndent(sorted(messages), "", "  ")
	if err != nil {
		return Error.Wrap(err)
	}

	target := store.Path(key)
	if err := os.MkdirAll(filepath.Dir(target), 0700); err != nil {
		return Error.Wrap(err)
	}

	fh, err := ioutil.TempFile(filepath.Dir(target), filepath.Base(target)+".tmp")
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() {
		if err != nil {
			err = errs.Combine(err, fh.Close())
			err = errs.Combine(err, os.Remove(fh.Name()))
		}
	}()
	if _, err := fh.Write(data); err != nil {
		return Error.Wrap(err)
	}
	if err := fh.Sync(); err != nil {
		return Error.Wrap(err)
	}
	if err := fh.Close(); err != nil {
		return Error.Wrap(err)
	}
	if err := os.Rename(fh.Name(), target); err != nil {
		return Error.Wrap(err)
	}

	mon.IntVal("partition_messages").Observe(int64(len(messages)))
	return nil
}

// ListPartitions returns the paths of all partition files in the lake,
// sorted for reproducible load order. A nonexistent lake root yields an
// empty list, so a load can safely run before any data exists.
func (store *Store) ListPartitions(ctx context.Context) (_ []string, err error) {
	defer mon.Task()(&ctx)(&err)

	if _, err := os.Stat(store.root); os.IsNotExist(err) {
		return nil, nil
	}

	var paths []string
	err = filepath.Walk(store.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, Error.Wrap(err)
	}

	sort.Strings(paths)
	return paths, nil
}
