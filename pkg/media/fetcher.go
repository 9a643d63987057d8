// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package media downloads message attachments into a content-addressed
// directory layout: <root>/<channel>/<message_id>.jpg.
package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"

	"github.com/chanlake/chanlake/pkg/partition"
	"github.com/chanlake/chanlake/pkg/source"
)

// Error is the default media error class
var Error = errs.Class("media error")

var mon = monkit.Package()

// Fetcher downloads media for messages that carry a recognized image
// attachment. Fetches are idempotent by construction: a message whose
// target path already exists is skipped without touching the network.
type Fetcher struct {
	log    *zap.Logger
	root   string
	client source.Client
}

// NewFetcher creates a fetcher storing assets under root.
func NewFetcher(log *zap.Logger, root string, client source.Client) *Fetcher {
	return &Fetcher{log: log, root: root, client: client}
}

// Path returns the asset path for a message, relative to the process
// working directory the same way it is recorded in the staging lake.
func (fetcher *Fetcher) Path(msg source.Message) string {
	return filepath.Join(fetcher.root,
		partition.SanitizeChannel(msg.Channel),
		fmt.Sprintf("%d.jpg", msg.ID))
}

// Fetch downloads the image attached to msg and returns its path. It
// returns an empty path for messages without a downloadable image kind.
func (fetcher *Fetcher) Fetch(ctx context.Context, msg source.Message) (_ string, err error) {
	defer mon.Task()(&ctx)(&err)

	if !downloadable(msg) {
		return "", nil
	}

	path := fetcher.Path(msg)
	if _, err := os.Stat(path); err == nil {
		fetcher.log.Debug("media already exists", zap.String("path", path))
		return filepath.ToSlash(path), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", Error.Wrap(err)
	}
	if err := fetcher.client.Download(ctx, msg, path); err != nil {
		return "", Error.Wrap(err)
	}

	fetcher.log.Info("downloaded media", zap.String("path", path))
	return filepath.ToSlash(path), nil
}

// downloadable reports whether the message media is a kind we fetch:
// photos, or documents with an image mime type.
func downloadable(msg source.Message) bool {
	switch msg.Media {
	case source.MediaPhoto:
		return true
	case source.MediaDocument:
		return strings.HasPrefix(msg.MimeType, "image/")
	}
	return false
}
