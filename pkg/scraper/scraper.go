// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package scraper implements the extraction engine: it drains the paginated
// message source channel by channel, resolves partitions, fetches media and
// merges the streamed batches into the staging lake through atomic writes.
package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"

	"github.com/chanlake/chanlake/pkg/media"
	"github.com/chanlake/chanlake/pkg/partition"
	"github.com/chanlake/chanlake/pkg/source"
	"github.com/chanlake/chanlake/storage/lakestore"
)

// Error is the default scraper error class
var Error = errs.Class("scraper error")

var mon = monkit.Package()

// Config holds the extraction engine settings.
type Config struct {
	Channels     []string
	MaxMessages  int
	ChannelPause time.Duration
	SummaryDir   string
}

// Scraper drives one extraction run. Channels are processed strictly in
// sequence; the caller must ensure no second scraper instance writes the
// same lake concurrently (single writer per partition).
type Scraper struct {
	log     *zap.Logger
	client  source.Client
	lake    *lakestore.Store
	fetcher *media.Fetcher
	config  Config
	now     func() time.Time
}

// New creates an extraction engine.
func New(log *zap.Logger, client source.Client, lake *lakestore.Store, fetcher *media.Fetcher, config Config) *Scraper {
	return &Scraper{
		log:     log,
		client:  client,
		lake:    lake,
		fetcher: fetcher,
		config:  config,
		now:     time.Now,
	}
}

// Run scrapes all configured channels and returns the run summary. Only a
// failure to establish the source session is fatal; per-channel and
// per-message failures are absorbed into the summary counters. An
// interrupted run still merges and flushes everything accumulated so far.
func (scraper *Scraper) Run(ctx context.Context) (_ *RunSummary, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := scraper.client.Connect(ctx); err != nil {
		return nil, Error.New("connecting to source: %v", err)
	}

	summary := &RunSummary{
		TotalChannels: len(scraper.config.Channels),
		StartTime:     scraper.now(),
	}

	for i, channel := range scraper.config.Channels {
		summary.Channels = append(summary.Channels, scraper.scrapeChannel(ctx, channel))

		if ctx.Err() != nil {
			scraper.log.Warn("run interrupted, skipping remaining channels",
				zap.Int("remaining", len(scraper.config.Channels)-i-1))
			break
		}
		if i < len(scraper.config.Channels)-1 {
			scraper.pause(ctx)
		}
	}

	summary.aggregate()
	summary.EndTime = scraper.now()

	if scraper.config.SummaryDir != "" {
		path, err := summary.WriteDocument(scraper.config.SummaryDir)
		if err != nil {
			scraper.log.Error("failed to persist run summary", zap.Error(err))
		} else {
			scraper.log.Info("run summary saved", zap.String("path", path))
		}
	}

	scraper.log.Info("extraction run complete",
		zap.Int("total_messages", summary.TotalMessages),
		zap.Int("total_images", summary.TotalImages),
		zap.Int("total_errors", summary.TotalErrors))
	return summary, nil
}

// scrapeChannel streams one channel into in-memory partitions and merges
// them into the lake. It never returns an error: every failure mode is
// recorded in the returned stats, so one channel cannot abort its siblings.
func (scraper *Scraper) scrapeChannel(ctx context.Context, channel string) (stats ChannelStats) {
	stats = ChannelStats{Channel: channel, StartTime: scraper.now()}
	defer func() { stats.EndTime = scraper.now() }()

	scraper.log.Info("scraping channel", zap.String("channel", channel))

	partitions := map[partition.Key]map[int64]lakestore.Message{}

	it := scraper.client.Messages(ctx, channel, scraper.config.MaxMessages)
streaming:
	for {
		msg, err := it.Next(ctx)
		switch {
		case err == nil:
		case source.Done(err):
			break streaming
		case ctx.Err() != nil:
			// Interrupted mid-stream: fall through to merge what we have.
			scraper.log.Warn("stream interrupted", zap.String("channel", channel))
			break streaming
		default:
			stats.Errors++
			if wait, ok := source.RateLimited(err); ok {
				stats.ErrorMessage = fmt.Sprintf("rate limited: retry after %s", wait)
			} else if source.ErrNotFound.Has(err) {
				stats.ErrorMessage = fmt.Sprintf("channel not found: %s", channel)
			} else {
				stats.ErrorMessage = err.Error()
			}
			scraper.log.Error("channel stream failed",
				zap.String("channel", channel),
				zap.String("reason", stats.ErrorMessage))
			break streaming
		}

		imagePath := ""
		if msg.Media != source.MediaNone {
			path, err := scraper.fetcher.Fetch(ctx, msg)
			if err != nil {
				// A failed download degrades the message to "no image".
				scraper.log.Warn("media fetch failed",
					zap.String("channel", channel),
					zap.Int64("message_id", msg.ID),
					zap.Error(err))
				stats.Errors++
			} else if path != "" {
				imagePath = path
				stats.ImagesDownloaded++
			}
		}

		key := partition.Resolve(msg.Date, channel, scraper.now)
		if partitions[key] == nil {
			partitions[key] = map[int64]lakestore.Message{}
		}
		partitions[key][msg.ID] = staged(msg, imagePath)
	}

	// Merge phase: runs even when the stream ended early, so accumulated
	// progress is never discarded.
	for key, batch := range partitions {
		existing, err := scraper.lake.ReadPartition(ctx, key)
		if err != nil {
			stats.Errors++
			scraper.log.Error("failed to read partition",
				zap.Stringer("partition", key), zap.Error(err))
			continue
		}
		merged := lakestore.Merge(existing, batch)
		if err := scraper.lake.WritePartition(ctx, key, merged); err != nil {
			stats.Errors++
			scraper.log.Error("failed to write partition",
				zap.Stringer("partition", key), zap.Error(err))
			continue
		}
		stats.NewMessages += len(batch)
		stats.TotalMessages += len(merged)
	}

	mon.IntVal("channel_messages").Observe(int64(stats.TotalMessages))
	scraper.log.Info("channel complete",
		zap.String("channel", channel),
		zap.Int("total_messages", stats.TotalMessages),
		zap.Int("new_messages", stats.NewMessages),
		zap.Int("images_downloaded", stats.ImagesDownloaded),
		zap.Int("errors", stats.Errors))
	return stats
}

func (scraper *Scraper) pause(ctx context.Context) {
	if scraper.config.ChannelPause <= 0 {
		return
	}
	timer := time.NewTimer(scraper.config.ChannelPause)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// staged adapts a source message into its staging lake representation.
// Empty text stays an empty string and absent counters stay null, matching
// the staging file contract.
func staged(msg source.Message, imagePath string) lakestore.Message {
	record := lakestore.Message{
		ID:       msg.ID,
		Channel:  msg.Channel,
		Date:     msg.Date,
		Text:     msg.Text,
		Views:    msg.Views,
		Forwards: msg.Forwards,
		HasMedia: msg.Media != source.MediaNone,
		Raw:      msg.Raw,
	}
	if imagePath != "" {
		record.ImagePath = &imagePath
	}
	return record
}
