// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package scraper

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"
)

// ChannelStats reports the outcome of scraping a single channel.
type ChannelStats struct {
	Channel          string    `json:"channel"`
	TotalMessages    int       `json:"total_messages"`
	NewMessages      int       `json:"new_messages"`
	ImagesDownloaded int       `json:"images_downloaded"`
	Errors           int       `json:"errors"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
}

// RunSummary aggregates the per-channel stats of one extraction run.
type RunSummary struct {
	TotalChannels int            `json:"total_channels"`
	Channels      []ChannelStats `json:"channels"`
	TotalMessages int            `json:"total_messages"`
	TotalImages   int            `json:"total_images"`
	TotalErrors   int            `json:"total_errors"`
	StartTime     time.Time      `json:"start_time"`
	EndTime       time.Time      `json:"end_time"`
}

// aggregate fills the run-level totals from the per-channel stats.
func (summary *RunSummary) aggregate() {
	summary.TotalMessages = 0
	summary.TotalImages = 0
	summary.TotalErrors = 0
	for _, stats := range summary.Channels {
		summary.TotalMessages += stats.TotalMessages
		summary.TotalImages += stats.ImagesDownloaded
		summary.TotalErrors += stats.Errors
	}
}

// WriteDocument persists the summary as a timestamped JSON document under
// dir and returns its path.
func (summary *RunSummary) WriteDocument(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", Error.Wrap(err)
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", Error.Wrap(err)
	}
	name := "scrape_summary_" + summary.StartTime.Format("20060102_150405") + ".json"
	path := filepath.Join(dir, name)
	if err := ioutil.WriteFile(path, data, 0600); err != nil {
		return "", Error.Wrap(err)
	}
	return path, nil
}
