// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/chanlake/chanlake/pkg/media"
	"github.com/chanlake/chanlake/pkg/process"
	"github.com/chanlake/chanlake/pkg/runlog"
	"github.com/chanlake/chanlake/pkg/scraper"
	"github.com/chanlake/chanlake/pkg/source"
	"github.com/chanlake/chanlake/pkg/source/httpsource"
	"github.com/chanlake/chanlake/pkg/source/staticsource"
	"github.com/chanlake/chanlake/storage/lakestore"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape all configured channels into the staging lake",
	RunE:  cmdScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().String("channels", "", "comma separated channel names to scrape")
	scrapeCmd.Flags().Int("max-messages", 1000, "maximum messages to fetch per channel")
	scrapeCmd.Flags().Duration("channel-pause", 2*time.Second, "pause between channels to respect source rate limits")
	scrapeCmd.Flags().String("messages-dir", "data/raw/messages", "staging lake root for partition files")
	scrapeCmd.Flags().String("images-dir", "data/raw/images", "directory for downloaded media assets")
	scrapeCmd.Flags().String("summary-dir", "logs", "directory for run summary documents")
	scrapeCmd.Flags().String("runlog", "data/runlog.db", "path of the run ledger database")
	scrapeCmd.Flags().String("source-url", "", "base URL of the message source API")
	scrapeCmd.Flags().String("source-token", "", "bearer token for the message source API")
	scrapeCmd.Flags().Bool("dry-run", false, "use a deterministic offline sample source")

	_ = viper.BindPFlag("scrape.channels", scrapeCmd.Flags().Lookup("channels"))
	_ = viper.BindPFlag("scrape.max_messages", scrapeCmd.Flags().Lookup("max-messages"))
	_ = viper.BindPFlag("scrape.channel_pause", scrapeCmd.Flags().Lookup("channel-pause"))
	_ = viper.BindPFlag("data.messages_dir", scrapeCmd.Flags().Lookup("messages-dir"))
	_ = viper.BindPFlag("data.images_dir", scrapeCmd.Flags().Lookup("images-dir"))
	_ = viper.BindPFlag("data.summary_dir", scrapeCmd.Flags().Lookup("summary-dir"))
	_ = viper.BindPFlag("data.runlog", scrapeCmd.Flags().Lookup("runlog"))
	_ = viper.BindPFlag("source.base_url", scrapeCmd.Flags().Lookup("source-url"))
	_ = viper.BindPFlag("source.token", scrapeCmd.Flags().Lookup("source-token"))
	_ = viper.BindPFlag("scrape.dry_run", scrapeCmd.Flags().Lookup("dry-run"))
}

func cmdScrape(cmd *cobra.Command, args []string) error {
	logger, err := process.InitLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := process.Ctx()
	defer cancel()

	channels := splitChannels(viper.GetString("scrape.channels"))
	if len(channels) == 0 {
		return Error.New("no channels configured")
	}

	var client source.Client
	if viper.GetBool("scrape.dry_run") {
		logger.Info("dry run: using offline sample source")
		client = staticsource.Sample(channels, time.Now())
	} else {
		client = httpsource.New(httpsource.Config{
			BaseURL: viper.GetString("source.base_url"),
			Token:   viper.GetString("source.token"),
		})
	}
	defer func() { _ = client.Close() }()

	lake := lakestore.New(logger.Named("lake"), viper.GetString("data.messages_dir"))
	fetcher := media.NewFetcher(logger.Named("media"), viper.GetString("data.images_dir"), client)

	engine := scraper.New(logger.Named("scraper"), client, lake, fetcher, scraper.Config{
		Channels:     channels,
		MaxMessages:  viper.GetInt("scrape.max_messages"),
		ChannelPause: viper.GetDuration("scrape.channel_pause"),
		SummaryDir:   viper.GetString("data.summary_dir"),
	})

	summary, err := engine.Run(ctx)
	if err != nil {
		// fatal connection failure, surfaced as a hard error
		return err
	}

	if path := viper.GetString("data.runlog"); path != "" {
		ledger, err := runlog.New(logger.Named("runlog"), path)
		if err != nil {
			logger.Error("cannot open run ledger", zap.Error(err))
		} else {
			if err := ledger.Append(summary); err != nil {
				logger.Error("cannot record run", zap.Error(err))
			}
			_ = ledger.Close()
		}
	}

	// Channel and message level failures are reported, not fatal.
	if summary.TotalErrors > 0 {
		logger.Warn("run finished with errors", zap.Int("total_errors", summary.TotalErrors))
	}
	return nil
}

func splitChannels(value string) []string {
	var channels []string
	for _, channel := range strings.Split(value, ",") {
		if channel = strings.TrimSpace(channel); channel != "" {
			channels = append(channels, channel)
		}
	}
	return channels
}
