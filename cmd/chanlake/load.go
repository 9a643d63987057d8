// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/chanlake/chanlake/pkg/process"
	"github.com/chanlake/chanlake/pkg/warehouse"
	"github.com/chanlake/chanlake/storage/lakestore"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load staged partition files into the warehouse",
	RunE:  cmdLoad,
}

var loadDetectionsCmd = &cobra.Command{
	Use:   "load-detections",
	Short: "Load the detection staging CSV into the warehouse",
	RunE:  cmdLoadDetections,
}

func init() {
	rootCmd.AddCommand(loadCmd, loadDetectionsCmd)

	for _, cmd := range []*cobra.Command{loadCmd, loadDetectionsCmd} {
		cmd.Flags().String("db", "data/warehouse.db", "path of the warehouse database")
		cmd.Flags().Bool("progress", false, "show a progress bar")
	}
	loadCmd.Flags().String("messages-dir", "data/raw/messages", "staging lake root for partition files")
	loadDetectionsCmd.Flags().String("detections-csv", "data/processed/detections.csv", "detection staging CSV")

	_ = viper.BindPFlag("warehouse.db", loadCmd.Flags().Lookup("db"))
	_ = viper.BindPFlag("warehouse.progress", loadCmd.Flags().Lookup("progress"))
	_ = viper.BindPFlag("data.messages_dir", loadCmd.Flags().Lookup("messages-dir"))
	_ = viper.BindPFlag("data.detections_csv", loadDetectionsCmd.Flags().Lookup("detections-csv"))
}

func cmdLoad(cmd *cobra.Command, args []string) error {
	return withWarehouse(func(ctx context.Context, logger *zap.Logger, db *warehouse.DB) error {
		lake := lakestore.New(logger.Named("lake"), viper.GetString("data.messages_dir"))
		stats, err := db.LoadMessages(ctx, lake)
		if err != nil {
			return err
		}

		tableStats, err := db.Stats(ctx)
		if err != nil {
			return err
		}
		logger.Info("warehouse statistics",
			zap.Int64("total_messages", tableStats.TotalMessages),
			zap.Int64("unique_channels", tableStats.UniqueChannels),
			zap.String("earliest", tableStats.EarliestDate),
			zap.String("latest", tableStats.LatestDate))

		if stats.Errors > 0 {
			logger.Warn("load finished with errors", zap.Int("errors", stats.Errors))
		}
		return nil
	})
}

func cmdLoadDetections(cmd *cobra.Command, args []string) error {
	return withWarehouse(func(ctx context.Context, logger *zap.Logger, db *warehouse.DB) error {
		stats, err := db.LoadDetections(ctx, viper.GetString("data.detections_csv"))
		if err != nil {
			return err
		}
		if stats.Errors > 0 {
			logger.Warn("load finished with errors", zap.Int("errors", stats.Errors))
		}
		return nil
	})
}

// withWarehouse wires the logger, interrupt context and warehouse database
// around a load operation. A database that cannot be opened is a hard
// failure with a non-zero exit.
func withWarehouse(run func(ctx context.Context, logger *zap.Logger, db *warehouse.DB) error) error {
	logger, err := process.InitLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := process.Ctx()
	defer cancel()

	db, err := warehouse.Open(ctx, logger.Named("warehouse"), warehouse.Config{
		Path:     viper.GetString("warehouse.db"),
		Progress: viper.GetBool("warehouse.progress"),
	})
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return run(ctx, logger, db)
}
