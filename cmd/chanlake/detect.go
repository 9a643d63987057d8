// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/chanlake/chanlake/pkg/detect"
	"github.com/chanlake/chanlake/pkg/process"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run the external object detector over downloaded media and stage the results",
	RunE:  cmdDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)

	detectCmd.Flags().String("images-dir", "data/raw/images", "directory with downloaded media assets")
	detectCmd.Flags().String("detections-csv", "data/processed/detections.csv", "output detection staging CSV")
	detectCmd.Flags().String("detector-cmd", "", "external detector command, receives an image path and prints JSON detections")
	detectCmd.Flags().Bool("progress", false, "show a progress bar")

	_ = viper.BindPFlag("data.images_dir", detectCmd.Flags().Lookup("images-dir"))
	_ = viper.BindPFlag("data.detections_csv", detectCmd.Flags().Lookup("detections-csv"))
	_ = viper.BindPFlag("detector.cmd", detectCmd.Flags().Lookup("detector-cmd"))
	_ = viper.BindPFlag("detector.progress", detectCmd.Flags().Lookup("progress"))
}

func cmdDetect(cmd *cobra.Command, args []string) error {
	logger, err := process.InitLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := process.Ctx()
	defer cancel()

	detector, err := detect.NewCommandDetector(viper.GetString("detector.cmd"))
	if err != nil {
		return err
	}

	runner := detect.NewRunner(logger.Named("detect"), detector, detect.Config{
		ImagesDir: viper.GetString("data.images_dir"),
		OutputCSV: viper.GetString("data.detections_csv"),
		Progress:  viper.GetBool("detector.progress"),
	})

	records, errorCount, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	if errorCount > 0 {
		logger.Warn("detection finished with errors",
			zap.Int("records", len(records)),
			zap.Int("errors", errorCount))
	}
	return nil
}
