// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chanlake/chanlake/pkg/process"
	"github.com/chanlake/chanlake/pkg/runlog"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past extraction runs from the run ledger",
	RunE:  cmdHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().String("runlog", "data/runlog.db", "path of the run ledger database")
	_ = viper.BindPFlag("data.runlog", historyCmd.Flags().Lookup("runlog"))
}

func cmdHistory(cmd *cobra.Command, args []string) error {
	logger, err := process.InitLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ledger, err := runlog.New(logger.Named("runlog"), viper.GetString("data.runlog"))
	if err != nil {
		return err
	}
	defer func() { _ = ledger.Close() }()

	summaries, err := ledger.List()
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("no recorded runs")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "START\tCHANNELS\tMESSAGES\tIMAGES\tERRORS")
	for _, summary := range summaries {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n",
			summary.StartTime.Format("2006-01-02 15:04:05"),
			summary.TotalChannels,
			summary.TotalMessages,
			summary.TotalImages,
			summary.TotalErrors)
	}
	return w.Flush()
}
