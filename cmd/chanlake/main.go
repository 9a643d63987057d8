// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// chanlake is the channel data lake pipeline: it scrapes paginated channel
// sources into a partitioned JSON staging lake, enriches downloaded media
// with an external object detector, and loads both into a relational
// warehouse with natural-key upserts.
package main

import (
	"github.com/spf13/cobra"
	"github.com/zeebo/errs"

	"github.com/chanlake/chanlake/pkg/process"
)

// Error is the default chanlake CLI error class
var Error = errs.Class("chanlake error")

var rootCmd = &cobra.Command{
	Use:   "chanlake",
	Short: "Channel data lake pipeline",
	Long: "chanlake scrapes channel messages into a partitioned staging lake,\n" +
		"stages media detections and loads everything into a warehouse.",
}

func main() {
	process.Execute(rootCmd)
}
