// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chanlake/chanlake/pkg/process"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Write the default configuration file",
	RunE:  cmdSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func cmdSetup(cmd *cobra.Command, args []string) error {
	outfile := flag.Lookup("config").Value.String()

	if _, err := os.Stat(outfile); err == nil {
		return Error.New("config already exists: %s", outfile)
	}

	if err := process.SaveConfig(outfile, nil); err != nil {
		return err
	}
	fmt.Println("wrote configuration to", outfile)
	return nil
}
