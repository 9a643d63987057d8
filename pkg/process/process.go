// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package process wires the pipeline binaries: cobra command execution with
// viper-backed flag/env/config binding, zap logger setup and interrupt
// handling.
package process

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

// Error is a process error class
var Error = errs.Class("process error")

func defaultConfigPath(name string) string {
	if name == "" {
		name = filepath.Base(os.Args[0])
	}
	path := filepath.Join(".chanlake", fmt.Sprintf("%s.yaml", name))
	home, err := homedir.Dir()
	if err != nil {
		log.Println(err)
		return path
	}
	return filepath.Join(home, path)
}

// Execute runs a *cobra.Command and sets up process-wide configuration:
// a configuration file, environment binding with the CHANLAKE prefix, and
// logging.
func Execute(cmd *cobra.Command) {
	cfgFile := flag.String("config", defaultConfigPath(cmd.Name()), "config file")

	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)

	cobra.OnInitialize(func() {
		_ = viper.BindPFlags(cmd.Flags())
		viper.SetEnvPrefix("chanlake")
		viper.AutomaticEnv()
		if *cfgFile != "" {
			viper.SetConfigFile(*cfgFile)
			_ = viper.ReadInConfig()
		}
	})

	Must(cmd.Execute())
}

// Ctx returns a context that is canceled on SIGINT or SIGTERM, so an
// interrupted extraction can still flush its accumulated partitions.
func Ctx() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		zap.L().Warn("interrupt received, finishing current work")
		cancel()
	}()

	return ctx, cancel
}

// InitLogger builds the process logger from the logging flags and installs
// it as the zap global.
func InitLogger() (*zap.Logger, error) {
	logger, err := NewLogger()
	if err != nil {
		return nil, Error.Wrap(err)
	}
	zap.ReplaceGlobals(logger)
	zap.RedirectStdLog(logger)
	return logger, nil
}

// Must can be used for default Execute error handling
func Must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
