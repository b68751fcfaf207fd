// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main is the entry point for the stagebuild command-line application.
package main

import (
	"context"
	"os"

	"github.com/matt-FFFFFF/stagebuild/cmd"
	"github.com/matt-FFFFFF/stagebuild/internal/ctxlog"
	"github.com/matt-FFFFFF/stagebuild/internal/signalbroker"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = ctxlog.New(ctx, ctxlog.DefaultLogger)

	sigCh := signalbroker.New(ctx)

	go signalbroker.Watch(ctx, sigCh, cancel)

	cmd.RootCmd.Version = Version + " (" + Commit + ")"

	err := cmd.RootCmd.Run(ctx, os.Args)

	signalbroker.Stop(sigCh)
	cancel()

	if err != nil {
		ctxlog.Logger(ctx).Debug("command failed", "error", err)
		os.Exit(1)
	}
}
