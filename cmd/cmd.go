// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package cmd contains the command-line interface (CLI) for the module.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/matt-FFFFFF/stagebuild/cmd/build"
	"github.com/matt-FFFFFF/stagebuild/cmd/validate"
	"github.com/matt-FFFFFF/stagebuild/internal/ctxlog"
	"github.com/urfave/cli/v3"
)

const (
	logFormatFlag   = "log-format"
	logFormatPretty = "pretty"
	logFormatJSON   = "json"
)

// ErrUnknownLogFormat is returned for a --log-format other than pretty or json.
var ErrUnknownLogFormat = errors.New("unknown log format")

// RootCmd is the root command for the CLI.
var RootCmd = &cli.Command{
	Commands: []*cli.Command{
		build.BuildCmd,
		validate.ValidateCmd,
	},
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     logFormatFlag,
			Usage:    "Log output format, " + logFormatPretty + " or " + logFormatJSON,
			Value:    logFormatPretty,
			OnlyOnce: true,
		},
	},
	Before:    beforeFunc,
	Writer:    os.Stdout,
	ErrWriter: os.Stderr,
	Name:      "stagebuild",
	Description: `stagebuild compiles a list of C++ translation units in parallel and links
the objects into an executable or packs them into a static archive.

At most max_concurrent compiler processes run at once. The first failed compile stops
the build: every running compiler is killed and no further sources are submitted.`,
	Usage:     "stagebuild build stage0.yaml",
	Copyright: "Copyright (c) matt-FFFFFF 2025. All rights reserved.",
	Authors: []any{
		"Matt White (matt-FFFFFF)",
	},
	EnableShellCompletion: true,
}

func beforeFunc(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	logger, err := loggerFor(cmd.String(logFormatFlag))
	if err != nil {
		return ctx, cli.Exit(err.Error(), build.ExitCode)
	}

	return ctxlog.New(ctx, logger), nil
}

func loggerFor(format string) (*slog.Logger, error) {
	switch format {
	case "", logFormatPretty:
		return ctxlog.DefaultLogger, nil
	case logFormatJSON:
		return ctxlog.JSONLogger, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownLogFormat, format)
	}
}
