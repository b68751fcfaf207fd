// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package build is the command that compiles and links a manifest.
package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/matt-FFFFFF/stagebuild/internal/build"
	"github.com/matt-FFFFFF/stagebuild/internal/ctxlog"
	"github.com/matt-FFFFFF/stagebuild/internal/manifest"
	"github.com/matt-FFFFFF/stagebuild/internal/process"
	"github.com/matt-FFFFFF/stagebuild/internal/progress"
	"github.com/matt-FFFFFF/stagebuild/internal/tui"
	"github.com/urfave/cli/v3"
)

const (
	manifestArg     = "manifest"
	jobsFlag        = "jobs"
	binaryDirFlag   = "binary-dir"
	compilerFlag    = "compiler"
	tuiFlag         = "tui"
	eventBufferSize = 256
)

// ErrCreateOutputDir is returned when the directory for the final output cannot be created.
var ErrCreateOutputDir = errors.New("failed to create output directory")

// PlatformFactory returns the platform compile and link jobs run on.
var PlatformFactory = func() process.Platform {
	return process.NewOS()
}

// BuildCmd is the command that compiles the sources in a manifest and produces its output.
var BuildCmd = NewBuildCmd()

// NewBuildCmd returns a fresh build command with its own flag state.
func NewBuildCmd() *cli.Command {
	return &cli.Command{
		Name:  "build",
		Usage: "Compile and link the sources listed in a manifest",
		Description: `Compile every source in the manifest with at most max_concurrent compilers
running at once, then link the objects into an executable or pack them into an archive
when the manifest has an output block.

Progress lines and failure messages are written to stderr.
Any failure exits with status 1.`,
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:      manifestArg,
				UsageText: "MANIFEST",
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
		},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    jobsFlag,
				Aliases: []string{"j"},
				Usage: "Set the maximum number of concurrent compilers. " +
					"Overrides max_concurrent from the manifest.",
				Value: 0,
			},
			&cli.StringFlag{
				Name:      binaryDirFlag,
				Aliases:   []string{"B"},
				Usage:     "Override the directory sources are resolved against and objects are written to",
				TakesFile: true,
				OnlyOnce:  true,
			},
			&cli.StringFlag{
				Name:     compilerFlag,
				Usage:    "Override the compiler",
				OnlyOnce: true,
			},
			&cli.BoolFlag{
				Name:        tuiFlag,
				Aliases:     []string{"t", "interactive"},
				Usage:       "Show an interactive progress view",
				Value:       false,
				DefaultText: "false",
				OnlyOnce:    true,
			},
		},
		Action: actionFunc,
	}
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	logger := ctxlog.Logger(ctx).With("command", cmd.Name)

	path := cmd.StringArg(manifestArg)
	if path == "" {
		return cli.Exit("Please provide a manifest file to build", build.ExitCode)
	}

	m, err := manifest.Load(ctx, path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to load manifest %s: %s", path, err.Error()), build.ExitCode)
	}

	if err := applyOverrides(cmd, m); err != nil {
		return cli.Exit(err.Error(), build.ExitCode)
	}

	logger.Debug("building", "manifest", path, "sources", len(m.Sources), "maxConcurrent", m.MaxConcurrent)

	if cmd.Bool(tuiFlag) {
		err = runWithTUI(ctx, m, cmd.ErrWriter)
	} else {
		err = runWithLog(ctx, m, cmd.ErrWriter)
	}

	if err != nil {
		// The builder has already written its diagnostic line.
		logger.Debug("build failed", "error", err)
		return cli.Exit("", build.ExitCode)
	}

	return nil
}

func applyOverrides(cmd *cli.Command, m *manifest.Manifest) error {
	if j := cmd.Int(jobsFlag); j != 0 {
		m.MaxConcurrent = j
	}

	if dir := cmd.String(binaryDirFlag); dir != "" {
		m.BinaryDir = dir
	}

	if c := cmd.String(compilerFlag); c != "" {
		m.SetCompiler(c)
	}

	return m.Validate() //nolint:wrapcheck
}

func runWithLog(ctx context.Context, m *manifest.Manifest, diag io.Writer, opts ...build.Option) error {
	reporter := progress.NewChannelReporter(ctx, eventBufferSize)
	reporter.Listen(progress.NewLogListener(ctx))

	defer reporter.Close()

	opts = append([]build.Option{
		build.WithDiagnostics(diag),
		build.WithReporter(reporter),
		build.WithPlatform(PlatformFactory()),
	}, opts...)

	return Run(ctx, m, opts...)
}

// runWithTUI holds back the builder's diagnostic lines until the view has exited.
func runWithTUI(ctx context.Context, m *manifest.Manifest, diag io.Writer) error {
	var buf bytes.Buffer

	runner := tui.NewRunner()
	err := runner.Run(ctx, func(ctx context.Context, reporter progress.Reporter) error {
		return Run(ctx, m, build.WithDiagnostics(&buf), build.WithReporter(reporter), build.WithPlatform(PlatformFactory()))
	})

	diag.Write(buf.Bytes()) //nolint:errcheck

	return err //nolint:wrapcheck
}

// Run compiles the manifest's sources and, if it has an output, links or archives them.
// Every job still running when Run returns is killed and reaped.
func Run(ctx context.Context, m *manifest.Manifest, opts ...build.Option) (err error) {
	b, err := build.ForBuilding(m.Sources, m.MaxConcurrent, opts...)
	if err != nil {
		return err //nolint:wrapcheck
	}

	defer func() {
		if cerr := b.Close(ctx); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	fs := manifest.FsFactory()

	if err := b.BuildAll(ctx, m.BinaryDir, m.CompilerInvocation(fs)); err != nil {
		return err //nolint:wrapcheck
	}

	out := m.Output
	if out == nil {
		return nil
	}

	if err := fs.MkdirAll(filepath.Dir(out.Path), 0o755); err != nil {
		return errors.Join(ErrCreateOutputDir, err)
	}

	switch out.Kind {
	case manifest.OutputArchive:
		return b.LinkIntoArchive(ctx, out.Tool, out.Path) //nolint:wrapcheck
	default:
		return b.LinkIntoExecutable(ctx, out.Tool, out.Path, out.ExtraArgs) //nolint:wrapcheck
	}
}
