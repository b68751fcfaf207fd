// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package validate is the command that checks a manifest without building it.
package validate

import (
	"context"
	"errors"
	"fmt"

	"github.com/matt-FFFFFF/stagebuild/internal/manifest"
	"github.com/urfave/cli/v3"
)

const manifestArg = "manifest"

// ErrWriteManifest is returned when the resolved manifest cannot be written.
var ErrWriteManifest = errors.New("failed to write manifest")

// ValidateCmd loads a manifest, applies defaults and prints the result as YAML.
var ValidateCmd = &cli.Command{
	Name:  "validate",
	Usage: "Check a manifest and print it with defaults applied",
	Description: `Load the manifest, fill in defaults (compiler, max_concurrent, output tool)
and report every validation problem at once.
On success the resolved manifest is written to stdout as YAML.`,
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name:      manifestArg,
			UsageText: "MANIFEST",
			Config: cli.StringConfig{
				TrimSpace: true,
			},
		},
	},
	Action: actionFunc,
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg(manifestArg)
	if path == "" {
		return cli.Exit("Please provide a manifest file to validate", 1)
	}

	m, err := manifest.Load(ctx, path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("manifest %s: %s", path, err.Error()), 1)
	}

	out, err := m.YAML()
	if err != nil {
		return errors.Join(ErrWriteManifest, err)
	}

	if _, err := cmd.Writer.Write(out); err != nil {
		return errors.Join(ErrWriteManifest, err)
	}

	return nil
}
