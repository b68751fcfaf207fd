// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package validate

import (
	"bytes"
	"context"
	"testing"

	"github.com/matt-FFFFFF/stagebuild/internal/manifest"
	"github.com/prashantv/gostub"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCmd_PrintsResolvedManifest(t *testing.T) {
	t.Setenv("CXX", "")

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/stage0.hcl", []byte(`
sources    = ["a.cpp"]
binary_dir = "build"
max_concurrent = 3

output "archive" {
  path = "build/libstage0.a"
}
`), 0o644))

	stubs := gostub.Stub(&manifest.FsFactory, func() afero.Fs { return fs })
	defer stubs.Reset()

	var out bytes.Buffer

	// Writer starts nil, which gostub cannot restore.
	orig := ValidateCmd.Writer
	ValidateCmd.Writer = &out

	t.Cleanup(func() { ValidateCmd.Writer = orig })

	require.NoError(t, ValidateCmd.Run(context.Background(), []string{"validate", "/stage0.hcl"}))

	got, err := manifest.DecodeYAML(out.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.cpp"}, got.Sources)
	assert.Equal(t, "c++", got.Compiler)
	assert.Equal(t, 3, got.MaxConcurrent)
	require.NotNil(t, got.Output)
	assert.Equal(t, "ar", got.Output.Tool)
}
