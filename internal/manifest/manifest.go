// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package manifest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/matt-FFFFFF/stagebuild/internal/ctxlog"
	"github.com/spf13/afero"
	"github.com/zclconf/go-cty/cty"
)

const (
	// OutputExecutable links the objects into a program.
	OutputExecutable = "executable"
	// OutputArchive packs the objects into a static library.
	OutputArchive = "archive"

	defaultCompiler = "c++"
	defaultArchiver = "ar"
)

var (
	// ErrReadManifest is returned when the manifest file cannot be read.
	ErrReadManifest = errors.New("failed to read manifest")
	// ErrInvalidYAML is returned when a YAML manifest cannot be decoded.
	ErrInvalidYAML = errors.New("invalid YAML")
	// ErrInvalidHCL is returned when an HCL manifest cannot be decoded.
	ErrInvalidHCL = errors.New("invalid HCL")
	// ErrUnsupportedFormat is returned for a manifest with an unknown file extension.
	ErrUnsupportedFormat = errors.New("unsupported manifest format, want .yaml, .yml or .hcl")
	// ErrInvalidManifest wraps every validation problem found in a manifest.
	ErrInvalidManifest = errors.New("invalid manifest")
	// ErrCreateDir is returned when an output directory cannot be created.
	ErrCreateDir = errors.New("failed to create directory")
)

// Manifest describes one build.
type Manifest struct {
	Name          string   `yaml:"name,omitempty" hcl:"name,optional"`
	Sources       []string `yaml:"sources" hcl:"sources"`
	BinaryDir     string   `yaml:"binary_dir" hcl:"binary_dir"`
	Compiler      string   `yaml:"compiler,omitempty" hcl:"compiler,optional"`
	CompileFlags  []string `yaml:"compile_flags,omitempty" hcl:"compile_flags,optional"`
	MaxConcurrent int      `yaml:"max_concurrent,omitempty" hcl:"max_concurrent,optional"`
	Output        *Output  `yaml:"output,omitempty" hcl:"output,block"`
}

// Output describes the final link or archive step.
type Output struct {
	Kind      string   `yaml:"kind" hcl:"kind,label"`
	Path      string   `yaml:"path" hcl:"path"`
	Tool      string   `yaml:"tool,omitempty" hcl:"tool,optional"`
	ExtraArgs []string `yaml:"extra_args,omitempty" hcl:"extra_args,optional"`
}

// Load reads, decodes, defaults and validates the manifest at path.
func Load(ctx context.Context, path string) (*Manifest, error) {
	data, err := afero.ReadFile(FsFactory(), path)
	if err != nil {
		return nil, errors.Join(ErrReadManifest, err)
	}

	var m *Manifest

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		m, err = DecodeYAML(data)
	case ".hcl":
		m, err = DecodeHCL(data, path, os.Environ())
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	if err != nil {
		return nil, err
	}

	m.ApplyDefaults()

	ctxlog.Debug(ctx, "manifest loaded", "path", path, "sources", len(m.Sources), "binaryDir", m.BinaryDir)

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return m, nil
}

// DecodeYAML decodes a YAML manifest without applying defaults.
func DecodeYAML(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err) //nolint:errorlint
	}

	return &m, nil
}

// DecodeHCL decodes an HCL manifest without applying defaults.
// environ is exposed to expressions as the env object.
func DecodeHCL(data []byte, filename string, environ []string) (*Manifest, error) {
	file, diags := hclsyntax.ParseConfig(data, filename, hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidHCL, diags.Error())
	}

	var m Manifest
	if diags := gohcl.DecodeBody(file.Body, evalContext(environ), &m); diags.HasErrors() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidHCL, diags.Error())
	}

	return &m, nil
}

func evalContext(environ []string) *hcl.EvalContext {
	env := make(map[string]cty.Value, len(environ))

	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" || !hclsyntax.ValidIdentifier(k) {
			continue
		}

		env[k] = cty.StringVal(v)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(env),
		},
	}
}

// ApplyDefaults fills in the compiler, concurrency and output tool when unset.
func (m *Manifest) ApplyDefaults() {
	if m.Compiler == "" {
		m.Compiler = os.Getenv("CXX")
	}

	if m.Compiler == "" {
		m.Compiler = defaultCompiler
	}

	if m.MaxConcurrent == 0 {
		m.MaxConcurrent = runtime.NumCPU()
	}

	if m.Output == nil || m.Output.Tool != "" {
		return
	}

	switch m.Output.Kind {
	case OutputExecutable:
		m.Output.Tool = m.Compiler
	case OutputArchive:
		m.Output.Tool = defaultArchiver
	}
}

// SetCompiler replaces the compiler. An executable output still linking with the
// previous compiler follows it.
func (m *Manifest) SetCompiler(compiler string) {
	if m.Output != nil && m.Output.Kind == OutputExecutable && m.Output.Tool == m.Compiler {
		m.Output.Tool = compiler
	}

	m.Compiler = compiler
}

// Validate reports every problem with the manifest at once.
func (m *Manifest) Validate() error {
	var merr *multierror.Error

	if len(m.Sources) == 0 {
		merr = multierror.Append(merr, errors.New("sources: at least one source is required"))
	}

	for i, s := range m.Sources {
		if strings.TrimSpace(s) == "" {
			merr = multierror.Append(merr, fmt.Errorf("sources[%d]: empty path", i))
		}
	}

	if dup := duplicates(m.Sources); len(dup) > 0 {
		merr = multierror.Append(merr, fmt.Errorf("sources: duplicate entries %v would share an object file", dup))
	}

	if m.BinaryDir == "" {
		merr = multierror.Append(merr, errors.New("binary_dir: required"))
	}

	if m.MaxConcurrent < 1 {
		merr = multierror.Append(merr, fmt.Errorf("max_concurrent: must be at least 1, got %d", m.MaxConcurrent))
	}

	if o := m.Output; o != nil {
		switch o.Kind {
		case OutputExecutable:
		case OutputArchive:
			if len(o.ExtraArgs) > 0 {
				merr = multierror.Append(merr, errors.New("output: extra_args is only supported for executables"))
			}
		default:
			merr = multierror.Append(merr, fmt.Errorf("output: kind must be %q or %q, got %q", OutputExecutable, OutputArchive, o.Kind))
		}

		if o.Path == "" {
			merr = multierror.Append(merr, errors.New("output: path is required"))
		}
	}

	if err := merr.ErrorOrNil(); err != nil {
		return errors.Join(ErrInvalidManifest, err)
	}

	return nil
}

// CompilerInvocation returns the command line factory for compile jobs:
// compiler <compile_flags...> -c source -o object.
// The object's directory is created first, as compilers do not create it.
func (m *Manifest) CompilerInvocation(fs afero.Fs) func(source, object string) ([]string, error) {
	return func(source, object string) ([]string, error) {
		if err := fs.MkdirAll(filepath.Dir(object), 0o755); err != nil {
			return nil, errors.Join(ErrCreateDir, err)
		}

		return slices.Concat([]string{m.Compiler}, m.CompileFlags, []string{"-c", source, "-o", object}), nil
	}
}

// YAML renders the manifest as YAML.
func (m *Manifest) YAML() ([]byte, error) {
	return yaml.Marshal(m) //nolint:wrapcheck
}

func duplicates(s []string) []string {
	seen := make(map[string]int, len(s))

	var dup []string

	for _, v := range s {
		clean := filepath.Clean(strings.TrimSuffix(v, filepath.Ext(v)))
		seen[clean]++

		if seen[clean] == 2 {
			dup = append(dup, v)
		}
	}

	return dup
}
