// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/matt-FFFFFF/stagebuild/internal/ctxlog"
	"github.com/matt-FFFFFF/stagebuild/internal/objpath"
	"github.com/matt-FFFFFF/stagebuild/internal/pool"
	"github.com/matt-FFFFFF/stagebuild/internal/process"
	"github.com/matt-FFFFFF/stagebuild/internal/progress"
)

const (
	// ExitCode is the process exit code a driver should use for any build failure.
	ExitCode = 1

	objectExtension = "o"
	archiveFlags    = "cr"
	esc             = 0x1b

	compilationFailedMsg = "Error: Compilation failed"
	linkingFailedMsg     = "Error: Linking failed"
)

var (
	// ErrBuildFailed is returned when at least one compile job exited non-zero.
	ErrBuildFailed = errors.New("compilation failed")
	// ErrLinkFailed is returned when the link or archive job exited non-zero.
	ErrLinkFailed = errors.New("linking failed")
	// ErrInvocation is returned when the compiler invocation callback fails.
	ErrInvocation = errors.New("could not build compiler command line")
)

// CompilerInvocation returns the command line that compiles source into object.
// Both paths are already resolved against the binary directory.
type CompilerInvocation func(source, object string) ([]string, error)

// Builder owns a pool and the files flowing through one compile and link.
type Builder struct {
	linkedFiles    []string
	filesToCompile []string
	pool           *pool.Pool
	diag           io.Writer
	reporter       progress.Reporter
	poolOpts       []pool.Option
}

// Option configures a Builder.
type Option func(*Builder)

// WithDiagnostics sets the writer for progress and failure lines. The default is stderr.
func WithDiagnostics(w io.Writer) Option {
	return func(b *Builder) {
		b.diag = w
	}
}

// WithReporter sends phase and job events to r.
func WithReporter(r progress.Reporter) Option {
	return func(b *Builder) {
		b.reporter = r
		b.poolOpts = append(b.poolOpts, pool.WithReporter(r))
	}
}

// WithPlatform runs jobs on p instead of the host operating system.
func WithPlatform(p process.Platform) Option {
	return func(b *Builder) {
		b.poolOpts = append(b.poolOpts, pool.WithPlatform(p))
	}
}

// ForBuilding creates a Builder that will compile files with at most maxConcurrent jobs in flight.
func ForBuilding(files []string, maxConcurrent int, opts ...Option) (*Builder, error) {
	b := &Builder{
		filesToCompile: slices.Clone(files),
		diag:           os.Stderr,
		reporter:       progress.NewNullReporter(),
	}

	for _, opt := range opts {
		opt(b)
	}

	p, err := pool.New(maxConcurrent, b.poolOpts...)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	b.pool = p

	return b, nil
}

// FilesToCompile returns the sources still to be compiled.
func (b *Builder) FilesToCompile() []string {
	return slices.Clone(b.filesToCompile)
}

// LinkedFiles returns the object files that the link step will consume, in source order.
// Objects are recorded when their compile is submitted, so the list is only meaningful
// after BuildAll succeeded; after a failure it is empty.
func (b *Builder) LinkedFiles() []string {
	return slices.Clone(b.linkedFiles)
}

// Pool returns the underlying pool.
func (b *Builder) Pool() *pool.Pool {
	return b.pool
}

// BuildAll compiles every pending source. Object files go to binaryDir with the source's
// relative path and an ".o" extension; sources are also resolved against binaryDir.
//
// Before each submission the pool is given a free slot and the reaped jobs are checked;
// a non-zero exit kills every running job and returns ErrBuildFailed. Jobs that fail
// after the last submission are caught once everything has been waited for.
func (b *Builder) BuildAll(ctx context.Context, binaryDir string, compilerInvocation CompilerInvocation) (err error) {
	logger := ctxlog.Logger(ctx).With("phase", "compile", "binaryDir", binaryDir, "maxConcurrent", b.pool.Capacity())

	dir, err := objpath.FromString(binaryDir)
	if err != nil {
		return err //nolint:wrapcheck
	}

	total := len(b.filesToCompile)
	ids := make(map[pool.JobID]struct{}, total)

	b.reportPhase("compile", total)

	defer func() {
		if err != nil {
			b.linkedFiles = nil
		}
	}()

	for _, fileName := range b.filesToCompile {
		if err := b.pool.WaitForSlot(ctx); err != nil {
			return b.abort(ctx, err)
		}

		if id, res, failed := b.pool.Failed(); failed {
			logger.Debug("compile failed, aborting batch", "job", id, "label", b.pool.Label(id), "exitCode", res.ExitCode)
			b.diagnose(compilationFailedMsg)

			return b.abort(ctx, ErrBuildFailed)
		}

		src, err := objpath.FromString(fileName)
		if err != nil {
			return b.abort(ctx, errors.Join(ErrInvocation, err))
		}

		builtObject := dir.Join(src.ReplaceExtension(objectExtension).String()).String()
		b.linkedFiles = append(b.linkedFiles, builtObject)

		args, err := compilerInvocation(dir.Join(fileName).String(), builtObject)
		if err != nil {
			return b.abort(ctx, errors.Join(ErrInvocation, err))
		}

		id, err := b.pool.Run(ctx, args, pool.WithLabel(fileName))
		if err != nil {
			return b.abort(ctx, err)
		}

		ids[id] = struct{}{}

		fmt.Fprintf(b.diag, "%c[2LBuilding: %d/%d (%s)\n", esc, len(ids), total, fileName) //nolint:errcheck
	}

	if err := b.pool.WaitForAll(ctx); err != nil {
		return b.abort(ctx, err)
	}

	if id, res, failed := b.pool.Failed(); failed {
		logger.Debug("compile failed", "job", id, "label", b.pool.Label(id), "exitCode", res.ExitCode)
		b.diagnose(compilationFailedMsg)

		return ErrBuildFailed
	}

	logger.Info("compiled sources", "count", total)
	b.filesToCompile = nil

	return nil
}

// LinkIntoExecutable links the compiled objects into output:
// cxxPath -o output <objects...> <extraArgs...>.
func (b *Builder) LinkIntoExecutable(ctx context.Context, cxxPath, output string, extraArgs []string) error {
	args := slices.Concat([]string{cxxPath, "-o", output}, b.linkedFiles, extraArgs)

	return b.runFinal(ctx, "link", output, args)
}

// LinkIntoArchive packs the compiled objects into a static archive:
// archiver cr archiveFilename <objects...>.
func (b *Builder) LinkIntoArchive(ctx context.Context, archiver, archiveFilename string) error {
	args := slices.Concat([]string{archiver, archiveFlags, archiveFilename}, b.linkedFiles)

	return b.runFinal(ctx, "archive", archiveFilename, args)
}

// Close kills and reaps any job still running.
func (b *Builder) Close(ctx context.Context) error {
	return b.pool.Close(ctx) //nolint:wrapcheck
}

func (b *Builder) runFinal(ctx context.Context, phase, output string, args []string) error {
	b.reportPhase(phase, 1)

	id, err := b.pool.Run(ctx, args, pool.WithLabel(output))
	if err != nil {
		return b.abort(ctx, err)
	}

	if err := b.pool.WaitForAll(ctx); err != nil {
		return b.abort(ctx, err)
	}

	res, _ := b.pool.Status(id)
	if !res.Success() {
		ctxlog.Debug(ctx, "final step failed", "phase", phase, "output", output, "exitCode", res.ExitCode)
		b.diagnose(linkingFailedMsg)

		return ErrLinkFailed
	}

	ctxlog.Info(ctx, "final step done", "phase", phase, "output", output, "objects", len(b.linkedFiles))

	return nil
}

// abort kills every running job and returns err joined with any kill failure.
func (b *Builder) abort(ctx context.Context, err error) error {
	if kerr := b.pool.KillAll(ctx); kerr != nil {
		return errors.Join(err, kerr)
	}

	return err
}

func (b *Builder) diagnose(msg string) {
	fmt.Fprintln(b.diag, msg) //nolint:errcheck
}

func (b *Builder) reportPhase(phase string, total int) {
	b.reporter.Report(progress.Event{
		Label:     phase,
		Type:      progress.EventPhase,
		Message:   phase + " started",
		Timestamp: time.Now(),
		Data:      progress.EventData{Total: total},
	})
}
