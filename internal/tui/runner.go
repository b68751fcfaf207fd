// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"context"
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/matt-FFFFFF/stagebuild/internal/progress"
)

// ErrTUI is returned when the terminal program itself fails.
var ErrTUI = errors.New("terminal UI failed")

var _ progress.Reporter = (*TUIReporter)(nil)

// BuildFunc runs a build, sending its events to reporter.
type BuildFunc func(ctx context.Context, reporter progress.Reporter) error

// TUIReporter implements progress.Reporter and forwards events to the TUI.
type TUIReporter struct {
	program *tea.Program
	closed  bool
	mutex   sync.RWMutex
}

// NewTUIReporter creates a new TUI progress reporter.
func NewTUIReporter(program *tea.Program) *TUIReporter {
	return &TUIReporter{
		program: program,
	}
}

// Report implements progress.Reporter.
func (tr *TUIReporter) Report(event progress.Event) {
	tr.mutex.RLock()
	defer tr.mutex.RUnlock()

	if tr.closed || tr.program == nil {
		return
	}

	tr.program.Send(EventMsg{Event: event})
}

// Close implements progress.Reporter.
func (tr *TUIReporter) Close() {
	tr.mutex.Lock()
	defer tr.mutex.Unlock()
	tr.closed = true
}

// Runner runs a build underneath the TUI.
type Runner struct {
	model    *Model
	program  *tea.Program
	reporter *TUIReporter
}

// NewRunner creates a new TUI runner. Options are passed to the bubbletea program.
func NewRunner(opts ...tea.ProgramOption) *Runner {
	model := NewModel()
	program := tea.NewProgram(model, opts...)

	return &Runner{
		model:    model,
		program:  program,
		reporter: NewTUIReporter(program),
	}
}

// Reporter returns the progress reporter for this runner.
func (r *Runner) Reporter() progress.Reporter {
	return r.reporter
}

// Model returns the runner's model.
func (r *Runner) Model() *Model {
	return r.model
}

// Run starts the TUI and runs build with the runner's reporter.
// The program quits when the build returns. If the user quits first,
// the build's context is cancelled and Run waits for it to return.
func (r *Runner) Run(ctx context.Context, build BuildFunc) error {
	buildCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := make(chan error, 1)

	go func() {
		result <- build(buildCtx, r.reporter)
	}()

	tuiDone := make(chan error, 1)

	go func() {
		_, err := r.program.Run()
		tuiDone <- err
	}()

	var buildErr, tuiErr error

	select {
	case buildErr = <-result:
		r.program.Send(FinishedMsg{Err: buildErr})
		tuiErr = <-tuiDone

	case tuiErr = <-tuiDone:
		cancel()

		buildErr = <-result
	}

	r.reporter.Close()

	if tuiErr != nil {
		return errors.Join(buildErr, ErrTUI, tuiErr)
	}

	return buildErr
}
