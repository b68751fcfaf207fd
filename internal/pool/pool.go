// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package pool

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"maps"
	"time"

	"github.com/matt-FFFFFF/stagebuild/internal/ctxlog"
	"github.com/matt-FFFFFF/stagebuild/internal/process"
	"github.com/matt-FFFFFF/stagebuild/internal/progress"
)

// JobID identifies a job submitted to a pool.
type JobID = process.JobID

var (
	// ErrInvalidCapacity is returned when a pool is created with fewer than one slot.
	ErrInvalidCapacity = errors.New("pool capacity must be at least 1")
	// ErrWait is returned when waiting for a job to exit failed.
	ErrWait = errors.New("failed waiting for job")
)

// JobState is the state of a job id as seen by the pool.
type JobState int

const (
	// JobUnknown means the id was never returned by Run on this pool.
	JobUnknown JobState = iota
	// JobPending means the job is running, or has exited but has not been reaped by a wait call yet.
	JobPending
	// JobCompleted means the job has been reaped and its ExitResult is available.
	JobCompleted
)

// String implements the Stringer interface for JobState.
func (s JobState) String() string {
	switch s {
	case JobPending:
		return "pending"
	case JobCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

type job struct {
	proc  process.Process
	label string
}

// Pool is a fixed-capacity set of running child processes. It is not safe for concurrent use.
type Pool struct {
	platform      process.Platform
	reporter      progress.Reporter
	pids          map[JobID]*job
	completed     map[JobID]process.ExitResult
	labels        map[JobID]string
	nextID        JobID
	maxConcurrent int
}

// Option configures a Pool.
type Option func(*Pool)

// WithPlatform sets the process platform. The default is the host operating system.
func WithPlatform(p process.Platform) Option {
	return func(pl *Pool) {
		pl.platform = p
	}
}

// WithReporter sets the progress reporter notified on every spawn and reap.
func WithReporter(r progress.Reporter) Option {
	return func(pl *Pool) {
		pl.reporter = r
	}
}

// New creates an empty pool running at most maxConcurrent jobs at once.
func New(maxConcurrent int, opts ...Option) (*Pool, error) {
	if maxConcurrent < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, maxConcurrent)
	}

	p := &Pool{
		platform:      process.NewOS(),
		reporter:      progress.NewNullReporter(),
		pids:          make(map[JobID]*job),
		completed:     make(map[JobID]process.ExitResult),
		labels:        make(map[JobID]string),
		maxConcurrent: maxConcurrent,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// RunOption configures a single job.
type RunOption func(*job)

// WithLabel names the job in logs and progress events. The default is the executable.
func WithLabel(label string) RunOption {
	return func(j *job) {
		j.label = label
	}
}

// Capacity returns the maximum number of jobs running at once.
func (p *Pool) Capacity() int {
	return p.maxConcurrent
}

// Running returns the number of jobs not yet reaped.
func (p *Pool) Running() int {
	return len(p.pids)
}

// Run spawns args as a new job and returns its id.
// If the pool is full it first blocks until a running job exits.
// If the spawn fails no id is consumed and no job is added.
func (p *Pool) Run(ctx context.Context, args []string, opts ...RunOption) (JobID, error) {
	if len(args) == 0 {
		return 0, process.ErrEmptyCommand
	}

	if err := p.WaitForSlot(ctx); err != nil {
		return 0, err
	}

	j := &job{label: args[0]}
	for _, opt := range opts {
		opt(j)
	}

	proc, err := p.platform.Spawn(ctx, args)
	if err != nil {
		ctxlog.Debug(ctx, "spawn failed", "label", j.label, "error", err)
		return 0, err //nolint:wrapcheck
	}

	j.proc = proc
	id := p.nextID
	p.nextID++
	p.pids[id] = j
	p.labels[id] = j.label

	ctxlog.Debug(ctx, "job started", "job", id, "pid", proc.Pid(), "label", j.label, "args", args)
	p.reporter.Report(progress.Event{
		Label:     j.label,
		Type:      progress.EventStarted,
		Message:   "job started",
		Timestamp: time.Now(),
		Data:      progress.EventData{JobID: uint64(id), Pid: proc.Pid()},
	})

	return id, nil
}

// WaitForSlot blocks until fewer than Capacity jobs are running.
func (p *Pool) WaitForSlot(ctx context.Context) error {
	for len(p.pids) >= p.maxConcurrent {
		if err := p.WaitForAny(ctx); err != nil {
			return err
		}
	}

	return nil
}

// Status returns the exit result of a reaped job.
// The boolean is false both for running jobs and for ids this pool never issued; use Lookup to tell them apart.
func (p *Pool) Status(id JobID) (process.ExitResult, bool) {
	res, ok := p.completed[id]
	return res, ok
}

// Lookup returns the state of id and, for completed jobs, its exit result.
func (p *Pool) Lookup(id JobID) (JobState, process.ExitResult) {
	if res, ok := p.completed[id]; ok {
		return JobCompleted, res
	}

	if _, ok := p.pids[id]; ok {
		return JobPending, process.ExitResult{}
	}

	return JobUnknown, process.ExitResult{}
}

// Completed iterates over the reaped jobs in no particular order.
func (p *Pool) Completed() iter.Seq2[JobID, process.ExitResult] {
	return maps.All(p.completed)
}

// Failed returns the id and result of some reaped job with a non-zero exit code.
func (p *Pool) Failed() (JobID, process.ExitResult, bool) {
	for id, res := range p.completed {
		if !res.Success() {
			return id, res, true
		}
	}

	return 0, process.ExitResult{}, false
}

// Label returns the label a job was submitted with.
func (p *Pool) Label(id JobID) string {
	return p.labels[id]
}

// WaitForAny blocks until at least one running job exits, then reaps it together with
// every other job that has already exited. It returns immediately if nothing is running.
//
// A job whose exit state cannot be polled is killed and recorded with process.Unknown,
// so a failing poll cannot leave the pool stuck at capacity.
func (p *Pool) WaitForAny(ctx context.Context) error {
	if len(p.pids) == 0 {
		return nil
	}

	procs := make(map[JobID]process.Process, len(p.pids))
	for id, j := range p.pids {
		procs[id] = j.proc
	}

	finishedID, found, finishedStatus, err := p.platform.WaitForAny(ctx, procs)
	if err != nil {
		return errors.Join(ErrWait, err)
	}

	reaped := make(map[JobID]process.ExitResult, len(p.pids))
	if found {
		reaped[finishedID] = finishedStatus
	}

	for id, j := range p.pids {
		if _, ok := reaped[id]; ok {
			continue
		}

		res, exited, err := j.proc.Poll()
		if err != nil {
			ctxlog.Warn(ctx, "could not poll job, treating it as failed", "job", id, "label", j.label, "error", err)

			if kerr := j.proc.Kill(); kerr != nil {
				ctxlog.Warn(ctx, "could not kill unpollable job", "job", id, "error", kerr)
			}

			reaped[id] = process.Unknown

			continue
		}

		if exited {
			reaped[id] = res
		}
	}

	for id, res := range reaped {
		p.reap(ctx, id, res)
	}

	return nil
}

// WaitForAll blocks until every running job has been reaped.
func (p *Pool) WaitForAll(ctx context.Context) error {
	for len(p.pids) > 0 {
		if err := p.WaitForAny(ctx); err != nil {
			return err
		}
	}

	return nil
}

// KillAll forcefully terminates every running job. The jobs stay running in the
// pool's view until a wait call reaps them.
func (p *Pool) KillAll(ctx context.Context) error {
	var errs []error

	for id, j := range p.pids {
		ctxlog.Debug(ctx, "killing job", "job", id, "pid", j.proc.Pid(), "label", j.label)

		if err := j.proc.Kill(); err != nil {
			errs = append(errs, fmt.Errorf("job %d (%s): %w", id, j.label, err))
		}
	}

	return errors.Join(errs...)
}

// Close kills every running job and reaps it. The pool must not be used afterwards.
func (p *Pool) Close(ctx context.Context) error {
	if len(p.pids) == 0 {
		return nil
	}

	killErr := p.KillAll(ctx)

	// Reaping must not be cut short by a cancelled caller context, or killed
	// children would be left behind.
	return errors.Join(killErr, p.WaitForAll(context.WithoutCancel(ctx)))
}

func (p *Pool) reap(ctx context.Context, id JobID, res process.ExitResult) {
	j, ok := p.pids[id]
	if !ok {
		return
	}

	delete(p.pids, id)
	p.completed[id] = res

	ctxlog.Debug(ctx, "job finished", "job", id, "label", j.label, "exitCode", res.ExitCode, "elapsed", res.Elapsed)

	ev := progress.Event{
		Label:     j.label,
		Type:      progress.EventCompleted,
		Message:   "job completed",
		Timestamp: time.Now(),
		Data: progress.EventData{
			JobID:    uint64(id),
			Pid:      res.Pid,
			ExitCode: res.ExitCode,
			Elapsed:  res.Elapsed,
		},
	}

	if !res.Success() {
		ev.Type = progress.EventFailed
		ev.Message = "job failed"
		ev.Data.Error = fmt.Errorf("exit code %d", res.ExitCode)
	}

	p.reporter.Report(ev)
}
