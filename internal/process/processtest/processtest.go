// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package processtest provides a scripted process.Platform for tests.
// No real processes are started: a process stays running until WaitForAny picks it
// (lowest JobID first) or it is killed, so schedules are fully deterministic.
package processtest

import (
	"cmp"
	"context"
	"errors"
	"maps"
	"slices"

	"github.com/matt-FFFFFF/stagebuild/internal/process"
)

var _ process.Platform = (*Platform)(nil)

// ErrUnknownProcess is returned when WaitForAny is given a handle this platform did not create.
var ErrUnknownProcess = errors.New("process was not spawned by this platform")

// Platform is an in-memory process.Platform.
type Platform struct {
	// ExitCode returns the exit code for a command line. A nil func means every command exits 0.
	ExitCode func(args []string) int
	// SpawnErr, if set, is consulted before each spawn.
	SpawnErr func(args []string) error
	// PollErr, if set, is consulted whenever a running process is polled.
	PollErr func(args []string) error
	// ExitOnSpawn, if set, marks matching processes as exited immediately,
	// so they are only observed through Poll.
	ExitOnSpawn func(args []string) bool

	Spawned [][]string // Command lines in spawn order
	Killed  [][]string // Command lines of processes killed while running
	Waits   int        // Number of WaitForAny calls
	MaxLive int        // Peak number of processes running at once

	live    int
	nextPid int
}

// New returns a platform where every command succeeds.
func New() *Platform {
	return &Platform{nextPid: 1000}
}

// ExitCodes returns an ExitCode func that matches on any argument equal to a map key.
func ExitCodes(codes map[string]int) func([]string) int {
	return func(args []string) int {
		for _, a := range args {
			if c, ok := codes[a]; ok {
				return c
			}
		}

		return 0
	}
}

// Live returns the number of processes currently running.
func (f *Platform) Live() int {
	return f.live
}

// Process is a fake process handle.
type Process struct {
	Args     []string
	platform *Platform
	pid      int
	exited   bool
	result   process.ExitResult
}

// Spawn implements process.Platform.
func (f *Platform) Spawn(_ context.Context, args []string) (process.Process, error) {
	if len(args) == 0 {
		return nil, process.ErrEmptyCommand
	}

	if f.SpawnErr != nil {
		if err := f.SpawnErr(args); err != nil {
			return nil, errors.Join(process.ErrSpawn, err)
		}
	}

	f.nextPid++
	p := &Process{
		Args:     slices.Clone(args),
		platform: f,
		pid:      f.nextPid,
	}

	f.Spawned = append(f.Spawned, p.Args)
	f.live++
	f.MaxLive = max(f.MaxLive, f.live)

	if f.ExitOnSpawn != nil && f.ExitOnSpawn(args) {
		p.exit(f.exitCode(args))
	}

	return p, nil
}

// WaitForAny implements process.Platform.
// It finishes the running process with the lowest JobID, or reports the lowest
// already exited one if nothing is running.
func (f *Platform) WaitForAny(ctx context.Context, procs map[process.JobID]process.Process) (process.JobID, bool, process.ExitResult, error) {
	f.Waits++

	if err := ctx.Err(); err != nil {
		return 0, false, process.ExitResult{}, err
	}

	if len(procs) == 0 {
		return 0, false, process.ExitResult{}, process.ErrNothingToWait
	}

	ids := slices.SortedFunc(maps.Keys(procs), cmp.Compare[process.JobID])

	var exited []process.JobID

	for _, id := range ids {
		p, ok := procs[id].(*Process)
		if !ok {
			return 0, false, process.ExitResult{}, ErrUnknownProcess
		}

		if p.exited {
			exited = append(exited, id)
			continue
		}

		p.exit(f.exitCode(p.Args))

		return id, true, p.result, nil
	}

	p := procs[exited[0]].(*Process) //nolint:forcetypeassert

	return exited[0], true, p.result, nil
}

func (f *Platform) exitCode(args []string) int {
	if f.ExitCode == nil {
		return 0
	}

	return f.ExitCode(args)
}

func (p *Process) exit(code int) {
	if p.exited {
		return
	}

	p.exited = true
	p.result = process.ExitResult{ExitCode: code, Pid: p.pid}
	p.platform.live--
}

// Pid implements process.Process.
func (p *Process) Pid() int {
	return p.pid
}

// Poll implements process.Process.
func (p *Process) Poll() (process.ExitResult, bool, error) {
	if p.exited {
		return p.result, true, nil
	}

	if p.platform.PollErr != nil {
		if err := p.platform.PollErr(p.Args); err != nil {
			return process.ExitResult{}, false, errors.Join(process.ErrPoll, err)
		}
	}

	return process.ExitResult{}, false, nil
}

// Kill implements process.Process. A killed process exits with -1.
func (p *Process) Kill() error {
	if p.exited {
		return nil
	}

	p.platform.Killed = append(p.platform.Killed, p.Args)
	p.exit(-1)

	return nil
}

// Exited reports whether the process has finished.
func (p *Process) Exited() bool {
	return p.exited
}
