// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package process

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSpawn is returned when the platform refuses to launch a child process.
	ErrSpawn = errors.New("could not start process")
	// ErrPoll is returned when the exit state of a child process could not be determined.
	ErrPoll = errors.New("could not poll process")
	// ErrKill is returned when a child process could not be killed.
	ErrKill = errors.New("could not kill process")
	// ErrEmptyCommand is returned when a command line has no executable.
	ErrEmptyCommand = errors.New("command line is empty")
	// ErrNothingToWait is returned when WaitForAny is given no processes.
	ErrNothingToWait = errors.New("no processes to wait for")
)

// JobID identifies a process submitted to a pool. IDs are assigned by the pool, not the platform.
type JobID uint64

// ExitResult is the termination status of a child process.
type ExitResult struct {
	ExitCode int           // Exit code, -1 if the process was terminated by a signal
	Pid      int           // Operating system process id
	Elapsed  time.Duration // Wall time between spawn and exit
}

// Unknown is the result recorded for a process whose exit state could not be read.
var Unknown = ExitResult{ExitCode: -1}

// Success reports whether the process exited with code zero.
func (r ExitResult) Success() bool {
	return r.ExitCode == 0
}

// Process is a handle to a spawned child process.
type Process interface {
	// Pid returns the operating system process id.
	Pid() int
	// Poll checks whether the process has exited without blocking.
	// The boolean is false while the process is still running.
	Poll() (ExitResult, bool, error)
	// Kill forcefully terminates the process. Killing a process that has already exited is not an error.
	Kill() error
}

// Platform spawns and waits on child processes.
type Platform interface {
	// Spawn starts args[0] with the remaining elements as its arguments.
	// The child inherits stdin, stdout and stderr.
	Spawn(ctx context.Context, args []string) (Process, error)
	// WaitForAny blocks until at least one process in procs has exited, or ctx is done.
	// The boolean is false when the platform cannot tell which process exited.
	WaitForAny(ctx context.Context, procs map[JobID]Process) (JobID, bool, ExitResult, error)
}
