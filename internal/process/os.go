// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package process

import (
	"cmp"
	"context"
	"errors"
	"maps"
	"os"
	"os/exec"
	"reflect"
	"slices"
	"time"

	"github.com/matt-FFFFFF/stagebuild/internal/ctxlog"
)

var (
	_ Platform = (*OS)(nil)
	_ Process  = (*osProcess)(nil)
)

// OS is the Platform backed by the host operating system.
// Every spawned process is reaped by a goroutine that exits with the child.
type OS struct{}

// NewOS returns the host operating system platform.
func NewOS() *OS {
	return &OS{}
}

type osProcess struct {
	cmd     *exec.Cmd
	done    chan struct{}
	result  ExitResult
	waitErr error
}

// Spawn implements Platform.
func (*OS) Spawn(ctx context.Context, args []string) (Process, error) {
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}

	cmd := exec.Command(args[0], args[1:]...) //nolint:gosec
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, errors.Join(ErrSpawn, err)
	}

	p := &osProcess{
		cmd:  cmd,
		done: make(chan struct{}),
	}

	ctxlog.Debug(ctx, "process started", "pid", cmd.Process.Pid, "path", cmd.Path)

	go func() {
		err := cmd.Wait()
		p.result = ExitResult{
			ExitCode: cmd.ProcessState.ExitCode(),
			Pid:      cmd.Process.Pid,
			Elapsed:  time.Since(start),
		}

		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			p.waitErr = err
		}

		close(p.done)
	}()

	return p, nil
}

// WaitForAny implements Platform.
// When several processes have already exited, the one with the lowest JobID is reported.
func (*OS) WaitForAny(ctx context.Context, procs map[JobID]Process) (JobID, bool, ExitResult, error) {
	if len(procs) == 0 {
		return 0, false, ExitResult{}, ErrNothingToWait
	}

	ids := slices.SortedFunc(maps.Keys(procs), cmp.Compare[JobID])
	cases := make([]reflect.SelectCase, 0, len(ids)+1)
	cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())})
	caseIDs := make([]JobID, 0, len(ids)+1)
	caseIDs = append(caseIDs, 0)

	for _, id := range ids {
		p, ok := procs[id].(*osProcess)
		if !ok {
			continue
		}

		select {
		case <-p.done:
			return id, true, p.result, nil
		default:
		}

		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(p.done)})
		caseIDs = append(caseIDs, id)
	}

	if len(cases) == 1 {
		return 0, false, ExitResult{}, ErrNothingToWait
	}

	// cases[0] is the context.
	chosen, _, _ := reflect.Select(cases)
	if chosen == 0 {
		return 0, false, ExitResult{}, ctx.Err()
	}

	id := caseIDs[chosen]

	return id, true, procs[id].(*osProcess).result, nil //nolint:forcetypeassert
}

// Pid implements Process.
func (p *osProcess) Pid() int {
	return p.cmd.Process.Pid
}

// Poll implements Process.
func (p *osProcess) Poll() (ExitResult, bool, error) {
	select {
	case <-p.done:
		if p.waitErr != nil {
			return Unknown, false, errors.Join(ErrPoll, p.waitErr)
		}

		return p.result, true, nil
	default:
		return ExitResult{}, false, nil
	}
}

// Kill implements Process.
func (p *osProcess) Kill() error {
	if err := p.cmd.Process.Kill(); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}

		return errors.Join(ErrKill, err)
	}

	return nil
}
