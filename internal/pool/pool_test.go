// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package pool

import (
	"context"
	"errors"
	"runtime"
	"slices"
	"testing"
	"time"

	"github.com/matt-FFFFFF/stagebuild/internal/process"
	"github.com/matt-FFFFFF/stagebuild/internal/process/processtest"
	"github.com/matt-FFFFFF/stagebuild/internal/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newTestPool(t *testing.T, capacity int, opts ...Option) (*Pool, *processtest.Platform) {
	t.Helper()

	fake := processtest.New()
	p, err := New(capacity, append([]Option{WithPlatform(fake)}, opts...)...)
	require.NoError(t, err)

	return p, fake
}

type recordingReporter struct {
	events []progress.Event
}

func (r *recordingReporter) Report(e progress.Event) { r.events = append(r.events, e) }
func (r *recordingReporter) Close()                  {}

func TestNew_InvalidCapacity(t *testing.T) {
	for _, c := range []int{0, -1} {
		_, err := New(c)
		require.ErrorIs(t, err, ErrInvalidCapacity)
	}
}

func TestNew_Empty(t *testing.T) {
	p, err := New(4)
	require.NoError(t, err)

	assert.Equal(t, 4, p.Capacity())
	assert.Zero(t, p.Running())

	_, _, failed := p.Failed()
	assert.False(t, failed)
}

func TestRun_IDsStrictlyIncreasing(t *testing.T) {
	p, _ := newTestPool(t, 2)
	ctx := context.Background()

	var ids []JobID

	for range 7 {
		id, err := p.Run(ctx, []string{"cc"})
		require.NoError(t, err)

		ids = append(ids, id)
	}

	for i := 1; i < len(ids); i++ {
		assert.Greater(t, ids[i], ids[i-1])
	}

	assert.Equal(t, JobID(0), ids[0])
}

func TestRun_CapacityNeverExceeded(t *testing.T) {
	for _, capacity := range []int{1, 2, 3, 5} {
		p, fake := newTestPool(t, capacity)
		ctx := context.Background()

		for range 12 {
			_, err := p.Run(ctx, []string{"cc"})
			require.NoError(t, err)
			assert.LessOrEqual(t, p.Running(), capacity, "after run")
		}

		for p.Running() > 0 {
			require.NoError(t, p.WaitForAny(ctx))
			assert.LessOrEqual(t, p.Running(), capacity, "after wait")
		}

		assert.LessOrEqual(t, fake.MaxLive, capacity)
		assert.Len(t, fake.Spawned, 12)
	}
}

func TestRun_BlocksOnlyWhenFull(t *testing.T) {
	p, fake := newTestPool(t, 3)
	ctx := context.Background()

	for range 3 {
		_, err := p.Run(ctx, []string{"cc"})
		require.NoError(t, err)
	}

	assert.Zero(t, fake.Waits, "no wait while below capacity")

	_, err := p.Run(ctx, []string{"cc"})
	require.NoError(t, err)
	assert.Equal(t, 1, fake.Waits)
	assert.Equal(t, 3, p.Running())
}

func TestRun_SpawnErrorLeavesStateUnchanged(t *testing.T) {
	p, fake := newTestPool(t, 2)
	ctx := context.Background()
	boom := errors.New("no such file")
	fake.SpawnErr = func(args []string) error {
		if args[0] == "missing" {
			return boom
		}

		return nil
	}

	first, err := p.Run(ctx, []string{"cc"})
	require.NoError(t, err)

	_, err = p.Run(ctx, []string{"missing"})
	require.ErrorIs(t, err, process.ErrSpawn)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, p.Running())

	next, err := p.Run(ctx, []string{"cc"})
	require.NoError(t, err)
	assert.Equal(t, first+1, next, "a failed spawn does not consume an id")
}

func TestRun_EmptyCommand(t *testing.T) {
	p, _ := newTestPool(t, 1)
	_, err := p.Run(context.Background(), nil)
	require.ErrorIs(t, err, process.ErrEmptyCommand)
}

func TestStatusAndLookup(t *testing.T) {
	p, fake := newTestPool(t, 2)
	fake.ExitCode = processtest.ExitCodes(map[string]int{"bad": 3})
	ctx := context.Background()

	good, err := p.Run(ctx, []string{"cc", "good"})
	require.NoError(t, err)

	bad, err := p.Run(ctx, []string{"cc", "bad"})
	require.NoError(t, err)

	_, ok := p.Status(good)
	assert.False(t, ok, "running job has no status")

	state, _ := p.Lookup(good)
	assert.Equal(t, JobPending, state)

	state, _ = p.Lookup(99)
	assert.Equal(t, JobUnknown, state)

	require.NoError(t, p.WaitForAll(ctx))

	res, ok := p.Status(good)
	require.True(t, ok)
	assert.Equal(t, 0, res.ExitCode)

	state, res = p.Lookup(bad)
	assert.Equal(t, JobCompleted, state)
	assert.Equal(t, 3, res.ExitCode)

	id, res, failed := p.Failed()
	require.True(t, failed)
	assert.Equal(t, bad, id)
	assert.Equal(t, 3, res.ExitCode)

	_, ok = p.Status(99)
	assert.False(t, ok, "unknown id has no status")
}

func TestJobState_String(t *testing.T) {
	assert.Equal(t, "pending", JobPending.String())
	assert.Equal(t, "completed", JobCompleted.String())
	assert.Equal(t, "unknown", JobUnknown.String())
}

func TestWaitForAny_SweepsAlreadyExited(t *testing.T) {
	p, fake := newTestPool(t, 4)
	ctx := context.Background()
	fake.ExitOnSpawn = func(args []string) bool { return args[1] != "slow" }

	slow, err := p.Run(ctx, []string{"cc", "slow"})
	require.NoError(t, err)

	for range 2 {
		_, err := p.Run(ctx, []string{"cc", "fast"})
		require.NoError(t, err)
	}

	// The wait finishes "slow" and the sweep reaps both fast jobs in the same pass.
	require.NoError(t, p.WaitForAny(ctx))
	assert.Zero(t, p.Running())
	assert.Equal(t, 1, fake.Waits)

	state, _ := p.Lookup(slow)
	assert.Equal(t, JobCompleted, state)
}

func TestWaitForAny_PollErrorUsesSentinel(t *testing.T) {
	p, fake := newTestPool(t, 4)
	ctx := context.Background()
	fake.PollErr = func(args []string) error {
		if args[1] == "flaky" {
			return errors.New("poll failed")
		}

		return nil
	}

	first, err := p.Run(ctx, []string{"cc", "ok"})
	require.NoError(t, err)

	flaky, err := p.Run(ctx, []string{"cc", "flaky"})
	require.NoError(t, err)

	other, err := p.Run(ctx, []string{"cc", "running"})
	require.NoError(t, err)

	require.NoError(t, p.WaitForAny(ctx))

	res, ok := p.Status(first)
	require.True(t, ok)
	assert.Equal(t, 0, res.ExitCode)

	res, ok = p.Status(flaky)
	require.True(t, ok, "unpollable job is removed from the running set")
	assert.Equal(t, process.Unknown, res)
	assert.Equal(t, [][]string{{"cc", "flaky"}}, fake.Killed, "unpollable job is killed")

	state, _ := p.Lookup(other)
	assert.Equal(t, JobPending, state)
}

func TestWaitForAny_Empty(t *testing.T) {
	p, fake := newTestPool(t, 1)
	require.NoError(t, p.WaitForAny(context.Background()))
	assert.Zero(t, fake.Waits, "platform is not consulted for an empty pool")
}

func TestWaitForAny_ContextCancelled(t *testing.T) {
	p, _ := newTestPool(t, 1)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := p.Run(ctx, []string{"cc"})
	require.NoError(t, err)

	cancel()

	err = p.WaitForAny(ctx)
	require.ErrorIs(t, err, ErrWait)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, p.Running())

	_, err = p.Run(ctx, []string{"cc"})
	require.ErrorIs(t, err, ErrWait, "a full pool cannot make room with a cancelled context")
}

func TestWaitForAll_Idempotent(t *testing.T) {
	p, fake := newTestPool(t, 2)
	ctx := context.Background()

	for range 5 {
		_, err := p.Run(ctx, []string{"cc"})
		require.NoError(t, err)
	}

	require.NoError(t, p.WaitForAll(ctx))
	assert.Zero(t, p.Running())

	before := maps2slice(p)
	waits := fake.Waits

	require.NoError(t, p.WaitForAll(ctx))
	assert.Equal(t, before, maps2slice(p))
	assert.Equal(t, waits, fake.Waits)
	assert.Len(t, before, 5)
}

func maps2slice(p *Pool) []JobID {
	var ids []JobID
	for id := range p.Completed() {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids
}

func TestKillAll(t *testing.T) {
	p, fake := newTestPool(t, 3)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		_, err := p.Run(ctx, []string{"cc", name})
		require.NoError(t, err)
	}

	require.NoError(t, p.KillAll(ctx))
	assert.Len(t, fake.Killed, 3)
	assert.Equal(t, 3, p.Running(), "kill does not reap")

	require.NoError(t, p.WaitForAll(ctx))

	for id, res := range p.Completed() {
		assert.Equal(t, -1, res.ExitCode, "job %d was killed", id)
	}
}

func TestClose(t *testing.T) {
	p, fake := newTestPool(t, 2)
	ctx, cancel := context.WithCancel(context.Background())

	for range 2 {
		_, err := p.Run(ctx, []string{"cc"})
		require.NoError(t, err)
	}

	cancel()

	require.NoError(t, p.Close(ctx), "close reaps even with a cancelled context")
	assert.Zero(t, p.Running())
	assert.Zero(t, fake.Live())
}

func TestReporterEvents(t *testing.T) {
	rep := &recordingReporter{}
	p, fake := newTestPool(t, 1, WithReporter(rep))
	fake.ExitCode = processtest.ExitCodes(map[string]int{"b.c": 1})
	ctx := context.Background()

	_, err := p.Run(ctx, []string{"cc", "a.c"}, WithLabel("a.c"))
	require.NoError(t, err)

	_, err = p.Run(ctx, []string{"cc", "b.c"}, WithLabel("b.c"))
	require.NoError(t, err)

	require.NoError(t, p.WaitForAll(ctx))

	var got []string
	for _, e := range rep.events {
		got = append(got, e.Label+":"+e.Type.String())
	}

	assert.Equal(t, []string{"a.c:started", "a.c:completed", "b.c:started", "b.c:failed"}, got)
	assert.Equal(t, "b.c", p.Label(1))
	assert.Equal(t, "cc", func() string {
		id, err := p.Run(ctx, []string{"cc"})
		require.NoError(t, err)

		return p.Label(id)
	}(), "label defaults to the executable")
}

func TestPool_OSProcesses(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping POSIX shell test on windows")
	}

	defer goleak.VerifyNone(t)

	p, err := New(2)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ok, err := p.Run(ctx, []string{"/bin/sh", "-c", "exit 0"})
	require.NoError(t, err)

	bad, err := p.Run(ctx, []string{"/bin/sh", "-c", "exit 5"})
	require.NoError(t, err)

	// Third submission must wait for a slot.
	last, err := p.Run(ctx, []string{"/bin/sh", "-c", "exit 0"})
	require.NoError(t, err)
	assert.LessOrEqual(t, p.Running(), 2)

	require.NoError(t, p.WaitForAll(ctx))

	for id, code := range map[JobID]int{ok: 0, bad: 5, last: 0} {
		res, found := p.Status(id)
		require.True(t, found)
		assert.Equal(t, code, res.ExitCode)
	}
}

func TestPool_OSCloseKillsChildren(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping POSIX shell test on windows")
	}

	defer goleak.VerifyNone(t)

	p, err := New(2)
	require.NoError(t, err)

	ctx := context.Background()

	for range 2 {
		_, err := p.Run(ctx, []string{"/bin/sleep", "30"})
		require.NoError(t, err)
	}

	start := time.Now()

	require.NoError(t, p.Close(ctx))
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Zero(t, p.Running())
}
