// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"context"
	"sync"

	"github.com/matt-FFFFFF/stagebuild/internal/ctxlog"
)

// ChannelReporter implements Reporter over a buffered channel.
// Events that do not fit in the buffer are dropped rather than blocking the build.
type ChannelReporter struct {
	ch     chan Event
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

// NewChannelReporter creates a new ChannelReporter with the specified buffer size.
func NewChannelReporter(ctx context.Context, bufferSize int) *ChannelReporter {
	reporterCtx, cancel := context.WithCancel(ctx)

	return &ChannelReporter{
		ch:     make(chan Event, bufferSize),
		ctx:    reporterCtx,
		cancel: cancel,
	}
}

// Report implements Reporter.
func (cr *ChannelReporter) Report(event Event) {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	if cr.closed {
		return
	}

	select {
	case cr.ch <- event:
	case <-cr.ctx.Done():
	default:
		// full
	}
}

// Close implements Reporter. It waits for the listener to drain buffered events.
func (cr *ChannelReporter) Close() {
	cr.once.Do(func() {
		cr.mu.Lock()
		cr.closed = true
		close(cr.ch)
		cr.mu.Unlock()

		cr.wg.Wait()
		cr.cancel()
	})
}

// Listen forwards events to listener on a new goroutine until the reporter is closed.
func (cr *ChannelReporter) Listen(listener Listener) {
	cr.wg.Add(1)

	go func() {
		defer cr.wg.Done()

		for event := range cr.ch {
			listener.OnEvent(event)
		}
	}()
}

// Events returns the event channel, for callers that want to consume events directly.
func (cr *ChannelReporter) Events() <-chan Event {
	return cr.ch
}

// LogListener writes every event to the context logger at debug level.
type LogListener struct {
	ctx context.Context //nolint:containedctx
}

// NewLogListener returns a Listener logging to the logger carried by ctx.
func NewLogListener(ctx context.Context) *LogListener {
	return &LogListener{ctx: ctx}
}

// OnEvent implements Listener.
func (l *LogListener) OnEvent(event Event) {
	args := []any{"label", event.Label, "type", event.Type.String()}

	switch event.Type {
	case EventPhase:
		args = append(args, "total", event.Data.Total)
	case EventStarted:
		args = append(args, "job", event.Data.JobID, "pid", event.Data.Pid)
	case EventCompleted, EventFailed:
		args = append(args, "job", event.Data.JobID, "exitCode", event.Data.ExitCode, "elapsed", event.Data.Elapsed)
		if event.Data.Error != nil {
			args = append(args, "error", event.Data.Error)
		}
	}

	ctxlog.Debug(l.ctx, event.Message, args...)
}
