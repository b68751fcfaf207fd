// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"time"
)

// Event is a single update from the build.
type Event struct {
	Label     string    // Source file for compile jobs, or the phase name
	Type      EventType // What happened
	Message   string    // Human-readable status message
	Timestamp time.Time // When the event occurred
	Data      EventData // Type-specific data
}

// EventType represents the type of progress event.
type EventType int

const (
	// EventPhase indicates the build entered a new phase (compile, link, archive).
	EventPhase EventType = iota
	// EventStarted indicates a job was spawned.
	EventStarted
	// EventCompleted indicates a job exited with code zero.
	EventCompleted
	// EventFailed indicates a job exited non-zero, or the phase failed.
	EventFailed
)

// String implements the Stringer interface for EventType.
func (et EventType) String() string {
	switch et {
	case EventPhase:
		return "phase"
	case EventStarted:
		return "started"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// EventData contains type-specific information for progress events.
type EventData struct {
	// For EventPhase
	Total int // Number of jobs the phase will submit

	// For job events
	JobID    uint64
	Pid      int
	ExitCode int
	Elapsed  time.Duration

	// For EventFailed
	Error error
}

// Reporter is the interface for sending progress events.
type Reporter interface {
	// Report sends an event. Implementations must not block the build.
	Report(event Event)
	// Close signals that no more events will be sent.
	Close()
}

// Listener receives events from a ChannelReporter.
type Listener interface {
	// OnEvent is called for every event, in order, on the listener goroutine.
	OnEvent(event Event)
}

// NullReporter is a no-op Reporter.
type NullReporter struct{}

// Report does nothing.
func (nr *NullReporter) Report(Event) {}

// Close does nothing.
func (nr *NullReporter) Close() {}

// NewNullReporter creates a new NullReporter.
func NewNullReporter() Reporter {
	return &NullReporter{}
}
