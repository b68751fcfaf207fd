// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	progressbar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/matt-FFFFFF/stagebuild/internal/progress"
)

const (
	defaultBarWidth = 40
	barPadding      = 4
	maxBarWidth     = 80
	// lines used by the title, bar and footer.
	reservedLines = 6
)

// JobStatus is the state of a job as seen by the view.
type JobStatus int

const (
	StatusRunning JobStatus = iota
	StatusSuccess
	StatusFailed
)

// String returns a string representation of the job status.
func (s JobStatus) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// JobNode is one spawned job.
type JobNode struct {
	ID       uint64
	Label    string
	Pid      int
	Status   JobStatus
	Started  time.Time
	Elapsed  time.Duration
	ExitCode int
}

// Model is the bubbletea model for a build.
type Model struct {
	phase    string
	total    int
	done     int
	failed   int
	jobs     []*JobNode
	byID     map[uint64]*JobNode
	width    int
	height   int
	finished bool
	err      error
	quitting bool

	keys    keyMap
	bar     progressbar.Model
	spinner spinner.Model
	styles  *Styles
}

type keyMap struct {
	Quit key.Binding
}

// Styles contains all the styling for the TUI.
type Styles struct {
	Title   lipgloss.Style
	Running lipgloss.Style
	Success lipgloss.Style
	Failed  lipgloss.Style
	Faint   lipgloss.Style
	Help    lipgloss.Style
}

// NewStyles creates the default styling for the TUI.
func NewStyles() *Styles {
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")),
		Running: lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true),
		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")),
		Failed: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")),
		Faint: lipgloss.NewStyle().
			Foreground(lipgloss.Color("7")).
			Italic(true),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")),
	}
}

// NewModel creates a new TUI model.
func NewModel() *Model {
	s := spinner.New(spinner.WithSpinner(spinner.Dot))
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	return &Model{
		byID: make(map[uint64]*JobNode),
		keys: keyMap{
			Quit: key.NewBinding(
				key.WithKeys("q", "ctrl+c"),
				key.WithHelp("q", "quit"),
			),
		},
		bar:     progressbar.New(progressbar.WithDefaultGradient(), progressbar.WithWidth(defaultBarWidth)),
		spinner: s,
		styles:  NewStyles(),
	}
}

// Jobs returns the jobs seen so far, in spawn order.
func (m *Model) Jobs() []*JobNode {
	return m.jobs
}

// Phase returns the current phase and the number of jobs done and expected in it.
func (m *Model) Phase() (string, int, int) {
	return m.phase, m.done, m.total
}

// Finished reports whether the build has returned, and its error.
func (m *Model) Finished() (bool, error) {
	return m.finished, m.err
}

func (m *Model) ratio() float64 {
	if m.total <= 0 {
		return 0
	}

	r := float64(m.done) / float64(m.total)
	if r > 1 {
		return 1
	}

	return r
}

func (m *Model) processEvent(ev progress.Event) {
	switch ev.Type {
	case progress.EventPhase:
		m.phase = ev.Label
		m.total = ev.Data.Total
		m.done = 0
		m.failed = 0

	case progress.EventStarted:
		node := &JobNode{
			ID:      ev.Data.JobID,
			Label:   ev.Label,
			Pid:     ev.Data.Pid,
			Status:  StatusRunning,
			Started: ev.Timestamp,
		}
		m.jobs = append(m.jobs, node)
		m.byID[node.ID] = node

	case progress.EventCompleted, progress.EventFailed:
		node, ok := m.byID[ev.Data.JobID]
		if !ok {
			return
		}

		node.Status = StatusSuccess
		if ev.Type == progress.EventFailed {
			node.Status = StatusFailed
			m.failed++
		}

		node.Elapsed = ev.Data.Elapsed
		node.ExitCode = ev.Data.ExitCode
		m.done++
	}
}
