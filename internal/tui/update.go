// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	progressbar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/matt-FFFFFF/stagebuild/internal/progress"
)

const durationRounding = 100 * time.Millisecond

// EventMsg wraps a progress event for the tea framework.
type EventMsg struct {
	Event progress.Event
}

// FinishedMsg indicates the build returned. It quits the program.
type FinishedMsg struct {
	Err error
}

// Init implements bubbletea.Model.Init.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements bubbletea.Model.Update.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}

		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(min(msg.Width-barPadding, maxBarWidth), 1)

		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd

	case progressbar.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		if b, ok := bar.(progressbar.Model); ok {
			m.bar = b
		}

		return m, cmd

	case EventMsg:
		m.processEvent(msg.Event)
		return m, nil

	case FinishedMsg:
		m.finished = true
		m.err = msg.Err

		return m, tea.Quit
	}

	return m, nil
}

// View implements bubbletea.Model.View.
func (m *Model) View() string {
	var b strings.Builder

	phase := m.phase
	if phase == "" {
		phase = "starting"
	}

	b.WriteString(m.styles.Title.Render("stagebuild: " + phase))
	b.WriteString("\n")
	b.WriteString(m.bar.ViewAs(m.ratio()))
	fmt.Fprintf(&b, " %d/%d", m.done, m.total)

	if m.failed > 0 {
		b.WriteString(m.styles.Failed.Render(fmt.Sprintf(" (%d failed)", m.failed)))
	}

	b.WriteString("\n\n")

	for _, job := range m.visibleJobs() {
		m.renderJob(&b, job)
	}

	switch {
	case m.finished && m.err != nil:
		b.WriteString("\n")
		b.WriteString(m.styles.Failed.Render("Build failed: " + m.err.Error()))
		b.WriteString("\n")
	case m.finished:
		b.WriteString("\n")
		b.WriteString(m.styles.Success.Render("Build succeeded"))
		b.WriteString("\n")
	case m.quitting:
		b.WriteString("\nStopping build...\n")
	default:
		b.WriteString("\n")
		b.WriteString(m.styles.Help.Render(m.keys.Quit.Help().Key + " to " + m.keys.Quit.Help().Desc))
		b.WriteString("\n")
	}

	return b.String()
}

// visibleJobs returns the most recent jobs that fit the terminal.
func (m *Model) visibleJobs() []*JobNode {
	if m.height <= 0 {
		return m.jobs
	}

	room := max(m.height-reservedLines, 1)
	if len(m.jobs) <= room {
		return m.jobs
	}

	return m.jobs[len(m.jobs)-room:]
}

func (m *Model) renderJob(b *strings.Builder, job *JobNode) {
	switch job.Status {
	case StatusRunning:
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(m.styles.Running.Render(job.Label))
	case StatusSuccess:
		b.WriteString(m.styles.Success.Render("✔ " + job.Label))
		b.WriteString(m.styles.Faint.Render(fmt.Sprintf(" (%v)", job.Elapsed.Round(durationRounding))))
	case StatusFailed:
		b.WriteString(m.styles.Failed.Render("✘ " + job.Label))
		b.WriteString(m.styles.Faint.Render(fmt.Sprintf(" exit %d (%v)", job.ExitCode, job.Elapsed.Round(durationRounding))))
	}

	b.WriteString("\n")
}
