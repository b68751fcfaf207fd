// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package tui renders a live view of a build: the current phase, a progress
// bar over the phase's jobs and the most recent jobs with their status.
//
// The view is driven entirely by progress events, which a TUIReporter forwards
// into the bubbletea program.
package tui
