// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package progress carries build progress events from the pool and builder to
// whoever is watching: the TUI, or a debug log listener.
package progress
