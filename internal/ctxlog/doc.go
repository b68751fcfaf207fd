// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package ctxlog provides a context-aware logger built on log/slog.
//
// The level is read from the environment variable named after the executable,
// e.g. STAGEBUILD_LOG_LEVEL for a binary called stagebuild. Accepted values are
// DEBUG, INFO, WARN and ERROR; anything else means WARN.
//
// Log output goes to stderr through a pretty console handler so that it never
// mixes with the output of child processes written to stdout.
package ctxlog
