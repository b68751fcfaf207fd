// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package process provides the platform primitives used to run child processes:
// spawning a command with inherited stdio, polling it for exit without blocking,
// waiting for any one of a set of processes to exit, and forcefully killing it.
//
// The primitives are expressed as the Platform and Process interfaces so that the
// pool and builder can be driven by a scripted platform in tests.
package process
