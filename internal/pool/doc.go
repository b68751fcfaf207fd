// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package pool runs external commands with a fixed number in flight.
//
// A Pool is driven by a single goroutine. Submitting a command blocks only when the
// pool is at capacity, until some running job exits. Every job gets a monotonically
// increasing JobID and, once it has been observed to exit, its ExitResult is kept
// for the lifetime of the pool.
//
// Exits are only observed by the wait calls: WaitForAny blocks until one job exits
// and then polls the others so that jobs which finished at the same time are reaped
// in the same pass.
package pool
