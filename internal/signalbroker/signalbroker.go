// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package signalbroker turns termination signals into cancellation of the build.
//
// Compilers and linkers run in the driver's process group, so a Ctrl-C typed at the
// terminal already reaches each of them and they exit on their own; the builder then
// sees non-zero exits and stops. The driver itself keeps running so that it can reap
// those children and print its diagnostic.
//
// Only when the same signal arrives a second time does Watch cancel the root context.
// A blocked pool wait then returns, and the builder kills and reaps every job that is
// still alive before the driver exits with status 1.
package signalbroker

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/matt-FFFFFF/stagebuild/internal/ctxlog"
)

// buildSignals are the signals a build driver is expected to honour.
// os.Interrupt is SIGINT on unix and the console break on windows.
var buildSignals = []os.Signal{
	os.Interrupt,
	syscall.SIGTERM,
	syscall.SIGQUIT,
}

// New subscribes a buffered channel to sigs, or to SIGINT, SIGTERM and SIGQUIT
// when none are given. Pass the channel to Watch and release it with Stop.
func New(ctx context.Context, sigs ...os.Signal) chan os.Signal {
	if len(sigs) == 0 {
		sigs = buildSignals
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)

	ctxlog.Debug(ctx, "watching for termination signals", "signals", sigs)

	return ch
}

// Stop unsubscribes ch. Signals arriving afterwards get the default behaviour.
func Stop(ch chan os.Signal) {
	signal.Stop(ch)
}
