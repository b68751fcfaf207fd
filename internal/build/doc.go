// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package build compiles a batch of sources in parallel and links the objects.
//
// A Builder is made for one batch: ForBuilding, then BuildAll, then one of
// LinkIntoExecutable or LinkIntoArchive, then Close. The first failed compile
// aborts the batch within one concurrency window and kills the remaining jobs.
//
// Progress and failures are written to the diagnostic stream (stderr by default):
//
//	ESC[2LBuilding: 3/10 (src/lexer.c)
//	Error: Compilation failed
package build
