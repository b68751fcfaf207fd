// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package color wraps strings in ANSI SGR codes when colour output is wanted.
// NO_COLOR disables colour, FORCE_COLOR enables it, otherwise colour is used
// only when stderr is a terminal.
package color
