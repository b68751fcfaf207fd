// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package objpath is a small immutable path type used to derive object file names from sources.
package objpath

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrEmptyPath is returned when a path is built from an empty string.
var ErrEmptyPath = errors.New("path is empty")

// Path is a file system path in the host's syntax.
type Path struct {
	p string
}

// FromString parses s into a Path.
func FromString(s string) (Path, error) {
	if s == "" {
		return Path{}, ErrEmptyPath
	}

	return Path{p: filepath.FromSlash(s)}, nil
}

// Join returns p with elem appended as a child.
func (p Path) Join(elem string) Path {
	return Path{p: filepath.Join(p.p, filepath.FromSlash(elem))}
}

// ReplaceExtension returns p with the extension of its final element replaced by ext.
// ext is given without the leading dot. A path without an extension gains one.
func (p Path) ReplaceExtension(ext string) Path {
	ext = strings.TrimPrefix(ext, ".")
	old := filepath.Ext(p.p)

	return Path{p: strings.TrimSuffix(p.p, old) + "." + ext}
}

// String returns the path in the host's syntax.
func (p Path) String() string {
	return p.p
}
