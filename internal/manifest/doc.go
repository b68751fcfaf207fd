// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package manifest loads the description of a build: which sources to compile,
// where the objects go, which compiler to use and what to produce at the end.
//
// Manifests are YAML (.yaml, .yml) or HCL (.hcl). HCL manifests can read the
// environment through the env object, e.g. compiler = env.CXX.
package manifest
