// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads wasteland's YAML configuration.
//
// Configuration comes from exactly one file, named by the
// WASTELAND_CONFIG environment variable ([Load]) or a --config flag
// ([LoadFile]). There is no search path. Commands that run without a
// file start from [Default] and take everything else from flags.
//
// Loading runs in a fixed order:
//
//  1. [Default] values
//  2. the file
//  3. the development/staging/production section matching
//     environment
//  4. ${VAR} and ${VAR:-default} expansion in URL and path fields
//
// [Config.Validate] is separate so commands can apply flag overrides
// between loading and validation.
//
// This package imports no other wasteland packages.
package config
