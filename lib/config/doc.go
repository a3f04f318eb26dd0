// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for aclsync
// nodes and the aclsync command.
//
// Configuration is loaded from a single file specified by either the
// ACLSYNC_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search.
//
// The file may contain environment-specific sections (development,
// staging, production) that override the convergence bounds when
// [Config].Environment matches.
//
// Variable expansion is performed on socket paths after loading:
// ${HOME}, ${NODE_ID}, and ${VAR:-default} patterns are expanded.
// No other environment variables override config values.
//
// [Config.Validate] reports every problem at once, joined with
// errors.Join, so an operator fixes a broken file in one pass.
package config
