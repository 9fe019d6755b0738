// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for Corral
// components.
//
// Configuration is loaded from a single file specified by either the
// CORRAL_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search. This ensures deterministic, auditable
// configuration with no hidden overrides.
//
// The configuration file supports environment-specific sections
// (development, staging, production) that override base values when
// [Config].Environment matches. Production defaults are stricter:
// node respawn is bounded and a missing machine inventory is an error
// rather than being silently skipped.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${CORRAL_ROOT}, and ${VAR:-default} patterns are expanded.
// No other environment variables override config values.
//
// This package depends on no other Corral packages.
package config
