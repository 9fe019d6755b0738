// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command framework behind the corral
// operator tool: a dispatch tree of named commands with pflag flag
// sets, structured help output, and typo suggestions.
package cli
