// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

// Package ipc defines the CBOR-encoded message types for the
// CLI↔launcher Unix socket protocol. Both cmd/corral and
// cmd/corral-launcher import this package so the wire types are
// defined once rather than mirrored.
package ipc
