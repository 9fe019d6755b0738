// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

// Package binhash computes content digests of node executables. The
// launcher hashes every local node binary when it resolves it, logs
// the digest alongside the node's identity, and re-hashes on respawn
// so an operator can tell from the logs and status output whether a
// crashing node picked up a new binary.
package binhash
