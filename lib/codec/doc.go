// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Corral's standard CBOR encoding and decoding
// configuration. All wire traffic on the launcher control socket and
// all CBOR state files go through this package so encoder settings are
// defined once.
package codec
