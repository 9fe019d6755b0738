// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time operations so supervision logic can be
// tested deterministically. Production code injects Real(); tests
// inject Fake() and advance it explicitly.
package clock
