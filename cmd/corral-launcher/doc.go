// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

// corral-launcher loads a launch descriptor and supervises its nodes.
//
// It parses the descriptor (applying --arg overrides), starts every
// enabled node locally or over SSH, and keeps them in their declared
// state until the launch ends: a signal, a shutdown request on the
// control socket, or the exit of a node marked required. Operators
// inspect and control the running launch with the corral CLI over the
// Unix control socket.
package main
