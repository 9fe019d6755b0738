// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

// corral is the operator tool for a running corral-launcher: validate
// descriptors offline, inspect launch and node status, and start,
// stop, or shut down nodes over the launcher's control socket.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := run(); err != nil {
		// Commands that already printed their outcome return an
		// ExitError; don't add a redundant "error:" line for those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return root().Execute(os.Args[1:])
}
