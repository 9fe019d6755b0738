// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/corral-robotics/corral/lib/codec"
	"github.com/corral-robotics/corral/lib/config"
	"github.com/corral-robotics/corral/lib/ipc"
)

// resolveSocket returns the control socket path: the --socket flag if
// given, otherwise the configured run directory's socket.
func resolveSocket(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if os.Getenv("CORRAL_CONFIG") != "" {
		cfg, err := config.Load()
		if err != nil {
			return "", err
		}
		return cfg.SocketPath(), nil
	}
	return config.Default().SocketPath(), nil
}

// request performs one request/response cycle against the launcher.
// A response with OK=false is returned as an error.
func request(socketPath string, req ipc.Request) (ipc.Response, error) {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return ipc.Response{}, fmt.Errorf("connecting to launcher at %s (is corral-launcher running?): %w", socketPath, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(30 * time.Second))

	if err := codec.NewEncoder(conn).Encode(req); err != nil {
		return ipc.Response{}, fmt.Errorf("sending request: %w", err)
	}
	var response ipc.Response
	if err := codec.NewDecoder(conn).Decode(&response); err != nil {
		return ipc.Response{}, fmt.Errorf("reading response: %w", err)
	}
	if !response.OK {
		return response, fmt.Errorf("launcher: %s", response.Error)
	}
	return response, nil
}
