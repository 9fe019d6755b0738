// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/corral-robotics/corral/lib/codec"
	"github.com/corral-robotics/corral/lib/ipc"
	"github.com/corral-robotics/corral/lib/version"
	"github.com/corral-robotics/corral/supervise"
)

// Launcher handles control-socket requests. The serve loop accepts
// connections concurrently; the supervisor does its own locking, so
// handlers hold no launcher-wide lock. Fields are immutable after
// startup.
type Launcher struct {
	supervisor *supervise.Supervisor
	descriptor string // absolute path of the loaded descriptor
	binaryHash string // launcher's own binary hash, for status
	startedAt  time.Time
	shutdown   context.CancelFunc // cancels the launch context
	logger     *slog.Logger
}

// serve accepts connections on the control socket until the listener
// closes.
func (l *Launcher) serve(ctx context.Context, listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			l.logger.Error("accept error", "error", err)
			return
		}
		go l.handleConnection(ctx, conn)
	}
}

// handleConnection processes one request/response cycle.
func (l *Launcher) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(30 * time.Second))

	decoder := codec.NewDecoder(conn)
	encoder := codec.NewEncoder(conn)

	var request ipc.Request
	if err := decoder.Decode(&request); err != nil {
		l.logger.Error("decoding control request", "error", err)
		if err := encoder.Encode(ipc.Response{OK: false, Error: "invalid request"}); err != nil {
			l.logger.Error("encoding error response", "error", err)
		}
		return
	}

	l.logger.Info("control request", "action", request.Action, "node", request.Node)

	var response ipc.Response
	switch request.Action {
	case ipc.ActionStatus:
		response = l.handleStatus()

	case ipc.ActionListNodes:
		response = ipc.Response{OK: true, Nodes: l.supervisor.Nodes()}

	case ipc.ActionStartNode:
		response = l.handleStartNode(ctx, request.Node)

	case ipc.ActionStopNode:
		response = l.handleStopNode(request.Node)

	case ipc.ActionShutdown:
		response = ipc.Response{OK: true}
		l.shutdown()

	default:
		response = ipc.Response{OK: false, Error: "unknown action: " + request.Action}
	}

	if err := encoder.Encode(response); err != nil {
		l.logger.Error("encoding control response", "error", err)
	}
}

func (l *Launcher) handleStatus() ipc.Response {
	status := l.supervisor.Status()
	status.Version = version.Info()
	status.BinaryHash = l.binaryHash
	status.StartedAt = l.startedAt
	return ipc.Response{OK: true, Status: &status}
}

func (l *Launcher) handleStartNode(ctx context.Context, node string) ipc.Response {
	if node == "" {
		return ipc.Response{OK: false, Error: "start-node requires a node name"}
	}
	status, err := l.supervisor.StartNode(ctx, node)
	if err != nil {
		return ipc.Response{OK: false, Error: err.Error()}
	}
	return ipc.Response{OK: true, Nodes: []ipc.NodeStatus{status}}
}

func (l *Launcher) handleStopNode(node string) ipc.Response {
	if node == "" {
		return ipc.Response{OK: false, Error: "stop-node requires a node name"}
	}
	status, err := l.supervisor.StopNode(node)
	if err != nil {
		return ipc.Response{OK: false, Error: err.Error()}
	}
	return ipc.Response{OK: true, Nodes: []ipc.NodeStatus{status}}
}
