// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/corral-robotics/corral/cmd/corral/cli"
	"github.com/corral-robotics/corral/descriptor"
	"github.com/corral-robotics/corral/lib/ipc"
	"github.com/corral-robotics/corral/lib/version"
)

func root() *cli.Command {
	return &cli.Command{
		Name:    "corral",
		Summary: "operate launch descriptors and running launches",
		Description: "corral validates launch descriptors and controls a running\n" +
			"corral-launcher over its Unix control socket.",
		Subcommands: []*cli.Command{
			validateCommand(),
			statusCommand(),
			nodesCommand(),
			startCommand(),
			stopCommand(),
			shutdownCommand(),
			versionCommand(),
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "print version information",
		Run: func(args []string) error {
			fmt.Printf("corral %s\n", version.Info())
			return nil
		},
	}
}

func validateCommand() *cli.Command {
	args := map[string]string{}
	var argFlags []string

	command := &cli.Command{
		Name:    "validate",
		Summary: "parse and validate a launch descriptor without starting it",
		Usage:   "corral validate [flags] <descriptor.launch>",
	}
	command.Flags = func() *pflag.FlagSet {
		flags := pflag.NewFlagSet("validate", pflag.ContinueOnError)
		flags.StringArrayVar(&argFlags, "arg", nil, "descriptor argument override as name=value (repeatable)")
		return flags
	}
	command.Run = func(positional []string) error {
		if len(positional) != 1 {
			return fmt.Errorf("want exactly one descriptor path, got %d", len(positional))
		}
		for _, pair := range argFlags {
			name, value, ok := strings.Cut(pair, "=")
			if !ok || name == "" {
				return fmt.Errorf("--arg wants name=value, got %q", pair)
			}
			args[name] = value
		}

		desc, err := descriptor.ParseFile(positional[0], args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
			return &cli.ExitError{Code: 1}
		}

		fmt.Printf("ok: %s\n", desc.Path)
		fmt.Printf("  %d args, %d machines, %d nodes (%d enabled)\n",
			len(desc.Args), len(desc.Machines), len(desc.Nodes), len(desc.Enabled()))
		for _, node := range desc.Nodes {
			marker := ""
			if node.Disabled {
				marker = " (disabled)"
			}
			fmt.Printf("  node %s: %s %s%s\n", node.Name, node.Exec, strings.Join(node.Args, " "), marker)
		}
		return nil
	}
	return command
}

// socketFlags is the flag pair every launcher-facing command shares.
type socketFlags struct {
	socket string
	json   bool
}

func (f *socketFlags) flagSet(name string) *pflag.FlagSet {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.StringVar(&f.socket, "socket", "", "control socket path (default: from config)")
	flags.BoolVar(&f.json, "json", false, "output as JSON")
	return flags
}

func (f *socketFlags) request(req ipc.Request) (ipc.Response, error) {
	socketPath, err := resolveSocket(f.socket)
	if err != nil {
		return ipc.Response{}, err
	}
	return request(socketPath, req)
}

func statusCommand() *cli.Command {
	var flags socketFlags
	return &cli.Command{
		Name:    "status",
		Summary: "show the running launch",
		Flags:   func() *pflag.FlagSet { return flags.flagSet("status") },
		Run: func(args []string) error {
			response, err := flags.request(ipc.Request{Action: ipc.ActionStatus})
			if err != nil {
				return err
			}
			status := response.Status
			if flags.json || !stdoutIsTerminal() {
				return writeJSON(status)
			}
			fmt.Printf("descriptor: %s\n", status.Descriptor)
			fmt.Printf("launcher:   %s (binary %s)\n", status.Version, shortHash(status.BinaryHash))
			fmt.Printf("uptime:     %s\n", time.Since(status.StartedAt).Round(time.Second))
			fmt.Printf("nodes:      %d running, %d not running\n", status.Running, status.Stopped)
			return nil
		},
	}
}

func nodesCommand() *cli.Command {
	var flags socketFlags
	return &cli.Command{
		Name:    "nodes",
		Summary: "list nodes and their states",
		Flags:   func() *pflag.FlagSet { return flags.flagSet("nodes") },
		Run: func(args []string) error {
			response, err := flags.request(ipc.Request{Action: ipc.ActionListNodes})
			if err != nil {
				return err
			}
			if flags.json || !stdoutIsTerminal() {
				return writeJSON(response.Nodes)
			}
			printNodeTable(response.Nodes)
			return nil
		},
	}
}

func startCommand() *cli.Command {
	var flags socketFlags
	return &cli.Command{
		Name:    "start",
		Summary: "start a stopped or disabled node",
		Usage:   "corral start [flags] <node>",
		Flags:   func() *pflag.FlagSet { return flags.flagSet("start") },
		Run:     func(args []string) error { return nodeAction(&flags, ipc.ActionStartNode, args) },
	}
}

func stopCommand() *cli.Command {
	var flags socketFlags
	return &cli.Command{
		Name:    "stop",
		Summary: "stop a running node",
		Usage:   "corral stop [flags] <node>",
		Flags:   func() *pflag.FlagSet { return flags.flagSet("stop") },
		Run:     func(args []string) error { return nodeAction(&flags, ipc.ActionStopNode, args) },
	}
}

func shutdownCommand() *cli.Command {
	var flags socketFlags
	return &cli.Command{
		Name:    "shutdown",
		Summary: "stop every node and exit the launcher",
		Flags:   func() *pflag.FlagSet { return flags.flagSet("shutdown") },
		Run: func(args []string) error {
			if _, err := flags.request(ipc.Request{Action: ipc.ActionShutdown}); err != nil {
				return err
			}
			fmt.Println("shutdown requested")
			return nil
		},
	}
}

func nodeAction(flags *socketFlags, action string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("want exactly one node name, got %d arguments", len(args))
	}
	response, err := flags.request(ipc.Request{Action: action, Node: args[0]})
	if err != nil {
		return err
	}
	if flags.json || !stdoutIsTerminal() {
		return writeJSON(response.Nodes)
	}
	printNodeTable(response.Nodes)
	return nil
}

// stdoutIsTerminal gates output format: human tables on a TTY, JSON
// when piped so scripts get structured data without asking.
func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// printNodeTable renders node statuses as an aligned table.
func printNodeTable(nodes []ipc.NodeStatus) {
	table := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
	fmt.Fprintln(table, "NODE\tSTATE\tPID\tRESTARTS\tEXIT\tMACHINE\tUPTIME")
	for _, node := range nodes {
		exit := "-"
		if node.ExitCode != nil {
			exit = fmt.Sprintf("%d", *node.ExitCode)
		}
		pid := "-"
		if node.PID != 0 {
			pid = fmt.Sprintf("%d", node.PID)
		}
		machine := node.Machine
		if machine == "" {
			machine = "local"
		}
		uptime := "-"
		if node.State == ipc.StateRunning && !node.StartedAt.IsZero() {
			uptime = time.Since(node.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(table, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			node.Name, node.State, pid, node.Restarts, exit, machine, uptime)
	}
	table.Flush()
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	if hash == "" {
		return "unknown"
	}
	return hash
}

func writeJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
