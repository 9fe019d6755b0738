// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/corral-robotics/corral/cmd/corral/cli"
)

func writeDescriptor(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.launch")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestValidateCommand(t *testing.T) {
	path := writeDescriptor(t, `
<launch>
  <arg name="machine" default="localhost"/>
  <machine name="target" address="$(arg machine)" default="true"/>
  <node name="tracker" exec="tracker_service" machine="target"/>
</launch>`)

	if err := validateCommand().Execute([]string{path}); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateCommandRejectsBadDescriptor(t *testing.T) {
	path := writeDescriptor(t, `
<launch>
  <node name="n" exec="a" machine="ghost"/>
</launch>`)

	err := validateCommand().Execute([]string{path})
	var exit *cli.ExitError
	if !errors.As(err, &exit) {
		t.Fatalf("validate returned %v, want ExitError", err)
	}
	if exit.Code != 1 {
		t.Errorf("exit code = %d, want 1", exit.Code)
	}
}

func TestValidateCommandArgOverride(t *testing.T) {
	path := writeDescriptor(t, `
<launch>
  <arg name="robot"/>
  <node name="n" exec="run" args="--robot $(arg robot)"/>
</launch>`)

	// The mandatory argument fails without an override and passes
	// with one.
	if err := validateCommand().Execute([]string{path}); err == nil {
		t.Error("validate accepted a missing mandatory argument")
	}
	if err := validateCommand().Execute([]string{"--arg", "robot=baxter", path}); err != nil {
		t.Errorf("validate with --arg: %v", err)
	}
}

func TestValidateCommandWantsOnePath(t *testing.T) {
	if err := validateCommand().Execute(nil); err == nil {
		t.Error("validate accepted zero paths")
	}
}

func TestShortHash(t *testing.T) {
	t.Parallel()
	if got := shortHash(""); got != "unknown" {
		t.Errorf("shortHash(empty) = %q", got)
	}
	if got := shortHash("abcdef"); got != "abcdef" {
		t.Errorf("shortHash(short) = %q", got)
	}
	if got := shortHash("0123456789abcdef"); got != "0123456789ab" {
		t.Errorf("shortHash(long) = %q", got)
	}
}
