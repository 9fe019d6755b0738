// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/corral-robotics/corral/supervise"
)

func TestShellQuote(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"", "''"},
		{"plain", "plain"},
		{"/opt/ros/env.sh", "/opt/ros/env.sh"},
		{"--rate=30", "--rate=30"},
		{"two words", "'two words'"},
		{"semi;colon", "'semi;colon'"},
		{"it's", `'it'\''s'`},
		{"$(reboot)", "'$(reboot)'"},
		{"a&&b", "'a&&b'"},
	}
	for _, tt := range tests {
		if got := shellQuote(tt.in); got != tt.want {
			t.Errorf("shellQuote(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestBuildCommand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		envLoader string
		cmd       supervise.Command
		want      string
	}{
		{
			name: "bare exec",
			cmd:  supervise.Command{Exec: "tracker_service"},
			want: "tracker_service",
		},
		{
			name: "args quoted",
			cmd:  supervise.Command{Exec: "viewer", Args: []string{"--label", "left camera"}},
			want: "viewer --label 'left camera'",
		},
		{
			name:      "env loader wraps the command",
			envLoader: "/opt/ros/env.sh",
			cmd:       supervise.Command{Exec: "banknote_recogniser", Args: []string{"-v"}},
			want:      "/opt/ros/env.sh banknote_recogniser -v",
		},
		{
			name: "env variables sorted and prefixed",
			cmd: supervise.Command{
				Exec: "ar_track",
				Env:  map[string]string{"B": "2", "A": "1 x"},
			},
			want: "env 'A=1 x' B=2 ar_track",
		},
		{
			name:      "working directory",
			envLoader: "/opt/ros/env.sh",
			cmd: supervise.Command{
				Exec: "run",
				Dir:  "/var/lib/demo app",
			},
			want: "cd '/var/lib/demo app' && /opt/ros/env.sh run",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := BuildCommand(tt.envLoader, tt.cmd); got != tt.want {
				t.Errorf("BuildCommand = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadInventory(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "machines.jsonc")
	content := `{
  // Lab fleet defaults.
  "defaults": {
    "user": "robot",
    "identity_file": "/etc/corral/id_ed25519",
    "port": 22,
  },
  "machines": {
    "baxter": {
      "user": "ruser",
      "port": 2222,
    },
    "10.0.0.9": {
      "insecure_skip_host_key": true,
    },
  },
}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	inv, err := LoadInventory(path)
	if err != nil {
		t.Fatalf("LoadInventory: %v", err)
	}

	// Name match merges over defaults.
	entry := inv.Lookup("baxter", "baxter.lab")
	if entry.User != "ruser" || entry.Port != 2222 {
		t.Errorf("baxter entry = %+v", entry)
	}
	if entry.IdentityFile != "/etc/corral/id_ed25519" {
		t.Errorf("baxter identity = %q, want default", entry.IdentityFile)
	}

	// Address match when no name entry exists.
	entry = inv.Lookup("camera-host", "10.0.0.9")
	if !entry.InsecureSkipHostKey || entry.User != "robot" {
		t.Errorf("address entry = %+v", entry)
	}

	// No match at all yields the defaults only.
	entry = inv.Lookup("unknown", "unknown.lab")
	if entry.User != "robot" || entry.Port != 22 {
		t.Errorf("default entry = %+v", entry)
	}

	// A nil inventory is usable.
	var none *Inventory
	if got := none.Lookup("x", "y"); got != (Entry{}) {
		t.Errorf("nil inventory lookup = %+v", got)
	}
}
