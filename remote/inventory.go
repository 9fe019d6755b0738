// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// Entry holds connection details for one machine. Zero fields fall
// back to the inventory defaults, then to built-in behavior (current
// user, port from the launcher config, ~/.ssh/known_hosts).
type Entry struct {
	// User is the login user.
	User string `json:"user"`

	// IdentityFile is the path to the private key used for
	// public-key authentication.
	IdentityFile string `json:"identity_file"`

	// Password enables password authentication when set. Key-based
	// auth is tried first when both are configured.
	Password string `json:"password"`

	// Port is the SSH port.
	Port int `json:"port"`

	// KnownHostsFile overrides the host key database path.
	KnownHostsFile string `json:"known_hosts_file"`

	// InsecureSkipHostKey disables host key checking. Lab use only.
	InsecureSkipHostKey bool `json:"insecure_skip_host_key"`
}

// Inventory maps machine names (or addresses) to connection details.
// The file is JSONC: JSON with comments and trailing commas, so the
// inventory can be annotated in place.
type Inventory struct {
	// Defaults apply to every machine the Machines map does not
	// override field-by-field.
	Defaults Entry `json:"defaults"`

	// Machines is keyed by descriptor machine name; an address key
	// matches when no name entry exists.
	Machines map[string]Entry `json:"machines"`
}

// LoadInventory reads a JSONC inventory file.
func LoadInventory(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading inventory: %w", err)
	}

	var inv Inventory
	if err := json.Unmarshal(jsonc.ToJSON(data), &inv); err != nil {
		return nil, fmt.Errorf("parsing inventory %s: %w", path, err)
	}
	return &inv, nil
}

// Lookup resolves the entry for a machine, merging the per-machine
// entry (matched by name, then by address) over the defaults. A nil
// inventory yields the zero entry.
func (inv *Inventory) Lookup(name, address string) Entry {
	if inv == nil {
		return Entry{}
	}

	entry := inv.Defaults
	specific, ok := inv.Machines[name]
	if !ok {
		specific, ok = inv.Machines[address]
	}
	if !ok {
		return entry
	}

	if specific.User != "" {
		entry.User = specific.User
	}
	if specific.IdentityFile != "" {
		entry.IdentityFile = specific.IdentityFile
	}
	if specific.Password != "" {
		entry.Password = specific.Password
	}
	if specific.Port != 0 {
		entry.Port = specific.Port
	}
	if specific.KnownHostsFile != "" {
		entry.KnownHostsFile = specific.KnownHostsFile
	}
	if specific.InsecureSkipHostKey {
		entry.InsecureSkipHostKey = true
	}
	return entry
}
