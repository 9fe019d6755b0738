// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package descriptor

import (
	"errors"
	"fmt"
)

// validate checks cross-element consistency after all includes have
// been resolved: unique names, resolvable machine references, and at
// most one default machine.
func (d *Descriptor) validate() error {
	var errs []error

	machineNames := make(map[string]bool, len(d.Machines))
	defaultCount := 0
	for _, machine := range d.Machines {
		if machineNames[machine.Name] {
			errs = append(errs, fmt.Errorf("duplicate machine name %q", machine.Name))
			continue
		}
		machineNames[machine.Name] = true
		if machine.Default {
			defaultCount++
		}
	}
	if defaultCount > 1 {
		errs = append(errs, fmt.Errorf("%d machines are marked default, want at most one", defaultCount))
	}

	nodeNames := make(map[string]bool, len(d.Nodes))
	for _, node := range d.Nodes {
		if nodeNames[node.Name] {
			errs = append(errs, fmt.Errorf("duplicate node name %q", node.Name))
			continue
		}
		nodeNames[node.Name] = true

		if node.Exec == "" {
			errs = append(errs, fmt.Errorf("node %q has no exec", node.Name))
		}
		if node.Machine != "" && !machineNames[node.Machine] {
			errs = append(errs, fmt.Errorf("node %q references undeclared machine %q", node.Name, node.Machine))
		}
	}

	return errors.Join(errs...)
}
