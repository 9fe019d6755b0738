// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package descriptor

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Raw XML shapes. These mirror the document structure; all semantics
// (substitution, conditions, includes) are applied when converting to
// the public types.

type xmlLaunch struct {
	XMLName  xml.Name     `xml:"launch"`
	Args     []xmlArg     `xml:"arg"`
	Machines []xmlMachine `xml:"machine"`
	Nodes    []xmlNode    `xml:"node"`
	Includes []xmlInclude `xml:"include"`
}

type xmlArg struct {
	Name    string `xml:"name,attr"`
	Default string `xml:"default,attr"`
	Value   string `xml:"value,attr"`
	Doc     string `xml:"doc,attr"`
}

type xmlMachine struct {
	Name      string `xml:"name,attr"`
	Address   string `xml:"address,attr"`
	User      string `xml:"user,attr"`
	Port      string `xml:"port,attr"`
	EnvLoader string `xml:"env-loader,attr"`
	Default   string `xml:"default,attr"`
	Timeout   string `xml:"timeout,attr"`
}

type xmlNode struct {
	Name         string   `xml:"name,attr"`
	Pkg          string   `xml:"pkg,attr"`
	Exec         string   `xml:"exec,attr"`
	Args         string   `xml:"args,attr"`
	Machine      string   `xml:"machine,attr"`
	CWD          string   `xml:"cwd,attr"`
	Output       string   `xml:"output,attr"`
	Respawn      string   `xml:"respawn,attr"`
	RespawnDelay string   `xml:"respawn_delay,attr"`
	Required     string   `xml:"required,attr"`
	If           string   `xml:"if,attr"`
	Unless       string   `xml:"unless,attr"`
	Env          []xmlEnv `xml:"env"`
}

type xmlEnv struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type xmlInclude struct {
	File   string   `xml:"file,attr"`
	If     string   `xml:"if,attr"`
	Unless string   `xml:"unless,attr"`
	Args   []xmlArg `xml:"arg"`
}

// parser tracks include recursion across files.
type parser struct {
	// visiting holds the absolute paths of descriptor files currently
	// being resolved, for include cycle detection.
	visiting map[string]bool
}

// ParseFile reads, resolves, and validates the launch descriptor at
// path. overrides supplies caller values for top-level arguments
// (corral-launcher's --arg name=value flags); overriding an
// undeclared argument is an error.
func ParseFile(path string, overrides map[string]string) (*Descriptor, error) {
	absolute, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving descriptor path %s: %w", path, err)
	}

	p := &parser{visiting: make(map[string]bool)}
	machines, nodes, args, err := p.parseOne(absolute, overrides, true)
	if err != nil {
		return nil, err
	}

	d := &Descriptor{
		Path:     absolute,
		Args:     args,
		Machines: machines,
		Nodes:    nodes,
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Parse resolves a descriptor from memory. dir stands in for the
// file's directory in $(dirname) and include resolution. Used by
// tests and by offline validation of unsaved buffers.
func Parse(data []byte, dir string, overrides map[string]string) (*Descriptor, error) {
	p := &parser{visiting: make(map[string]bool)}
	machines, nodes, args, err := p.parseData(data, dir, "<memory>", overrides, true)
	if err != nil {
		return nil, err
	}

	d := &Descriptor{
		Path:     "<memory>",
		Args:     args,
		Machines: machines,
		Nodes:    nodes,
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// parseOne loads and resolves a single descriptor file. topLevel
// distinguishes the root file (whose unknown overrides are errors and
// whose args are reported) from included files (which see only the
// args their include element passes).
func (p *parser) parseOne(path string, argValues map[string]string, topLevel bool) ([]Machine, []Node, []Arg, error) {
	if p.visiting[path] {
		return nil, nil, nil, fmt.Errorf("include cycle: %s is already being resolved", path)
	}
	p.visiting[path] = true
	defer delete(p.visiting, path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("reading descriptor: %w", err)
	}

	return p.parseData(data, filepath.Dir(path), path, argValues, topLevel)
}

// parseData resolves descriptor XML. dir is the directory used for
// $(dirname) and relative includes; name identifies the source in
// errors.
func (p *parser) parseData(data []byte, dir, name string, argValues map[string]string, topLevel bool) ([]Machine, []Node, []Arg, error) {
	var raw xmlLaunch
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, nil, nil, fmt.Errorf("parsing %s: %w", name, err)
	}

	ctx := &subContext{args: make(map[string]string), dir: dir}

	// Resolve argument declarations in order, so a default may refer
	// to arguments declared above it.
	args := make([]Arg, 0, len(raw.Args))
	for _, declaration := range raw.Args {
		if declaration.Name == "" {
			return nil, nil, nil, fmt.Errorf("%s: arg element missing name", name)
		}
		if _, exists := ctx.args[declaration.Name]; exists {
			return nil, nil, nil, fmt.Errorf("%s: duplicate arg %q", name, declaration.Name)
		}
		if declaration.Default != "" && declaration.Value != "" {
			return nil, nil, nil, fmt.Errorf("%s: arg %q sets both default and value", name, declaration.Name)
		}

		resolved, supplied := argValues[declaration.Name]
		switch {
		case declaration.Value != "":
			// A fixed value cannot be overridden: the descriptor
			// author pinned it.
			if supplied {
				return nil, nil, nil, fmt.Errorf("%s: arg %q has a fixed value and cannot be overridden", name, declaration.Name)
			}
			value, err := substitute(declaration.Value, ctx)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("%s: arg %q: %w", name, declaration.Name, err)
			}
			resolved = value
		case supplied:
			// Caller override wins over the default.
		case declaration.Default != "" || hasDefaultAttr(data, declaration.Name):
			value, err := substitute(declaration.Default, ctx)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("%s: arg %q: %w", name, declaration.Name, err)
			}
			resolved = value
		default:
			return nil, nil, nil, fmt.Errorf("%s: arg %q has no default and no supplied value", name, declaration.Name)
		}

		ctx.args[declaration.Name] = resolved
		args = append(args, Arg{
			Name:    declaration.Name,
			Default: declaration.Default,
			Value:   resolved,
			Doc:     declaration.Doc,
		})
	}

	if topLevel {
		for argName := range argValues {
			if _, declared := ctx.args[argName]; !declared {
				return nil, nil, nil, fmt.Errorf("%s: override for undeclared argument %q", name, argName)
			}
		}
	}

	machines, err := p.resolveMachines(raw.Machines, ctx, name)
	if err != nil {
		return nil, nil, nil, err
	}

	nodes, err := p.resolveNodes(raw.Nodes, ctx, name)
	if err != nil {
		return nil, nil, nil, err
	}

	for _, include := range raw.Includes {
		includedMachines, includedNodes, err := p.resolveInclude(include, ctx, dir, name)
		if err != nil {
			return nil, nil, nil, err
		}
		machines = append(machines, includedMachines...)
		nodes = append(nodes, includedNodes...)
	}

	return machines, nodes, args, nil
}

// hasDefaultAttr reports whether the arg element for argName carries
// an explicit default attribute, even an empty one. encoding/xml
// cannot distinguish default="" from a missing attribute, and the
// distinction matters: default="" declares an optional argument whose
// default is the empty string (the descriptor's user argument works
// this way), while a missing default makes the argument mandatory.
func hasDefaultAttr(data []byte, argName string) bool {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	depth := 0
	for {
		token, err := decoder.Token()
		if err != nil {
			return false
		}
		switch element := token.(type) {
		case xml.EndElement:
			depth--
		case xml.StartElement:
			depth++
			// Only direct children of <launch>; args nested inside
			// <include> belong to the included file's namespace.
			if depth != 2 || element.Name.Local != "arg" {
				continue
			}
			var matches, hasDefault bool
			for _, attr := range element.Attr {
				if attr.Name.Local == "name" && attr.Value == argName {
					matches = true
				}
				if attr.Name.Local == "default" {
					hasDefault = true
				}
			}
			if matches {
				return hasDefault
			}
		}
	}
}

// resolveMachines applies substitution and attribute parsing to
// machine declarations.
func (p *parser) resolveMachines(raw []xmlMachine, ctx *subContext, source string) ([]Machine, error) {
	machines := make([]Machine, 0, len(raw))
	for _, declaration := range raw {
		if declaration.Name == "" {
			return nil, fmt.Errorf("%s: machine element missing name", source)
		}

		machine := Machine{Name: declaration.Name}
		var err error
		if machine.Address, err = substitute(declaration.Address, ctx); err != nil {
			return nil, fmt.Errorf("%s: machine %q address: %w", source, declaration.Name, err)
		}
		if machine.User, err = substitute(declaration.User, ctx); err != nil {
			return nil, fmt.Errorf("%s: machine %q user: %w", source, declaration.Name, err)
		}
		if machine.EnvLoader, err = substitute(declaration.EnvLoader, ctx); err != nil {
			return nil, fmt.Errorf("%s: machine %q env-loader: %w", source, declaration.Name, err)
		}

		if declaration.Port != "" {
			port, err := substituteInt(declaration.Port, ctx)
			if err != nil {
				return nil, fmt.Errorf("%s: machine %q port: %w", source, declaration.Name, err)
			}
			machine.Port = port
		}
		if declaration.Default != "" {
			isDefault, err := substituteBool(declaration.Default, ctx)
			if err != nil {
				return nil, fmt.Errorf("%s: machine %q default: %w", source, declaration.Name, err)
			}
			machine.Default = isDefault
		}
		if declaration.Timeout != "" {
			timeout, err := substituteDuration(declaration.Timeout, ctx)
			if err != nil {
				return nil, fmt.Errorf("%s: machine %q timeout: %w", source, declaration.Name, err)
			}
			machine.Timeout = timeout
		}

		machines = append(machines, machine)
	}
	return machines, nil
}

// resolveNodes applies substitution, conditions, and attribute
// parsing to node directives.
func (p *parser) resolveNodes(raw []xmlNode, ctx *subContext, source string) ([]Node, error) {
	nodes := make([]Node, 0, len(raw))
	for _, directive := range raw {
		if directive.Name == "" {
			return nil, fmt.Errorf("%s: node element missing name", source)
		}

		enabled, err := evalCondition(directive.If, directive.Unless, ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: node %q: %w", source, directive.Name, err)
		}

		node := Node{Name: directive.Name, Pkg: directive.Pkg, Disabled: !enabled}
		if node.Exec, err = substitute(directive.Exec, ctx); err != nil {
			return nil, fmt.Errorf("%s: node %q exec: %w", source, directive.Name, err)
		}
		if node.Machine, err = substitute(directive.Machine, ctx); err != nil {
			return nil, fmt.Errorf("%s: node %q machine: %w", source, directive.Name, err)
		}
		if node.CWD, err = substitute(directive.CWD, ctx); err != nil {
			return nil, fmt.Errorf("%s: node %q cwd: %w", source, directive.Name, err)
		}

		rawArgs, err := substitute(directive.Args, ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: node %q args: %w", source, directive.Name, err)
		}
		if node.Args, err = splitArgs(rawArgs); err != nil {
			return nil, fmt.Errorf("%s: node %q args: %w", source, directive.Name, err)
		}

		switch directive.Output {
		case "":
			node.Output = "log"
		case "log", "screen":
			node.Output = directive.Output
		default:
			return nil, fmt.Errorf("%s: node %q output must be \"log\" or \"screen\", got %q", source, directive.Name, directive.Output)
		}

		if directive.Respawn != "" {
			if node.Respawn, err = substituteBool(directive.Respawn, ctx); err != nil {
				return nil, fmt.Errorf("%s: node %q respawn: %w", source, directive.Name, err)
			}
		}
		if directive.RespawnDelay != "" {
			if node.RespawnDelay, err = substituteDuration(directive.RespawnDelay, ctx); err != nil {
				return nil, fmt.Errorf("%s: node %q respawn_delay: %w", source, directive.Name, err)
			}
		}
		if directive.Required != "" {
			if node.Required, err = substituteBool(directive.Required, ctx); err != nil {
				return nil, fmt.Errorf("%s: node %q required: %w", source, directive.Name, err)
			}
		}
		if node.Respawn && node.Required {
			return nil, fmt.Errorf("%s: node %q cannot be both respawn and required", source, directive.Name)
		}

		if len(directive.Env) > 0 {
			node.Env = make(map[string]string, len(directive.Env))
			for _, env := range directive.Env {
				if env.Name == "" {
					return nil, fmt.Errorf("%s: node %q has an env element missing name", source, directive.Name)
				}
				value, err := substitute(env.Value, ctx)
				if err != nil {
					return nil, fmt.Errorf("%s: node %q env %s: %w", source, directive.Name, env.Name, err)
				}
				node.Env[env.Name] = value
			}
		}

		nodes = append(nodes, node)
	}
	return nodes, nil
}

// resolveInclude loads an included descriptor. The included file sees
// only the arguments the include element passes — there is no
// implicit inheritance of the parent's argument namespace.
func (p *parser) resolveInclude(include xmlInclude, ctx *subContext, dir, source string) ([]Machine, []Node, error) {
	enabled, err := evalCondition(include.If, include.Unless, ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: include: %w", source, err)
	}
	if !enabled {
		return nil, nil, nil
	}

	file, err := substitute(include.File, ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: include file: %w", source, err)
	}
	if file == "" {
		return nil, nil, fmt.Errorf("%s: include element missing file", source)
	}
	if !filepath.IsAbs(file) {
		file = filepath.Join(dir, file)
	}
	file = filepath.Clean(file)

	passed := make(map[string]string, len(include.Args))
	for _, arg := range include.Args {
		if arg.Name == "" {
			return nil, nil, fmt.Errorf("%s: include %s passes an arg with no name", source, file)
		}
		value, err := substitute(arg.Value, ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: include %s arg %q: %w", source, file, arg.Name, err)
		}
		passed[arg.Name] = value
	}

	machines, nodes, _, err := p.parseOne(file, passed, false)
	if err != nil {
		return nil, nil, fmt.Errorf("include %s: %w", file, err)
	}
	return machines, nodes, nil
}

// evalCondition evaluates optional if/unless attributes. Both absent
// means enabled. Setting both on one element is an error.
func evalCondition(ifAttr, unlessAttr string, ctx *subContext) (bool, error) {
	if ifAttr != "" && unlessAttr != "" {
		return false, fmt.Errorf("if and unless are mutually exclusive")
	}
	if ifAttr != "" {
		value, err := substituteBool(ifAttr, ctx)
		if err != nil {
			return false, fmt.Errorf("if: %w", err)
		}
		return value, nil
	}
	if unlessAttr != "" {
		value, err := substituteBool(unlessAttr, ctx)
		if err != nil {
			return false, fmt.Errorf("unless: %w", err)
		}
		return !value, nil
	}
	return true, nil
}

// substituteBool expands substitutions and parses the result as a
// boolean ("true"/"1"/"false"/"0").
func substituteBool(raw string, ctx *subContext) (bool, error) {
	value, err := substitute(raw, ctx)
	if err != nil {
		return false, err
	}
	switch value {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("%q is not a boolean", value)
}

// substituteInt expands substitutions and parses the result as an int.
func substituteInt(raw string, ctx *subContext) (int, error) {
	value, err := substitute(raw, ctx)
	if err != nil {
		return 0, err
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", value)
	}
	return parsed, nil
}

// substituteDuration expands substitutions and parses the result as a
// Go duration string ("2s", "500ms").
func substituteDuration(raw string, ctx *subContext) (time.Duration, error) {
	value, err := substitute(raw, ctx)
	if err != nil {
		return 0, err
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%q is not a duration: %w", value, err)
	}
	return parsed, nil
}
