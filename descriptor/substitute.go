// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package descriptor

import (
	"fmt"
	"os"
	"strings"
)

// subContext carries the state substitution needs: the resolved
// argument values visible in the current file and the directory of
// the file being parsed (for $(dirname)).
type subContext struct {
	args map[string]string
	dir  string
}

// substitute expands every $(verb ...) occurrence in value. Verbs:
// arg, env, optenv, dirname. Unknown verbs and malformed expressions
// are errors — silent pass-through would hide typos in descriptors.
func substitute(value string, ctx *subContext) (string, error) {
	if !strings.Contains(value, "$(") {
		return value, nil
	}

	var out strings.Builder
	rest := value
	for {
		start := strings.Index(rest, "$(")
		if start < 0 {
			out.WriteString(rest)
			return out.String(), nil
		}
		out.WriteString(rest[:start])
		rest = rest[start+2:]

		end := strings.IndexByte(rest, ')')
		if end < 0 {
			return "", fmt.Errorf("unterminated substitution in %q", value)
		}
		expression := rest[:end]
		rest = rest[end+1:]

		expanded, err := evalSubstitution(expression, ctx)
		if err != nil {
			return "", fmt.Errorf("in %q: %w", value, err)
		}
		out.WriteString(expanded)
	}
}

// evalSubstitution evaluates a single verb expression (the text
// between "$(" and ")").
func evalSubstitution(expression string, ctx *subContext) (string, error) {
	fields := strings.Fields(expression)
	if len(fields) == 0 {
		return "", fmt.Errorf("empty substitution $()")
	}

	verb, operands := fields[0], fields[1:]
	switch verb {
	case "arg":
		if len(operands) != 1 {
			return "", fmt.Errorf("$(arg) takes exactly one name, got %q", expression)
		}
		value, ok := ctx.args[operands[0]]
		if !ok {
			return "", fmt.Errorf("$(arg %s) references an undeclared argument", operands[0])
		}
		return value, nil

	case "env":
		if len(operands) != 1 {
			return "", fmt.Errorf("$(env) takes exactly one name, got %q", expression)
		}
		value, ok := os.LookupEnv(operands[0])
		if !ok {
			return "", fmt.Errorf("$(env %s): environment variable is not set", operands[0])
		}
		return value, nil

	case "optenv":
		if len(operands) < 1 {
			return "", fmt.Errorf("$(optenv) needs a name, got %q", expression)
		}
		if value, ok := os.LookupEnv(operands[0]); ok {
			return value, nil
		}
		// Remaining operands form the default, joined by single
		// spaces (whitespace runs in the expression are collapsed).
		return strings.Join(operands[1:], " "), nil

	case "dirname":
		if len(operands) != 0 {
			return "", fmt.Errorf("$(dirname) takes no operands, got %q", expression)
		}
		return ctx.dir, nil

	default:
		return "", fmt.Errorf("unknown substitution verb $(%s)", verb)
	}
}

// splitArgs splits a node's args attribute into argv fields,
// honoring single and double quotes so an argument can contain
// spaces. Quotes are stripped; there is no escape syntax — values
// needing literal quotes should use separate XML attributes.
func splitArgs(raw string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		quote   byte
		inField bool
	)

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			} else {
				current.WriteByte(c)
			}
		case c == '\'' || c == '"':
			quote = c
			inField = true
		case c == ' ' || c == '\t' || c == '\n':
			if inField {
				args = append(args, current.String())
				current.Reset()
				inField = false
			}
		default:
			current.WriteByte(c)
			inField = true
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote in args %q", raw)
	}
	if inField {
		args = append(args, current.String())
	}
	return args, nil
}
