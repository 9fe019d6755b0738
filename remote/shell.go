// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import "strings"

// shellQuote makes s safe to embed in a remote shell command line.
// Shell-safe strings pass through untouched; everything else is
// single-quoted with embedded single quotes escaped as '\''.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if isShellSafe(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// isShellSafe reports whether s contains only characters that no
// POSIX shell interprets specially.
func isShellSafe(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case strings.ContainsRune("-_./:=@%+,", r):
		default:
			return false
		}
	}
	return true
}

// shellJoin quotes and joins argv into one command line.
func shellJoin(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		quoted[i] = shellQuote(arg)
	}
	return strings.Join(quoted, " ")
}
