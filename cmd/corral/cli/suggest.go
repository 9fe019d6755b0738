// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package cli

// closest returns the subcommand name nearest to the unknown input,
// or "" when nothing is within edit distance 3 (the range that covers
// ordinary typos).
func closest(unknown string, commands []*Command) string {
	best := ""
	bestDistance := 4
	for _, command := range commands {
		if d := editDistance(unknown, command.Name); d < bestDistance {
			bestDistance = d
			best = command.Name
		}
	}
	return best
}

// editDistance is the Levenshtein distance between a and b, computed
// with a single reused row.
func editDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	if len(a) > len(b) {
		a, b = b, a
	}

	row := make([]int, len(a)+1)
	for i := range row {
		row[i] = i
	}

	for j := 1; j <= len(b); j++ {
		previousDiagonal := row[0]
		row[0] = j
		for i := 1; i <= len(a); i++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			next := min(row[i]+1, row[i-1]+1, previousDiagonal+cost)
			previousDiagonal = row[i]
			row[i] = next
		}
	}
	return row[len(a)]
}
