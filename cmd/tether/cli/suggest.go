// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"

	"github.com/spf13/pflag"
)

// maxSuggestionDistance is the largest edit distance still offered as
// a "did you mean" suggestion.
const maxSuggestionDistance = 3

// closest returns the candidate nearest to input by edit distance, or
// "" when none is within maxSuggestionDistance. Ties go to the earlier
// candidate.
func closest(input string, candidates []string) string {
	best, bestDistance := "", maxSuggestionDistance+1
	for _, candidate := range candidates {
		if distance := levenshtein(input, candidate); distance < bestDistance {
			best, bestDistance = candidate, distance
		}
	}
	return best
}

// suggestFlag finds the first long flag in args that flagSet does not
// define and returns the nearest defined flag as "--name".
func suggestFlag(args []string, flagSet *pflag.FlagSet) string {
	var defined []string
	flagSet.VisitAll(func(flag *pflag.Flag) {
		defined = append(defined, flag.Name)
	})

	for _, arg := range args {
		if arg == "--" {
			return ""
		}
		name, ok := strings.CutPrefix(arg, "--")
		if !ok {
			continue
		}
		name, _, _ = strings.Cut(name, "=")
		if flagSet.Lookup(name) != nil {
			continue
		}
		if suggestion := closest(name, defined); suggestion != "" {
			return "--" + suggestion
		}
		return ""
	}
	return ""
}

// levenshtein is the edit distance between a and b, counted in runes.
func levenshtein(a, b string) int {
	source, target := []rune(a), []rune(b)
	if len(source) > len(target) {
		source, target = target, source
	}

	row := make([]int, len(source)+1)
	for i := range row {
		row[i] = i
	}
	for j, targetRune := range target {
		diagonal := row[0]
		row[0] = j + 1
		for i, sourceRune := range source {
			substitution := diagonal
			if sourceRune != targetRune {
				substitution++
			}
			diagonal = row[i+1]
			row[i+1] = min(row[i+1]+1, row[i]+1, substitution)
		}
	}
	return row[len(source)]
}
