package internal

import (
	"sort"
	"strings"
)

// MaxSuggestions bounds the did-you-mean candidates attached to errors
const MaxSuggestions = 3

// FindSimilarStrings returns up to maxSuggestions candidates close to
// target by Levenshtein distance, closest first. Ties keep candidate order.
func FindSimilarStrings(target string, candidates []string, maxSuggestions int) []string {
	if len(candidates) == 0 || maxSuggestions <= 0 {
		return nil
	}

	maxDistance := max(len(target)/2, 2)

	type scored struct {
		str      string
		distance int
	}

	var similar []scored
	targetLower := strings.ToLower(target)
	for _, candidate := range candidates {
		dist := levenshteinDistance(targetLower, strings.ToLower(candidate))
		if dist <= maxDistance {
			similar = append(similar, scored{str: candidate, distance: dist})
		}
	}
	sort.SliceStable(similar, func(i, j int) bool { return similar[i].distance < similar[j].distance })

	result := make([]string, 0, maxSuggestions)
	for i := 0; i < len(similar) && i < maxSuggestions; i++ {
		result = append(result, similar[i].str)
	}
	return result
}

// levenshteinDistance is the minimum number of single-byte edits turning
// a into b.
func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// FormatSuggestions renders suggestions as a message suffix, for example
// " Did you mean 'lower' or 'lowerfirst'?".
func FormatSuggestions(suggestions []string) string {
	if len(suggestions) == 0 {
		return ""
	}
	return " Did you mean " + joinQuoted(suggestions, "or") + "?"
}
