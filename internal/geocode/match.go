package geocode

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// FuzzyCutoff is the minimum normalized similarity for a fuzzy table match.
// 0.75 reliably catches one to two character typos in city names.
const FuzzyCutoff = 0.75

// Similarity returns a normalized edit-distance score in [0,1]; 1 means the
// strings are equal. Comparison is case-insensitive.
func Similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// ClosestKey returns the key most similar to name among keys, provided its
// similarity reaches cutoff. Ties resolve to the lexicographically smallest
// key for determinism.
func ClosestKey(name string, keys []string, cutoff float64) (string, bool) {
	best := ""
	bestScore := 0.0
	for _, k := range keys {
		score := Similarity(name, k)
		if score > bestScore || (score == bestScore && best != "" && k < best) {
			best = k
			bestScore = score
		}
	}
	if bestScore >= cutoff {
		return best, true
	}
	return "", false
}
