package utils

import "hash/fnv"

// HashStringToUint64 returns a stable FNV-1a hash of s. Used where a
// deterministic pseudo-random selection is needed (e.g. the mock analyzer).
func HashStringToUint64(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
