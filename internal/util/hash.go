package util

import (
	"fmt"
	"hash/fnv"
)

// FNV64 returns the FNV-1a 64 hash of s as 16 hex characters.
func FNV64(s string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return fmt.Sprintf("%016x", h.Sum64())
}
