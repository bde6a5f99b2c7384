// Package lock derives advisory lock keys for rooms.
package lock

import (
	"encoding/binary"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// Key returns a stable 64-bit key for resourceID within namespace. Equal
// inputs always yield the same key across processes and restarts.
func Key(namespace, resourceID string) int64 {
	sum := blake2b.Sum256([]byte(namespace + "\x00" + resourceID))
	return int64(binary.BigEndian.Uint64(sum[:8]))
}

// Keys returns the distinct keys for resourceIDs in ascending order. Taking
// locks in this order keeps concurrent multi-room commits deadlock free.
func Keys(namespace string, resourceIDs []string) []int64 {
	seen := make(map[int64]struct{}, len(resourceIDs))
	keys := make([]int64, 0, len(resourceIDs))
	for _, id := range resourceIDs {
		key := Key(namespace, id)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
