// Package cmap provides a concurrent map sharded by a murmur3 hash of the
// key.
//
// Usage:
//
//	m := cmap.New[int, *Operation]()
//	if !m.SetIfAbsent(3, op) {
//		// slot 3 is taken
//	}
//	defer m.Delete(3)
//
// All operations are safe for concurrent use. Reads take a shard read lock,
// writes a shard write lock.
package cmap
