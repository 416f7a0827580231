// Package domain defines the persisted game-state model for SaveKeep.
//
// Domain models are plain values without IO dependencies. This package
// contains:
//
//   - Snapshot: the aggregate record persisted to one slot
//   - Fragments: the per-subsystem portions of a Snapshot
//   - SaveMetadata: the lightweight projection used by slot listings
//   - SlotIndex: slot addressing and file naming
//   - Errors: the error taxonomy shared by every pipeline stage
//
// Fragments own all of their data by value. No fragment points into
// another, so any fragment can be captured or applied on its own.
package domain
