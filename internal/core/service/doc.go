// Package service implements the save/load pipeline.
//
// This package contains:
//
//   - Collaborators: the read/write contracts of each gameplay subsystem
//   - Aggregator: captures live subsystem state into a Snapshot
//   - Director: writes a decoded Snapshot back into live subsystems
//   - Orchestrator: sequences a full save or load, reports progress and
//     rejects a second operation on a slot that is already busy
//   - LoopExecutor: runs in-memory steps on the game loop between ticks
//
// Subsystems are injected through Collaborators; any of them may be nil
// while the game is still starting up.
package service
