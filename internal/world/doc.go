// Package world is a headless, in-memory game world that implements every
// subsystem contract of the save/load pipeline.
//
// It backs the CLI self-test and the pipeline tests. All methods are safe
// for concurrent use.
package world
