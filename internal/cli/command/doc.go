// Package command provides the savekeep-cli commands.
//
// This package defines all CLI commands using urfave/cli/v2:
//
//   - root.go: App, global flags, config loading
//   - slots.go: slot listing, inspection and maintenance
//   - watch.go: live view of the save directory
//   - selftest.go: end-to-end save and load against a seeded world
//   - version.go: build information
//
// Commands resolve their environment through the Before hook, do their
// work against the slot catalog or the orchestrator, and print a view
// through the selected output formatter.
package command
