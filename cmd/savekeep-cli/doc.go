// Package main provides the entry point for savekeep-cli.
//
// savekeep-cli lists, inspects and maintains the save slots of a game
// installation, and can run an end-to-end save and load against a demo
// world to check a save directory.
package main
