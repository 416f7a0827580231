// Package config defines the savekeep configuration structure.
//
// Configuration is layered by confloader: defaults, then an optional YAML
// file, then SAVEKEEP_ environment variables, then command-line flags.
package config
