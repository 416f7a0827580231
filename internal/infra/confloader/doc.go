// Package confloader loads layered configuration with koanf.
//
// Priority (highest to lowest):
//
//  1. Command-line flags (LoadMap)
//  2. Environment variables (SAVEKEEP_SECTION__KEY)
//  3. YAML configuration file
//  4. Default values already present in the target struct
package confloader
