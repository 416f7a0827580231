// Package buildinfo exposes the build version, which is also the default
// game version stamped into saves.
//
// Values are injected at build time:
//
//	go build -ldflags "-X github.com/yndnr/savekeep-go/internal/infra/buildinfo.Version=v1.2.0"
//
// Without ldflags the module version and VCS revision recorded by the Go
// toolchain are used when available.
package buildinfo
