// Package docker runs Maven goals inside Docker containers for the gitflow
// CLI.
//
// This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows)
//   - Build container lifecycle: image pull, create, start, log streaming,
//     wait and removal
//   - Labels that mark gitflow build containers so leftovers from an
//     interrupted run can be found and removed
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with version negotiation enabled for broad compatibility.
package docker
