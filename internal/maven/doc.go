// Package maven provides the build-tool operations used by the gitflow
// workflows: setting the project version and running a clean install.
//
// Maven is driven through its command line; no Maven internals are linked.
// The same argument builders serve the local Client in this package and the
// container runner in internal/docker.
package maven
