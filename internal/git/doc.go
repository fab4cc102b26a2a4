// Package git provides the version-control operations used by the gitflow
// CLI.
//
// All Git operations are performed via os/exec calls to the git binary,
// rather than using a Git library like go-git. This approach:
//   - Avoids CGO dependencies (libgit2)
//   - Uses the exact same Git behavior the user sees in their terminal
//   - Picks up repository-local gitflow.* configuration for free
//
// The Client type provides checkout, branch creation, ref lookup, commit,
// dirty-tree detection and config reads.
package git
