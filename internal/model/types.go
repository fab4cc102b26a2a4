// Package model defines the domain types for the gitflow CLI.
//
// The types in this package are shared between the workflow orchestrator
// and the CLI layer. They are transient values: the only durable state a
// gitflow command produces lives in the Git repository it operates on
// (branches and commits), never in files owned by this tool.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// WorkflowState names a point in the hotfix-start sequence. The states are
// strictly linear:
//
//	Start → ProductionBranchChecked → VersionDetermined → BranchNameValidated
//	      → BranchCreated → MetadataUpdated → Committed → (Built) → Done
//
// A validation failure moves directly to Aborted from whichever state
// was current when it was detected.
type WorkflowState string

const (
	// StateStart is the state before any repository command has been issued.
	StateStart WorkflowState = "start"

	// StateProductionBranchChecked means the production branch is checked out.
	StateProductionBranchChecked WorkflowState = "production-branch-checked"

	// StateVersionDetermined means the hotfix version has been chosen.
	StateVersionDetermined WorkflowState = "version-determined"

	// StateBranchNameValidated means no branch with the target name exists.
	StateBranchNameValidated WorkflowState = "branch-name-validated"

	// StateBranchCreated means the hotfix branch exists and is checked out.
	StateBranchCreated WorkflowState = "branch-created"

	// StateMetadataUpdated means the project descriptor carries the new version.
	StateMetadataUpdated WorkflowState = "metadata-updated"

	// StateCommitted means the descriptor change has been committed.
	StateCommitted WorkflowState = "committed"

	// StateBuilt means the optional clean-install build succeeded.
	StateBuilt WorkflowState = "built"

	// StateDone is the terminal success state.
	StateDone WorkflowState = "done"

	// StateAborted is the terminal state for validation failures.
	StateAborted WorkflowState = "aborted"
)

// String satisfies fmt.Stringer.
func (s WorkflowState) String() string {
	return string(s)
}

// IsValid reports whether s is one of the defined workflow states.
func (s WorkflowState) IsValid() bool {
	switch s {
	case StateStart, StateProductionBranchChecked, StateVersionDetermined,
		StateBranchNameValidated, StateBranchCreated, StateMetadataUpdated,
		StateCommitted, StateBuilt, StateDone, StateAborted:
		return true
	default:
		return false
	}
}

// HasSideEffects reports whether the repository may have been modified
// (a branch or a commit created) once the workflow reached state s.
// Checking out the production branch does not count: it changes the
// working tree but creates nothing.
func (s WorkflowState) HasSideEffects() bool {
	switch s {
	case StateBranchCreated, StateMetadataUpdated, StateCommitted, StateBuilt, StateDone:
		return true
	default:
		return false
	}
}

// BranchName derives the name of a flow branch from its prefix and version.
// The result is a plain concatenation; "hotfix/" + "1.2.1" is "hotfix/1.2.1".
func BranchName(prefix, version string) string {
	return prefix + version
}

// HeadsRef returns the fully qualified ref for a local branch name,
// e.g. "refs/heads/hotfix/1.2.1".
func HeadsRef(branch string) string {
	return "refs/heads/" + strings.TrimPrefix(branch, "refs/heads/")
}

// ErrSubprocessFailure is wrapped by every error that originates from an
// external command (git, mvn, or a build container) exiting non-zero or
// failing to launch.
var ErrSubprocessFailure = errors.New("external command failed")

// ExitCode defines the process exit codes of the gitflow CLI.
// Scripts can rely on these values to tell apart the two user-facing
// validation failures from infrastructure problems.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitUncommittedChanges indicates the working tree was dirty at start.
	ExitUncommittedChanges ExitCode = 2

	// ExitBranchExists indicates the target flow branch already exists.
	ExitBranchExists ExitCode = 3

	// ExitGitError indicates a git command failed.
	ExitGitError ExitCode = 4

	// ExitBuildError indicates a build-tool command failed.
	ExitBuildError ExitCode = 5

	// ExitConfigError indicates the configuration could not be loaded or is invalid.
	ExitConfigError ExitCode = 6

	// ExitDockerNotRunning indicates the Docker daemon is not accessible
	// while a containerised build was requested.
	ExitDockerNotRunning ExitCode = 7
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error returns the message, followed by the underlying error when present.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
