// Package model defines the domain types and value objects for the
// gitflow CLI.
//
// This package contains pure data structures with no external dependencies:
// the workflow state machine (WorkflowState), branch naming helpers, the
// shared ErrSubprocessFailure sentinel, and the exit codes (ExitCode) and
// error type (CLIError) used for process exit handling.
package model
