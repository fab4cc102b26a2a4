// Package cli implements the cobra-based CLI commands for gitflow.
//
// Each subcommand (hotfix-start, config) is defined in its own file within
// this package. This file defines the root command that serves as the
// parent for all subcommands and handles global flags, logging setup and
// the translation of errors into process exit codes.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/gitflow/internal/docker"
	"github.com/shinji-kodama/gitflow/internal/git"
	"github.com/shinji-kodama/gitflow/internal/hotfix"
	"github.com/shinji-kodama/gitflow/internal/logging"
	"github.com/shinji-kodama/gitflow/internal/maven"
	"github.com/shinji-kodama/gitflow/internal/model"
)

// Global flag variables shared across all subcommands.
// These are bound to cobra persistent flags on the root command,
// which makes them available to every subcommand automatically.
var (
	// jsonOutput switches command output (and error output) to JSON.
	jsonOutput bool

	// verbose lowers the log level to debug.
	verbose bool

	// configPath is an explicit config file; empty means discovery in the
	// repository root.
	configPath string

	// repoDir is the directory the command operates on (default: cwd).
	repoDir string
)

// logger is configured in the root command's PersistentPreRun and handed
// to every component that logs.
var logger = zerolog.Nop()

// Version, Commit and Date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
//
// The root command itself does not perform any action; it provides help
// text and global flags. Functionality lives in the subcommands.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gitflow",
		Short: "git-flow release workflows for Maven projects",
		Long: `gitflow drives git-flow style branching for Maven projects.

hotfix-start branches a hotfix off the production branch, sets the
project version on it and commits the change, optionally followed by
a clean install build.`,

		// SilenceUsage prevents cobra from printing usage on every error.
		// We handle error output ourselves for cleaner UX.
		SilenceUsage: true,

		// SilenceErrors prevents cobra from printing errors automatically.
		// We format errors ourselves (text or JSON based on --json flag).
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logger = logging.New(cmd.ErrOrStderr(), logging.ProfileRuntime, verbose)
		},
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: .gitflow.{yaml,yml,json,jsonc,toml} in the repository root)")
	rootCmd.PersistentFlags().StringVar(&repoDir, "dir", "", "Repository directory (default: current directory)")

	rootCmd.AddCommand(NewHotfixStartCommand())
	rootCmd.AddCommand(NewConfigCommand())

	return rootCmd
}

// Execute runs the root command and handles exit codes.
// This is the main entry point called from main.go.
func Execute(rootCmd *cobra.Command) {
	if err := rootCmd.Execute(); err != nil {
		code := ExitCodeFor(err)
		var cliErr *model.CLIError
		if errors.As(err, &cliErr) {
			printError(os.Stderr, cliErr.Message, cliErr.Err)
		} else {
			printError(os.Stderr, err.Error(), nil)
		}
		os.Exit(int(code))
	}
}

// ExitCodeFor maps an error returned by a command to its process exit code.
// CLIError values carry their own code; workflow and subprocess errors are
// classified by type.
func ExitCodeFor(err error) model.ExitCode {
	if err == nil {
		return model.ExitSuccess
	}

	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		return cliErr.Code
	}

	var (
		gitErr   *git.CommandError
		mvnErr   *maven.CommandError
		buildErr *docker.BuildError
	)
	switch {
	case errors.Is(err, hotfix.ErrUncommittedChanges):
		return model.ExitUncommittedChanges
	case errors.Is(err, hotfix.ErrDuplicateBranch):
		return model.ExitBranchExists
	case errors.As(err, &gitErr):
		return model.ExitGitError
	case errors.As(err, &mvnErr), errors.As(err, &buildErr):
		return model.ExitBuildError
	default:
		return model.ExitGeneralError
	}
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json global flag.
func printError(w io.Writer, message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"message": message,
		}
		if underlying != nil {
			errObj["detail"] = underlying.Error()
		}
		// stdout is reserved for successful command output, so errors go
		// to stderr even in JSON mode.
		data, _ := json.MarshalIndent(map[string]interface{}{"error": errObj}, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}

	if underlying != nil {
		fmt.Fprintf(w, "Error: %s: %v\n", message, underlying)
	} else {
		fmt.Fprintf(w, "Error: %s\n", message)
	}
}

// VerboseLog emits a debug message through the configured logger. It is
// silent unless --verbose or GITFLOW_LOG_LEVEL enables debug output.
func VerboseLog(format string, args ...interface{}) {
	logger.Debug().Msgf(format, args...)
}

// IsJSONOutput returns whether the --json flag is set.
// Subcommands use this to decide their output format.
func IsJSONOutput() bool {
	return jsonOutput
}
