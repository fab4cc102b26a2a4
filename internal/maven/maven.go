package maven

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/shinji-kodama/gitflow/internal/model"
)

// DefaultExecutable is the Maven binary looked up on PATH.
const DefaultExecutable = "mvn"

// VersionsSetGoal is the versions-maven-plugin goal that rewrites the
// project version in every pom.xml of the reactor.
const VersionsSetGoal = "org.codehaus.mojo:versions-maven-plugin:set"

// CommandError describes a Maven invocation that exited non-zero or could
// not be started.
type CommandError struct {
	// Args are the Maven arguments.
	Args []string

	// ExitCode is the process exit status, or -1 if Maven never ran.
	ExitCode int

	// Err is the underlying error.
	Err error
}

func (e *CommandError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("mvn %s failed with exit code %d", strings.Join(e.Args, " "), e.ExitCode)
	}
	return fmt.Sprintf("mvn %s failed: %v", strings.Join(e.Args, " "), e.Err)
}

// Unwrap exposes model.ErrSubprocessFailure and the underlying error.
func (e *CommandError) Unwrap() []error {
	return []error{model.ErrSubprocessFailure, e.Err}
}

// SetVersionArgs returns the arguments that set the project version to
// newVersion without leaving pom.xml.versionsBackup files behind.
func SetVersionArgs(extra []string, newVersion string) []string {
	return withExtra(extra, VersionsSetGoal, "-DnewVersion="+newVersion, "-DgenerateBackupPoms=false")
}

// CleanInstallArgs returns the arguments for a full clean-and-install build.
func CleanInstallArgs(extra []string) []string {
	return withExtra(extra, "clean", "install")
}

// withExtra prepends batch mode and the user-supplied arguments to goal
// arguments. Batch mode keeps Maven from prompting or drawing progress bars.
func withExtra(extra []string, goal ...string) []string {
	args := make([]string, 0, 1+len(extra)+len(goal))
	args = append(args, "-B")
	args = append(args, extra...)
	args = append(args, goal...)
	return args
}

// Client runs Maven goals in a project directory using a local mvn binary.
type Client struct {
	// Dir is the project directory (containing pom.xml).
	Dir string

	// Executable is the Maven binary. Empty means DefaultExecutable.
	Executable string

	// ExtraArgs are inserted before every goal (e.g. "-s", "settings.xml").
	ExtraArgs []string

	// Stdout and Stderr receive Maven's output. Nil discards it.
	Stdout io.Writer
	Stderr io.Writer

	// Log traces each invocation at debug level.
	Log zerolog.Logger
}

// NewClient returns a Client for the project in dir, discarding output
// and logs until configured otherwise.
func NewClient(dir string) *Client {
	return &Client{Dir: dir, Executable: DefaultExecutable, Log: zerolog.Nop()}
}

// SetVersion sets the project version to newVersion.
func (c *Client) SetVersion(ctx context.Context, newVersion string) error {
	return c.run(ctx, SetVersionArgs(c.ExtraArgs, newVersion))
}

// CleanInstall runs `mvn clean install`.
func (c *Client) CleanInstall(ctx context.Context) error {
	return c.run(ctx, CleanInstallArgs(c.ExtraArgs))
}

func (c *Client) run(ctx context.Context, args []string) error {
	exe := c.Executable
	if exe == "" {
		exe = DefaultExecutable
	}

	// #nosec G204 -- executable and arguments come from the operator's own config
	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Dir = c.Dir
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr

	c.Log.Debug().Str("mvn", exe).Strs("args", args).Str("dir", c.Dir).Msg("running build tool")

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return &CommandError{Args: args, ExitCode: exitCode, Err: err}
	}
	return nil
}
