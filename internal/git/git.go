// Package git wraps the git command-line client for the gitflow workflows.
//
// This package shells out to the git binary (via os/exec) for every
// operation. Design decisions:
//   - We invoke git rather than using a Go Git library (e.g., go-git) so that
//     hooks, credential helpers, signing configuration and the user's
//     gitflow.* settings behave exactly as they do in the user's terminal.
//   - Every command runs with `git -C <dir>`, so the process working
//     directory is never changed.
//   - All failures are returned as *CommandError, which wraps
//     model.ErrSubprocessFailure and carries git's stderr for diagnostics.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/shinji-kodama/gitflow/internal/model"
)

// DefaultExecutable is the git binary looked up on PATH.
const DefaultExecutable = "git"

// CommandError describes a git invocation that exited non-zero or could
// not be started.
type CommandError struct {
	// Args are the git arguments, without the leading -C <dir>.
	Args []string

	// Stderr is git's trimmed standard error output.
	Stderr string

	// ExitCode is the process exit status, or -1 if git never ran.
	ExitCode int

	// Err is the underlying os/exec error.
	Err error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s failed", strings.Join(e.Args, " "))
	if e.Stderr != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Stderr)
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the os/exec error and model.ErrSubprocessFailure,
// so callers can use errors.Is(err, model.ErrSubprocessFailure) as well
// as errors.As(err, &exitErr).
func (e *CommandError) Unwrap() []error {
	return []error{model.ErrSubprocessFailure, e.Err}
}

// Client runs git commands against one working repository.
//
// The zero value is not usable; construct with NewClient.
type Client struct {
	dir        string
	executable string
	log        zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithExecutable overrides the git binary (default "git" on PATH).
func WithExecutable(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.executable = path
		}
	}
}

// WithLogger sets the logger used to trace each git invocation at debug level.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// NewClient returns a Client operating on the repository at dir.
func NewClient(dir string, opts ...Option) *Client {
	c := &Client{
		dir:        dir,
		executable: DefaultExecutable,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dir returns the repository directory the client operates on.
func (c *Client) Dir() string {
	return c.dir
}

// Checkout switches the working tree to branchOrRef.
func (c *Client) Checkout(ctx context.Context, branchOrRef string) error {
	_, err := c.run(ctx, "checkout", branchOrRef)
	return err
}

// CheckoutNewBranch creates newName at fromRef and checks it out in a single
// `git checkout -b` call, so there is no moment at which the branch exists
// but is not the current branch.
func (c *Client) CheckoutNewBranch(ctx context.Context, newName, fromRef string) error {
	_, err := c.run(ctx, "checkout", "-b", newName, fromRef)
	return err
}

// ForEachRef returns the raw `git for-each-ref <pattern>` output. An empty
// string means no ref matched.
func (c *Client) ForEachRef(ctx context.Context, pattern string) (string, error) {
	return c.run(ctx, "for-each-ref", pattern)
}

// BranchExists reports whether a local branch named exactly name exists.
func (c *Client) BranchExists(ctx context.Context, name string) (bool, error) {
	out, err := c.ForEachRef(ctx, model.HeadsRef(name))
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// CommitAll commits every modified tracked file (`git commit -a -m`).
func (c *Client) CommitAll(ctx context.Context, message string) error {
	_, err := c.run(ctx, "commit", "-a", "-m", message)
	return err
}

// HasUncommittedChanges reports whether the working tree or the index differ
// from HEAD. Untracked files are ignored, as are submodule changes.
//
// git signals "differences found" with exit status 1 when --exit-code or
// --quiet is given; any other failure is returned as an error.
func (c *Client) HasUncommittedChanges(ctx context.Context) (bool, error) {
	unstaged, err := c.differs(ctx, "diff", "--no-ext-diff", "--ignore-submodules", "--quiet", "--exit-code")
	if err != nil || unstaged {
		return unstaged, err
	}
	return c.differs(ctx, "diff-index", "--cached", "--quiet", "--ignore-submodules", "HEAD", "--")
}

// CurrentBranch returns the short name of the checked-out branch, or "HEAD"
// when detached.
func (c *Client) CurrentBranch(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// RepoRoot returns the top-level directory of the working tree.
func (c *Client) RepoRoot(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// ConfigGet reads a single git config value. A key that is not set is not
// an error: ok is false and value is empty.
func (c *Client) ConfigGet(ctx context.Context, key string) (value string, ok bool, err error) {
	out, err := c.run(ctx, "config", "--get", key)
	if err != nil {
		// `git config --get` exits 1 when the key is missing.
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) && cmdErr.ExitCode == 1 {
			return "", false, nil
		}
		return "", false, err
	}
	return strings.TrimSpace(out), true, nil
}

// differs runs a quiet diff command and maps exit status 1 to true.
func (c *Client) differs(ctx context.Context, args ...string) (bool, error) {
	_, err := c.run(ctx, args...)
	if err == nil {
		return false, nil
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && cmdErr.ExitCode == 1 {
		return true, nil
	}
	return false, err
}

// run executes git with the given arguments in the client's directory and
// returns stdout.
func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	fullArgs := append([]string{"-C", c.dir}, args...)

	// #nosec G204 -- arguments are assembled by this package
	cmd := exec.CommandContext(ctx, c.executable, fullArgs...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.log.Debug().Strs("args", args).Str("dir", c.dir).Msg("git")

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return "", &CommandError{
			Args:     args,
			Stderr:   strings.TrimSpace(stderr.String()),
			ExitCode: exitCode,
			Err:      err,
		}
	}

	return stdout.String(), nil
}
