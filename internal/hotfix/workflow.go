// Package hotfix implements the hotfix-start workflow: branch a hotfix off
// the production branch, bump the project version on it and commit.
//
// The workflow is a fixed, strictly sequential list of steps executed once.
// There is no retry and no rollback: when a step fails after the hotfix
// branch was created, the branch (and possibly the commit) stay in the
// repository and the returned StepError says how far the run got.
package hotfix

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/shinji-kodama/gitflow/internal/model"
	"github.com/shinji-kodama/gitflow/internal/prompt"
	"github.com/shinji-kodama/gitflow/internal/version"
)

// DefaultCommitMessage is the message of the version-bump commit.
const DefaultCommitMessage = "updating poms for hotfix"

// VersionControl is the subset of repository operations the workflow uses.
type VersionControl interface {
	HasUncommittedChanges(ctx context.Context) (bool, error)
	Checkout(ctx context.Context, branchOrRef string) error
	CheckoutNewBranch(ctx context.Context, newName, fromRef string) error
	ForEachRef(ctx context.Context, pattern string) (string, error)
	CommitAll(ctx context.Context, message string) error
}

// currentBrancher is implemented by version-control clients that can name
// the checked-out branch. The workflow uses it only to report the switch
// to the production branch.
type currentBrancher interface {
	CurrentBranch(ctx context.Context) (string, error)
}

// BuildTool updates project metadata and builds the project.
type BuildTool interface {
	SetVersion(ctx context.Context, newVersion string) error
	CleanInstall(ctx context.Context) error
}

// Prompter asks the operator a question. It returns
// prompt.ErrNoInteractiveSession when nobody can answer.
type Prompter interface {
	Ask(ctx context.Context, text string) (string, error)
}

// MetadataReader reads the version declared in the project descriptor.
type MetadataReader interface {
	CurrentVersion(ctx context.Context) (string, error)
}

// Inferencer proposes a hotfix version for the current project version.
type Inferencer func(current string) version.Suggestion

// Config holds the naming conventions and switches for one run. It is
// passed by value and never modified by the workflow.
type Config struct {
	// HotfixBranchPrefix is prepended to the version to form the branch name.
	HotfixBranchPrefix string

	// ProductionBranch is the branch hotfixes start from.
	ProductionBranch string

	// InstallProject runs a clean install after the version commit.
	InstallProject bool

	// CommitMessage overrides DefaultCommitMessage when set.
	CommitMessage string
}

// DefaultConfig returns the conventional git-flow settings.
func DefaultConfig() Config {
	return Config{
		HotfixBranchPrefix: "hotfix/",
		ProductionBranch:   "master",
		CommitMessage:      DefaultCommitMessage,
	}
}

// Validate reports the first branch setting git would reject or that
// would produce an unusable branch name.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.ProductionBranch) == "":
		return errors.New("production branch must not be blank")
	case strings.IndexFunc(c.ProductionBranch, unicode.IsSpace) >= 0:
		return fmt.Errorf("production branch %q must not contain whitespace", c.ProductionBranch)
	case strings.TrimSpace(c.HotfixBranchPrefix) == "":
		return errors.New("hotfix branch prefix must not be blank")
	case strings.HasPrefix(c.HotfixBranchPrefix, "/"):
		return fmt.Errorf("hotfix branch prefix %q must not start with '/'", c.HotfixBranchPrefix)
	case strings.IndexFunc(c.HotfixBranchPrefix, unicode.IsSpace) >= 0:
		return fmt.Errorf("hotfix branch prefix %q must not contain whitespace", c.HotfixBranchPrefix)
	}
	return nil
}

func (c Config) commitMessage() string {
	if c.CommitMessage == "" {
		return DefaultCommitMessage
	}
	return c.CommitMessage
}

// Result describes how far a run got and what it produced.
type Result struct {
	State           model.WorkflowState `json:"state"`
	PreviousBranch  string              `json:"previousBranch,omitempty"`
	CurrentVersion  string              `json:"currentVersion,omitempty"`
	DefaultVersion  string              `json:"defaultVersion,omitempty"`
	VersionInferred bool                `json:"versionInferred"`
	Version         string              `json:"version,omitempty"`
	Branch          string              `json:"branch,omitempty"`
	Built           bool                `json:"built"`
}

// Workflow runs hotfix-start against its collaborators.
type Workflow struct {
	vcs      VersionControl
	build    BuildTool
	prompter Prompter
	metadata MetadataReader
	infer    Inferencer
	log      zerolog.Logger
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithLogger sets the workflow logger.
func WithLogger(l zerolog.Logger) Option {
	return func(w *Workflow) { w.log = l }
}

// WithInferencer replaces version.Suggest.
func WithInferencer(f Inferencer) Option {
	return func(w *Workflow) { w.infer = f }
}

// New returns a Workflow wired to the given collaborators.
func New(vcs VersionControl, build BuildTool, prompter Prompter, metadata MetadataReader, opts ...Option) *Workflow {
	w := &Workflow{
		vcs:      vcs,
		build:    build,
		prompter: prompter,
		metadata: metadata,
		infer:    version.Suggest,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// PromptText is the question shown to the operator.
func PromptText(defaultVersion string) string {
	return fmt.Sprintf("What is the hotfix version? [%s]", defaultVersion)
}

// Run executes hotfix-start once. The returned Result is never nil and
// reflects the last state reached, also when an error is returned.
//
// Errors are ErrUncommittedChanges, a *DuplicateBranchError, a Config
// validation error, or a *StepError wrapping the collaborator failure.
func (w *Workflow) Run(ctx context.Context, cfg Config) (*Result, error) {
	res := &Result{State: model.StateStart}

	if err := cfg.Validate(); err != nil {
		res.State = model.StateAborted
		return res, err
	}

	dirty, err := w.vcs.HasUncommittedChanges(ctx)
	if err != nil {
		return res, w.fail(res, "check for uncommitted changes", err)
	}
	if dirty {
		res.State = model.StateAborted
		return res, ErrUncommittedChanges
	}

	if cb, ok := w.vcs.(currentBrancher); ok {
		if branch, err := cb.CurrentBranch(ctx); err == nil {
			res.PreviousBranch = branch
		}
	}

	// The version has to be read on the production branch, not on whatever
	// the operator had checked out.
	if err := w.vcs.Checkout(ctx, cfg.ProductionBranch); err != nil {
		return res, w.fail(res, "checkout "+cfg.ProductionBranch, err)
	}
	if res.PreviousBranch != "" && res.PreviousBranch != cfg.ProductionBranch {
		w.log.Warn().
			Str("from", res.PreviousBranch).
			Str("to", cfg.ProductionBranch).
			Msg("working tree switched to the production branch")
	}
	res.State = model.StateProductionBranchChecked

	current, err := w.metadata.CurrentVersion(ctx)
	if err != nil {
		return res, w.fail(res, "read project version", err)
	}
	res.CurrentVersion = current

	suggestion := w.infer(current)
	if !suggestion.Inferred {
		w.log.Debug().Err(suggestion.Reason).Str("current", current).
			Str("default", suggestion.Version).Msg("cannot infer hotfix version, using default")
	}
	res.DefaultVersion = suggestion.Version
	res.VersionInferred = suggestion.Inferred

	res.Version = w.chooseVersion(ctx, suggestion.Version)
	res.State = model.StateVersionDetermined

	branch := model.BranchName(cfg.HotfixBranchPrefix, res.Version)
	existing, err := w.vcs.ForEachRef(ctx, model.HeadsRef(branch))
	if err != nil {
		return res, w.fail(res, "look up "+branch, err)
	}
	if strings.TrimSpace(existing) != "" {
		res.State = model.StateAborted
		return res, &DuplicateBranchError{Branch: branch}
	}
	res.State = model.StateBranchNameValidated

	if err := w.vcs.CheckoutNewBranch(ctx, branch, cfg.ProductionBranch); err != nil {
		return res, w.fail(res, "create "+branch, err)
	}
	res.Branch = branch
	res.State = model.StateBranchCreated
	w.log.Info().Str("branch", branch).Str("from", cfg.ProductionBranch).Msg("hotfix branch created")

	if err := w.build.SetVersion(ctx, res.Version); err != nil {
		return res, w.fail(res, "set project version to "+res.Version, err)
	}
	res.State = model.StateMetadataUpdated

	if err := w.vcs.CommitAll(ctx, cfg.commitMessage()); err != nil {
		return res, w.fail(res, "commit version change", err)
	}
	res.State = model.StateCommitted

	if cfg.InstallProject {
		if err := w.build.CleanInstall(ctx); err != nil {
			return res, w.fail(res, "clean install", err)
		}
		res.Built = true
		res.State = model.StateBuilt
	}

	res.State = model.StateDone
	return res, nil
}

// chooseVersion asks the operator for the hotfix version. A prompter
// failure or a blank answer selects defaultVersion unchanged.
func (w *Workflow) chooseVersion(ctx context.Context, defaultVersion string) string {
	answer, err := w.prompter.Ask(ctx, PromptText(defaultVersion))
	if err != nil {
		w.log.Error().Err(err).
			Bool("interactive", !errors.Is(err, prompt.ErrNoInteractiveSession)).
			Str("version", defaultVersion).
			Msg("no answer to version prompt, using default")
		return defaultVersion
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return defaultVersion
	}
	return answer
}

func (w *Workflow) fail(res *Result, step string, err error) error {
	w.log.Error().Err(err).Str("state", res.State.String()).Str("step", step).Msg("hotfix-start stopped")
	return &StepError{State: res.State, Step: step, Err: err}
}
