// hotfix.go implements the "gitflow hotfix-start" command.
//
// Orchestration steps:
//  1. Resolve the repository root and load the layered configuration
//  2. Build the collaborators: git client, pom reader, build tool
//     (local mvn or a build container), version prompter
//  3. Run the hotfix-start workflow
//  4. Output the result (text or JSON), also when a late step failed

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/gitflow/internal/config"
	"github.com/shinji-kodama/gitflow/internal/docker"
	"github.com/shinji-kodama/gitflow/internal/git"
	"github.com/shinji-kodama/gitflow/internal/hotfix"
	"github.com/shinji-kodama/gitflow/internal/maven"
	"github.com/shinji-kodama/gitflow/internal/model"
	"github.com/shinji-kodama/gitflow/internal/pom"
	"github.com/shinji-kodama/gitflow/internal/prompt"
)

// hotfixFlags holds the flag values for the hotfix-start command.
type hotfixFlags struct {
	prefix           string   // --hotfix-prefix
	productionBranch string   // --production-branch
	install          bool     // --install
	version          string   // --hotfix-version: answer the prompt up front
	nonInteractive   bool     // --non-interactive
	gitExecutable    string   // --git-executable
	mvnExecutable    string   // --mvn-executable
	buildImage       string   // --build-image
	mvnArgs          []string // --mvn-args
	commitMessage    string   // --commit-message
}

// NewHotfixStartCommand creates the "hotfix-start" cobra command.
func NewHotfixStartCommand() *cobra.Command {
	flags := &hotfixFlags{}

	cmd := &cobra.Command{
		Use:   "hotfix-start",
		Short: "Start a hotfix branch off the production branch",
		Long: `Start a hotfix: create <prefix><version> off the production branch,
set the Maven project version to <version> and commit the change.

The working tree must be clean. The production branch is checked out
first so the current version is read from it. The default hotfix version
is the current version with its patch number incremented, or 1.0.1 when
the current version is not a plain MAJOR.MINOR.PATCH. An empty answer to
the prompt accepts the default.

Examples:
  gitflow hotfix-start
  gitflow hotfix-start --hotfix-version 1.4.3
  gitflow hotfix-start --production-branch main --install
  gitflow hotfix-start --build-image maven:3.9-eclipse-temurin-21 --non-interactive`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runHotfixStart(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.prefix, "hotfix-prefix", "", "Hotfix branch prefix (default: hotfix/)")
	cmd.Flags().StringVar(&flags.productionBranch, "production-branch", "", "Branch hotfixes start from (default: master)")
	cmd.Flags().BoolVar(&flags.install, "install", false, "Run 'mvn clean install' after the version commit")
	cmd.Flags().StringVar(&flags.version, "hotfix-version", "", "Hotfix version; skips the prompt")
	cmd.Flags().BoolVar(&flags.nonInteractive, "non-interactive", false, "Never prompt; use the default version")
	cmd.Flags().StringVar(&flags.gitExecutable, "git-executable", "", "Git binary (default: git)")
	cmd.Flags().StringVar(&flags.mvnExecutable, "mvn-executable", "", "Maven binary (default: mvn)")
	cmd.Flags().StringVar(&flags.buildImage, "build-image", "", "Run Maven inside a container from this image")
	cmd.Flags().StringSliceVar(&flags.mvnArgs, "mvn-args", nil, "Extra arguments for every Maven call (comma separated)")
	cmd.Flags().StringVar(&flags.commitMessage, "commit-message", "", "Message of the version commit (default: updating poms for hotfix)")

	return cmd
}

// layer returns the flags the user actually set, so that unset flags do
// not override config files or git config.
func (f *hotfixFlags) layer(cmd *cobra.Command) config.Layer {
	var l config.Layer
	changed := cmd.Flags().Changed
	if changed("hotfix-prefix") {
		l.HotfixBranchPrefix = &f.prefix
	}
	if changed("production-branch") {
		l.ProductionBranch = &f.productionBranch
	}
	if changed("install") {
		l.InstallProject = &f.install
	}
	if changed("git-executable") {
		l.GitExecutable = &f.gitExecutable
	}
	if changed("mvn-executable") {
		l.MvnExecutable = &f.mvnExecutable
	}
	if changed("build-image") {
		l.BuildImage = &f.buildImage
	}
	if changed("mvn-args") {
		l.MvnArgs = append([]string{}, f.mvnArgs...)
	}
	if changed("commit-message") {
		l.CommitMessage = &f.commitMessage
	}
	return l
}

// runHotfixStart executes the hotfix-start workflow.
func runHotfixStart(cmd *cobra.Command, flags *hotfixFlags) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	root, loaded, err := loadConfig(ctx, flags.layer(cmd), flags.gitExecutable)
	if err != nil {
		return err
	}
	cfg := loaded.Config
	if loaded.File != "" {
		VerboseLog("Loaded config from %s", loaded.File)
	}

	vcs := git.NewClient(root, git.WithExecutable(cfg.GitExecutable), git.WithLogger(logger))

	build, closeBuild, err := newBuildTool(ctx, cmd, root, cfg)
	if err != nil {
		return err
	}
	defer closeBuild()

	wf := hotfix.New(vcs, build, newPrompter(cmd, flags), pom.NewReader(root), hotfix.WithLogger(logger))

	res, err := wf.Run(ctx, cfg.Hotfix())
	if err != nil {
		// Report what was created before the failure.
		if res != nil && res.State.HasSideEffects() {
			printHotfixResult(cmd.OutOrStdout(), res, cfg)
		}
		return hotfixError(err)
	}

	printHotfixResult(cmd.OutOrStdout(), res, cfg)
	return nil
}

// loadConfig resolves the repository root and the layered configuration.
func loadConfig(ctx context.Context, flagLayer config.Layer, gitExecutable string) (string, *config.Loaded, error) {
	dir := repoDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		dir = wd
	}

	root, err := git.NewClient(dir, git.WithExecutable(gitExecutable), git.WithLogger(logger)).RepoRoot(ctx)
	if err != nil {
		return "", nil, model.WrapCLIError(model.ExitGitError,
			fmt.Sprintf("not a git repository: %s", dir), err)
	}
	VerboseLog("Repository root: %s", root)

	loaded, err := config.Load(ctx, config.Options{
		Dir:  root,
		File: configPath,
		Git: func(exe string) config.GitConfigReader {
			return git.NewClient(root, git.WithExecutable(exe), git.WithLogger(logger))
		},
		Flags: flagLayer,
	})
	if err != nil {
		return "", nil, err
	}
	return root, loaded, nil
}

// newBuildTool returns the local Maven client, or a container build runner
// when a build image is configured. The returned func releases resources.
func newBuildTool(ctx context.Context, cmd *cobra.Command, root string, cfg config.WorkflowConfig) (hotfix.BuildTool, func(), error) {
	out := buildOutput(cmd)

	if cfg.BuildImage == "" {
		mvn := maven.NewClient(root)
		mvn.Executable = cfg.MvnExecutable
		mvn.ExtraArgs = cfg.MvnArgs
		mvn.Stdout = out
		mvn.Stderr = cmd.ErrOrStderr()
		mvn.Log = logger
		return mvn, func() {}, nil
	}

	dockerClient, err := docker.NewClient()
	if err != nil {
		return nil, nil, err
	}
	if err := dockerClient.Ping(ctx); err != nil {
		_ = dockerClient.Close()
		return nil, nil, err
	}

	runner, err := docker.NewBuildRunner(dockerClient.Engine(), cfg.BuildImage, root)
	if err != nil {
		_ = dockerClient.Close()
		return nil, nil, err
	}
	runner.ExtraArgs = cfg.MvnArgs
	runner.Stdout = out
	runner.Stderr = cmd.ErrOrStderr()
	runner.Log = logger

	return runner, func() { _ = dockerClient.Close() }, nil
}

// buildOutput is where Maven's standard output goes. In JSON mode stdout
// carries only the result document.
func buildOutput(cmd *cobra.Command) io.Writer {
	if jsonOutput {
		return cmd.ErrOrStderr()
	}
	return cmd.OutOrStdout()
}

// newPrompter picks how the hotfix version is asked for.
func newPrompter(cmd *cobra.Command, flags *hotfixFlags) hotfix.Prompter {
	if flags.version != "" {
		return prompt.Fixed(flags.version)
	}

	out := buildOutput(cmd)
	if flags.nonInteractive {
		return &prompt.Terminal{In: cmd.InOrStdin(), Out: out, Interactive: false}
	}
	if f, ok := cmd.InOrStdin().(*os.File); ok {
		return prompt.NewTerminal(f, out)
	}
	// Input injected with SetIn counts as an operator.
	return &prompt.Terminal{In: cmd.InOrStdin(), Out: out, Interactive: true}
}

// hotfixError converts a workflow error into a CLIError with the matching
// exit code.
func hotfixError(err error) error {
	code := ExitCodeFor(err)

	var stepErr *hotfix.StepError
	switch {
	case errors.Is(err, hotfix.ErrUncommittedChanges), errors.Is(err, hotfix.ErrDuplicateBranch):
		return model.NewCLIError(code, err.Error())
	case errors.As(err, &stepErr):
		msg := fmt.Sprintf("%s failed", stepErr.Step)
		if stepErr.State.HasSideEffects() {
			msg = fmt.Sprintf("%s; the repository was left at %q", msg, stepErr.State)
		}
		return model.WrapCLIError(code, msg, stepErr.Err)
	default:
		return model.WrapCLIError(code, "hotfix-start failed", err)
	}
}

// hotfixResultJSON is the --json output document.
type hotfixResultJSON struct {
	*hotfix.Result
	ProductionBranch string `json:"productionBranch"`
	CommitMessage    string `json:"commitMessage,omitempty"`
}

// printHotfixResult outputs the workflow result in text or JSON format.
func printHotfixResult(w io.Writer, res *hotfix.Result, cfg config.WorkflowConfig) {
	if jsonOutput {
		printHotfixResultJSON(w, res, cfg)
	} else {
		printHotfixResultText(w, res, cfg)
	}
}

func printHotfixResultJSON(w io.Writer, res *hotfix.Result, cfg config.WorkflowConfig) {
	out := hotfixResultJSON{Result: res, ProductionBranch: cfg.ProductionBranch}
	if committed(res.State) {
		out.CommitMessage = cfg.CommitMessage
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	fmt.Fprintln(w, string(data))
}

func printHotfixResultText(w io.Writer, res *hotfix.Result, cfg config.WorkflowConfig) {
	if res.State == model.StateDone {
		fmt.Fprintf(w, "Hotfix branch '%s' created from '%s'\n", res.Branch, cfg.ProductionBranch)
	} else {
		fmt.Fprintf(w, "Hotfix branch '%s' created from '%s' (stopped at %s)\n", res.Branch, cfg.ProductionBranch, res.State)
	}

	from := res.CurrentVersion
	if from == "" {
		from = "?"
	}
	fmt.Fprintf(w, "  Version: %s -> %s\n", from, res.Version)

	if committed(res.State) {
		fmt.Fprintf(w, "  Commit:  %s\n", cfg.CommitMessage)
	} else {
		fmt.Fprintln(w, "  Commit:  not created")
	}

	switch {
	case res.Built:
		fmt.Fprintln(w, "  Build:   clean install succeeded")
	case cfg.InstallProject && res.State == model.StateCommitted:
		fmt.Fprintln(w, "  Build:   clean install failed")
	case cfg.InstallProject:
		fmt.Fprintln(w, "  Build:   not run")
	default:
		fmt.Fprintln(w, "  Build:   skipped")
	}

	if res.PreviousBranch != "" && res.PreviousBranch != cfg.ProductionBranch {
		fmt.Fprintf(w, "\nNote: the working tree was switched from '%s' to '%s' before branching.\n",
			res.PreviousBranch, cfg.ProductionBranch)
	}
}

// committed reports whether the version commit exists in state s.
func committed(s model.WorkflowState) bool {
	switch s {
	case model.StateCommitted, model.StateBuilt, model.StateDone:
		return true
	default:
		return false
	}
}
