// Package config resolves the settings of a gitflow run.
//
// Settings are layered, lowest precedence first:
//
//  1. built-in defaults (Defaults)
//  2. a repository config file (.gitflow.yaml, .gitflow.json, .gitflow.toml, ...)
//  3. git-flow keys in git config (gitflow.branch.master, gitflow.prefix.hotfix, ...)
//  4. command-line flags
//
// Each layer is a Layer value whose nil fields mean "not set here".
package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/gitflow/internal/hotfix"
	"github.com/shinji-kodama/gitflow/internal/model"
)

// WorkflowConfig is the fully resolved configuration. It is a plain value;
// once returned by Load it is never modified.
type WorkflowConfig struct {
	HotfixBranchPrefix string   `json:"hotfixBranchPrefix" yaml:"hotfixBranchPrefix"`
	ProductionBranch   string   `json:"productionBranch" yaml:"productionBranch"`
	InstallProject     bool     `json:"installProject" yaml:"installProject"`
	GitExecutable      string   `json:"gitExecutable" yaml:"gitExecutable"`
	MvnExecutable      string   `json:"mvnExecutable" yaml:"mvnExecutable"`
	MvnArgs            []string `json:"mvnArgs" yaml:"mvnArgs"`
	BuildImage         string   `json:"buildImage,omitempty" yaml:"buildImage,omitempty"`
	CommitMessage      string   `json:"commitMessage" yaml:"commitMessage"`
}

// Defaults returns the git-flow conventions of hotfix.DefaultConfig plus
// the default tool executables.
func Defaults() WorkflowConfig {
	wf := hotfix.DefaultConfig()
	return WorkflowConfig{
		HotfixBranchPrefix: wf.HotfixBranchPrefix,
		ProductionBranch:   wf.ProductionBranch,
		InstallProject:     wf.InstallProject,
		GitExecutable:      "git",
		MvnExecutable:      "mvn",
		CommitMessage:      wf.CommitMessage,
	}
}

// Hotfix returns the workflow settings of c.
func (c WorkflowConfig) Hotfix() hotfix.Config {
	return hotfix.Config{
		HotfixBranchPrefix: c.HotfixBranchPrefix,
		ProductionBranch:   c.ProductionBranch,
		InstallProject:     c.InstallProject,
		CommitMessage:      c.CommitMessage,
	}
}

// Layer is one source of settings. Nil fields are left to lower layers.
type Layer struct {
	HotfixBranchPrefix *string  `json:"hotfixBranchPrefix" yaml:"hotfixBranchPrefix" toml:"hotfixBranchPrefix"`
	ProductionBranch   *string  `json:"productionBranch" yaml:"productionBranch" toml:"productionBranch"`
	InstallProject     *bool    `json:"installProject" yaml:"installProject" toml:"installProject"`
	GitExecutable      *string  `json:"gitExecutable" yaml:"gitExecutable" toml:"gitExecutable"`
	MvnExecutable      *string  `json:"mvnExecutable" yaml:"mvnExecutable" toml:"mvnExecutable"`
	MvnArgs            []string `json:"mvnArgs" yaml:"mvnArgs" toml:"mvnArgs"`
	BuildImage         *string  `json:"buildImage" yaml:"buildImage" toml:"buildImage"`
	CommitMessage      *string  `json:"commitMessage" yaml:"commitMessage" toml:"commitMessage"`
}

// Apply copies the fields set in l onto c.
func (c *WorkflowConfig) Apply(l Layer) {
	setString(&c.HotfixBranchPrefix, l.HotfixBranchPrefix)
	setString(&c.ProductionBranch, l.ProductionBranch)
	if l.InstallProject != nil {
		c.InstallProject = *l.InstallProject
	}
	setString(&c.GitExecutable, l.GitExecutable)
	setString(&c.MvnExecutable, l.MvnExecutable)
	if l.MvnArgs != nil {
		c.MvnArgs = append([]string(nil), l.MvnArgs...)
	}
	setString(&c.BuildImage, l.BuildImage)
	setString(&c.CommitMessage, l.CommitMessage)
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// Validate reports the first unusable setting.
func (c WorkflowConfig) Validate() error {
	if err := c.Hotfix().Validate(); err != nil {
		return err
	}
	switch {
	case strings.TrimSpace(c.GitExecutable) == "":
		return errors.New("gitExecutable must not be blank")
	case strings.TrimSpace(c.MvnExecutable) == "":
		return errors.New("mvnExecutable must not be blank")
	}
	return nil
}

// FileNames lists the config files looked up in the repository root, in
// lookup order. The first one present wins.
var FileNames = []string{
	".gitflow.yaml",
	".gitflow.yml",
	".gitflow.json",
	".gitflow.jsonc",
	".gitflow.toml",
}

// FindFile returns the first of FileNames present in dir, or "" if none is.
func FindFile(dir string) (string, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("failed to stat %s: %w", path, err)
		}
	}
	return "", nil
}

// ReadFile parses a config file, choosing the format by extension.
// Unknown keys are rejected so that typos do not silently fall back to
// defaults.
func ReadFile(path string) (Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Layer{}, model.WrapCLIError(model.ExitConfigError,
				fmt.Sprintf("config file not found: %s", path), err)
		}
		return Layer{}, fmt.Errorf("failed to read config file: %w", err)
	}

	layer, err := Parse(filepath.Ext(path), data)
	if err != nil {
		return Layer{}, model.WrapCLIError(model.ExitConfigError,
			fmt.Sprintf("invalid config file %s", path), err)
	}
	return layer, nil
}

// Parse decodes data in the format named by ext (".yaml", ".yml", ".json",
// ".jsonc" or ".toml").
func Parse(ext string, data []byte) (Layer, error) {
	var l Layer
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&l); err != nil && !errors.Is(err, io.EOF) {
			return Layer{}, err
		}
	case ".json", ".jsonc":
		// Comments and trailing commas are accepted in both spellings.
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&l); err != nil && !errors.Is(err, io.EOF) {
			return Layer{}, err
		}
	case ".toml":
		md, err := toml.Decode(string(data), &l)
		if err != nil {
			return Layer{}, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return Layer{}, fmt.Errorf("unknown key %q", undecoded[0].String())
		}
	default:
		return Layer{}, fmt.Errorf("unsupported config format %q", ext)
	}
	return l, nil
}

// Git config keys shared with git-flow.
const (
	GitKeyProductionBranch = "gitflow.branch.master"
	GitKeyHotfixPrefix     = "gitflow.prefix.hotfix"
)

// GitConfigReader reads single git config values.
type GitConfigReader interface {
	ConfigGet(ctx context.Context, key string) (value string, ok bool, err error)
}

// ReadGitConfig collects the git-flow keys that are set.
func ReadGitConfig(ctx context.Context, git GitConfigReader) (Layer, error) {
	var l Layer
	targets := []struct {
		key string
		dst **string
	}{
		{GitKeyProductionBranch, &l.ProductionBranch},
		{GitKeyHotfixPrefix, &l.HotfixBranchPrefix},
	}
	for _, t := range targets {
		v, ok, err := git.ConfigGet(ctx, t.key)
		if err != nil {
			return Layer{}, fmt.Errorf("failed to read git config %s: %w", t.key, err)
		}
		if ok {
			*t.dst = &v
		}
	}
	return l, nil
}

// Options controls Load.
type Options struct {
	// Dir is the repository root searched for a config file.
	Dir string

	// File is an explicit config file. It must exist when set.
	File string

	// Git builds the git config reader once the git executable is known.
	// Nil skips the git config layer.
	Git func(executable string) GitConfigReader

	// Flags holds the command-line layer.
	Flags Layer
}

// Loaded is the result of Load.
type Loaded struct {
	Config WorkflowConfig

	// File is the config file that was read, or "" when none was found.
	File string
}

// Load resolves and validates the configuration. Every failure is a
// CLIError carrying model.ExitConfigError.
func Load(ctx context.Context, opts Options) (*Loaded, error) {
	cfg := Defaults()
	out := &Loaded{}

	path := opts.File
	if path == "" {
		found, err := FindFile(opts.Dir)
		if err != nil {
			return nil, model.WrapCLIError(model.ExitConfigError, "failed to look up config file", err)
		}
		path = found
	}
	if path != "" {
		layer, err := ReadFile(path)
		if err != nil {
			var cliErr *model.CLIError
			if errors.As(err, &cliErr) {
				return nil, err
			}
			return nil, model.WrapCLIError(model.ExitConfigError, "failed to load config", err)
		}
		cfg.Apply(layer)
		out.File = path
	}

	if opts.Git != nil {
		exe := cfg.GitExecutable
		setString(&exe, opts.Flags.GitExecutable)
		layer, err := ReadGitConfig(ctx, opts.Git(exe))
		if err != nil {
			return nil, model.WrapCLIError(model.ExitConfigError, "failed to load git-flow settings", err)
		}
		cfg.Apply(layer)
	}

	cfg.Apply(opts.Flags)

	if err := cfg.Validate(); err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError, "invalid configuration", err)
	}
	out.Config = cfg
	return out, nil
}
