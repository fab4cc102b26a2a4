package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/gitflow/internal/hotfix"
	"github.com/shinji-kodama/gitflow/internal/model"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool { return &b }

type fakeGitConfig struct {
	values map[string]string
	err    error
	exe    string
}

func (f *fakeGitConfig) ConfigGet(_ context.Context, key string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	v, ok := f.values[key]
	return v, ok, nil
}

type recordingGitConfig struct {
	keys []string
}

func (r *recordingGitConfig) ConfigGet(_ context.Context, key string) (string, bool, error) {
	r.keys = append(r.keys, key)
	return "", false, nil
}

func TestParse_Formats(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		data string
	}{
		{
			name: "yaml",
			ext:  ".yaml",
			data: "productionBranch: main\nhotfixBranchPrefix: hf/\ninstallProject: true\nmvnArgs: [-q, -Pci]\n",
		},
		{
			name: "yml",
			ext:  ".yml",
			data: "productionBranch: main\nhotfixBranchPrefix: hf/\ninstallProject: true\nmvnArgs:\n  - -q\n  - -Pci\n",
		},
		{
			name: "jsonc with comments and trailing comma",
			ext:  ".jsonc",
			data: `{
				// release line
				"productionBranch": "main",
				"hotfixBranchPrefix": "hf/", /* git-flow style */
				"installProject": true,
				"mvnArgs": ["-q", "-Pci",],
			}`,
		},
		{
			name: "json",
			ext:  ".json",
			data: `{"productionBranch":"main","hotfixBranchPrefix":"hf/","installProject":true,"mvnArgs":["-q","-Pci"]}`,
		},
		{
			name: "toml",
			ext:  ".toml",
			data: "productionBranch = \"main\"\nhotfixBranchPrefix = \"hf/\"\ninstallProject = true\nmvnArgs = [\"-q\", \"-Pci\"]\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := Parse(tt.ext, []byte(tt.data))
			require.NoError(t, err)

			cfg := Defaults()
			cfg.Apply(l)
			assert.Equal(t, "main", cfg.ProductionBranch)
			assert.Equal(t, "hf/", cfg.HotfixBranchPrefix)
			assert.True(t, cfg.InstallProject)
			assert.Equal(t, []string{"-q", "-Pci"}, cfg.MvnArgs)
			assert.Equal(t, "updating poms for hotfix", cfg.CommitMessage, "unset keys keep their default")
		})
	}
}

func TestParse_UnknownKeysRejected(t *testing.T) {
	for ext, data := range map[string]string{
		".yaml": "productionBranh: main\n",
		".json": `{"productionBranh": "main"}`,
		".toml": "productionBranh = \"main\"\n",
	} {
		t.Run(ext, func(t *testing.T) {
			_, err := Parse(ext, []byte(data))
			assert.Error(t, err)
		})
	}
}

func TestParse_EmptyFiles(t *testing.T) {
	for _, ext := range []string{".yaml", ".json", ".toml"} {
		l, err := Parse(ext, nil)
		require.NoError(t, err, ext)
		assert.Equal(t, Layer{}, l)
	}
}

func TestParse_UnsupportedExtension(t *testing.T) {
	_, err := Parse(".ini", []byte("x=1"))
	assert.ErrorContains(t, err, "unsupported config format")
}

func TestFindFile(t *testing.T) {
	dir := t.TempDir()

	path, err := FindFile(dir)
	require.NoError(t, err)
	assert.Empty(t, path)

	writeFile(t, dir, ".gitflow.toml", "")
	writeFile(t, dir, ".gitflow.json", "{}")

	path, err = FindFile(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ".gitflow.json"), path, "earlier names win")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*WorkflowConfig)
		errMsg string
	}{
		{"defaults", func(*WorkflowConfig) {}, ""},
		{"blank production", func(c *WorkflowConfig) { c.ProductionBranch = " " }, "production branch must not be blank"},
		{"spaced production", func(c *WorkflowConfig) { c.ProductionBranch = "main line" }, "whitespace"},
		{"blank prefix", func(c *WorkflowConfig) { c.HotfixBranchPrefix = "" }, "hotfix branch prefix must not be blank"},
		{"leading slash", func(c *WorkflowConfig) { c.HotfixBranchPrefix = "/hotfix" }, "must not start with '/'"},
		{"spaced prefix", func(c *WorkflowConfig) { c.HotfixBranchPrefix = "hot fix/" }, "whitespace"},
		{"prefix without slash", func(c *WorkflowConfig) { c.HotfixBranchPrefix = "hotfix-" }, ""},
		{"blank git", func(c *WorkflowConfig) { c.GitExecutable = "" }, "gitExecutable"},
		{"blank mvn", func(c *WorkflowConfig) { c.MvnExecutable = "" }, "mvnExecutable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestLoad_Layering(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".gitflow.yaml", "productionBranch: release\nhotfixBranchPrefix: fix/\ngitExecutable: /opt/git/bin/git\ninstallProject: true\n")

	git := &fakeGitConfig{values: map[string]string{
		GitKeyProductionBranch:   "main",
		"gitflow.branch.develop": "dev",
	}}

	loaded, err := Load(context.Background(), Options{
		Dir: dir,
		Git: func(exe string) GitConfigReader {
			git.exe = exe
			return git
		},
		Flags: Layer{HotfixBranchPrefix: strPtr("urgent/"), InstallProject: boolPtr(false)},
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, ".gitflow.yaml"), loaded.File)
	assert.Equal(t, "/opt/git/bin/git", git.exe, "git config is read with the configured executable")

	cfg := loaded.Config
	assert.Equal(t, "main", cfg.ProductionBranch, "git config beats the file")
	assert.Equal(t, "urgent/", cfg.HotfixBranchPrefix, "flags beat git config and file")
	assert.False(t, cfg.InstallProject)
	assert.Equal(t, "mvn", cfg.MvnExecutable)
}

func TestLoad_NoFileNoGit(t *testing.T) {
	loaded, err := Load(context.Background(), Options{Dir: t.TempDir()})
	require.NoError(t, err)
	assert.Empty(t, loaded.File)
	assert.Equal(t, Defaults(), loaded.Config)
}

func TestLoad_GitExecutableFlagWins(t *testing.T) {
	var used string
	_, err := Load(context.Background(), Options{
		Dir: t.TempDir(),
		Git: func(exe string) GitConfigReader {
			used = exe
			return &fakeGitConfig{}
		},
		Flags: Layer{GitExecutable: strPtr("/usr/local/bin/git")},
	})
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/git", used)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	badYAML := writeFile(t, dir, "bad.yaml", "productionBranch: [\n")
	ini := writeFile(t, dir, "gitflow.ini", "x=1")
	invalid := writeFile(t, dir, "invalid.toml", "hotfixBranchPrefix = \"/hotfix\"\n")

	tests := []struct {
		name string
		opts Options
	}{
		{"missing explicit file", Options{File: filepath.Join(dir, "nope.yaml")}},
		{"malformed yaml", Options{File: badYAML}},
		{"unknown extension", Options{File: ini}},
		{"invalid value", Options{File: invalid}},
		{"git config failure", Options{Dir: dir, Git: func(string) GitConfigReader {
			return &fakeGitConfig{err: errors.New("git exploded")}
		}}},
		{"invalid flag", Options{Dir: dir, Flags: Layer{ProductionBranch: strPtr("")}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(context.Background(), tt.opts)
			require.Error(t, err)

			var cliErr *model.CLIError
			require.ErrorAs(t, err, &cliErr)
			assert.Equal(t, model.ExitConfigError, cliErr.Code)
		})
	}
}

func TestDefaults_MatchWorkflowDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, hotfix.DefaultConfig(), cfg.Hotfix())
	assert.NoError(t, cfg.Validate())
}

func TestReadGitConfig_OnlyHotfixKeys(t *testing.T) {
	git := &recordingGitConfig{}
	_, err := ReadGitConfig(context.Background(), git)
	require.NoError(t, err)
	assert.Equal(t, []string{GitKeyProductionBranch, GitKeyHotfixPrefix}, git.keys)
}

func TestApply_CopiesArgs(t *testing.T) {
	args := []string{"-q"}
	cfg := Defaults()
	cfg.Apply(Layer{MvnArgs: args})
	args[0] = "-X"
	assert.Equal(t, []string{"-q"}, cfg.MvnArgs)
}
