package maven

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/gitflow/internal/model"
)

func TestSetVersionArgs(t *testing.T) {
	got := SetVersionArgs(nil, "1.2.1")
	assert.Equal(t, []string{
		"-B",
		VersionsSetGoal,
		"-DnewVersion=1.2.1",
		"-DgenerateBackupPoms=false",
	}, got)
}

func TestCleanInstallArgs(t *testing.T) {
	got := CleanInstallArgs([]string{"-s", "ci-settings.xml", "-DskipTests"})
	assert.Equal(t, []string{"-B", "-s", "ci-settings.xml", "-DskipTests", "clean", "install"}, got)
}

// fakeMaven writes a shell script that records its arguments and working
// directory, then exits with the given status.
func fakeMaven(t *testing.T, exitCode string) (exe, record string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake mvn script requires a POSIX shell")
	}

	dir := t.TempDir()
	record = filepath.Join(dir, "calls.txt")
	exe = filepath.Join(dir, "mvn")
	script := "#!/bin/sh\n" +
		"echo \"$(pwd) $*\" >> " + record + "\n" +
		"echo building\n" +
		"exit " + exitCode + "\n"
	require.NoError(t, os.WriteFile(exe, []byte(script), 0o755))
	return exe, record
}

func TestClient_SetVersion(t *testing.T) {
	exe, record := fakeMaven(t, "0")
	project := t.TempDir()

	var out bytes.Buffer
	c := NewClient(project)
	c.Executable = exe
	c.Stdout = &out

	require.NoError(t, c.SetVersion(context.Background(), "1.2.1"))

	calls, err := os.ReadFile(record)
	require.NoError(t, err)
	line := strings.TrimSpace(string(calls))

	resolved, _ := filepath.EvalSymlinks(project)
	assert.True(t, strings.HasPrefix(line, resolved) || strings.HasPrefix(line, project), line)
	assert.Contains(t, line, "-DnewVersion=1.2.1 -DgenerateBackupPoms=false")
	assert.Equal(t, "building\n", out.String())
}

func TestClient_CleanInstall_Failure(t *testing.T) {
	exe, _ := fakeMaven(t, "3")
	c := NewClient(t.TempDir())
	c.Executable = exe

	err := c.CleanInstall(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrSubprocessFailure)

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 3, cmdErr.ExitCode)
	assert.Equal(t, []string{"-B", "clean", "install"}, cmdErr.Args)
	assert.Contains(t, err.Error(), "exit code 3")
}

func TestClient_MissingExecutable(t *testing.T) {
	c := NewClient(t.TempDir())
	c.Executable = filepath.Join(t.TempDir(), "no-such-mvn")

	err := c.CleanInstall(context.Background())
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, -1, cmdErr.ExitCode)
}
