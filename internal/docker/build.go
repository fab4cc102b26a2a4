package docker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/rs/zerolog"

	"github.com/shinji-kodama/gitflow/internal/maven"
	"github.com/shinji-kodama/gitflow/internal/model"
)

const (
	// WorkspaceDir is where the project is bind-mounted inside the container.
	WorkspaceDir = "/workspace"

	// mavenHome is the container-side home used for the local repository
	// cache, so builds do not depend on the image's user having a home.
	mavenHome = "/var/maven"
)

// Engine is the subset of the Docker SDK client used to run build
// containers. *client.Client satisfies it.
type Engine interface {
	ImageList(ctx context.Context, options image.ListOptions) ([]image.Summary, error)
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig,
		networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// BuildError reports a build container that exited non-zero.
type BuildError struct {
	Image    string
	Args     []string
	ExitCode int64
	Message  string
}

func (e *BuildError) Error() string {
	msg := fmt.Sprintf("mvn %s in %s exited with code %d", strings.Join(e.Args, " "), e.Image, e.ExitCode)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Unwrap lets callers match the failure with model.ErrSubprocessFailure.
func (e *BuildError) Unwrap() error {
	return model.ErrSubprocessFailure
}

// BuildRunner runs Maven goals inside a throwaway container. It implements
// the same SetVersion/CleanInstall operations as maven.Client, so the
// workflow does not know where the build actually runs.
//
// Each call pulls Image if it is not present locally, creates a container
// with ProjectDir mounted at /workspace, streams its output, waits for it
// to exit and removes it. The first call also removes build containers an
// interrupted run left behind, so nothing touches Docker until a build is
// actually needed.
type BuildRunner struct {
	Engine     Engine
	Image      string
	ProjectDir string
	ExtraArgs  []string

	// M2Dir is a host directory mounted as the container's local Maven
	// repository (~/.m2 by default when it exists). When empty, the Maven
	// home is a world-writable tmpfs so the host uid can still write it.
	M2Dir string

	Stdout io.Writer
	Stderr io.Writer
	Log    zerolog.Logger

	now          func() time.Time
	staleRemoved bool
}

// NewBuildRunner returns a BuildRunner for projectDir using image. The
// project path is made absolute because bind mounts require it.
func NewBuildRunner(engine Engine, img, projectDir string) (*BuildRunner, error) {
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("resolve project dir: %w", err)
	}

	r := &BuildRunner{
		Engine:     engine,
		Image:      img,
		ProjectDir: abs,
		Stdout:     io.Discard,
		Stderr:     io.Discard,
		Log:        zerolog.Nop(),
		now:        time.Now,
	}
	if home, err := os.UserHomeDir(); err == nil {
		m2 := filepath.Join(home, ".m2")
		if info, statErr := os.Stat(m2); statErr == nil && info.IsDir() {
			r.M2Dir = m2
		}
	}
	return r, nil
}

// SetVersion sets the project version inside the build container.
func (r *BuildRunner) SetVersion(ctx context.Context, newVersion string) error {
	return r.run(ctx, maven.SetVersionArgs(r.ExtraArgs, newVersion))
}

// CleanInstall runs `mvn clean install` inside the build container.
func (r *BuildRunner) CleanInstall(ctx context.Context) error {
	return r.run(ctx, maven.CleanInstallArgs(r.ExtraArgs))
}

// RemoveStale removes build containers for this project left behind by an
// interrupted run. It returns the number of containers removed.
func (r *BuildRunner) RemoveStale(ctx context.Context) (int, error) {
	args := filters.NewArgs()
	for _, f := range ProjectFilter(r.ProjectDir) {
		args.Add("label", f)
	}

	containers, err := r.Engine.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return 0, model.WrapCLIError(model.ExitDockerNotRunning, "failed to list build containers", err)
	}

	removed := 0
	for _, c := range containers {
		ev := r.Log.Debug().Str("container", shortID(c.ID))
		if created, err := ParseCreatedAt(c.Labels); err == nil {
			ev = ev.Time("created", created)
		}
		ev.Msg("removing stale build container")

		if err := r.Engine.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true}); err != nil {
			return removed, model.WrapCLIError(model.ExitDockerNotRunning,
				fmt.Sprintf("failed to remove container %q", shortID(c.ID)), err)
		}
		removed++
	}
	return removed, nil
}

// removeStaleOnce runs RemoveStale before the first build. A failed cleanup
// is logged and does not stop the build.
func (r *BuildRunner) removeStaleOnce(ctx context.Context) {
	if r.staleRemoved {
		return
	}
	r.staleRemoved = true

	n, err := r.RemoveStale(ctx)
	switch {
	case err != nil:
		r.Log.Warn().Err(err).Msg("failed to remove stale build containers")
	case n > 0:
		r.Log.Debug().Int("count", n).Msg("removed stale build containers")
	}
}

// ContainerConfig returns the container and host configuration for running
// args. It is a pure function of the runner's fields.
func (r *BuildRunner) ContainerConfig(args []string) (*container.Config, *container.HostConfig) {
	cmd := make([]string, 0, len(args)+2)
	cmd = append(cmd, "mvn", "-Duser.home="+mavenHome)
	cmd = append(cmd, args...)

	cfg := &container.Config{
		Image:      r.Image,
		Cmd:        cmd,
		WorkingDir: WorkspaceDir,
		Env:        []string{"HOME=" + mavenHome, "MAVEN_CONFIG=" + mavenHome + "/.m2"},
		Labels:     BuildLabels(r.ProjectDir, args, r.clock()),
		User:       hostUser(),
	}

	mounts := []mount.Mount{{
		Type:   mount.TypeBind,
		Source: r.ProjectDir,
		Target: WorkspaceDir,
	}}
	if r.M2Dir != "" {
		mounts = append(mounts, mount.Mount{
			Type:   mount.TypeBind,
			Source: r.M2Dir,
			Target: mavenHome + "/.m2",
		})
	} else {
		// Stock Maven images have no /var/maven and run as root; the
		// container runs as the host user, who could not create it.
		mounts = append(mounts, mount.Mount{
			Type:         mount.TypeTmpfs,
			Target:       mavenHome,
			TmpfsOptions: &mount.TmpfsOptions{Mode: 0o777},
		})
	}

	return cfg, &container.HostConfig{Mounts: mounts}
}

func (r *BuildRunner) run(ctx context.Context, args []string) error {
	r.removeStaleOnce(ctx)
	if err := r.ensureImage(ctx); err != nil {
		return err
	}

	cfg, hostCfg := r.ContainerConfig(args)
	created, err := r.Engine.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	if err != nil {
		return model.WrapCLIError(model.ExitDockerNotRunning, "failed to create build container", err)
	}
	id := created.ID
	log := r.Log.With().Str("container", shortID(id)).Logger()
	log.Debug().Strs("args", args).Str("image", r.Image).Msg("running build container")

	// Always remove the container, even when ctx was cancelled mid-build.
	defer func() {
		if err := r.Engine.ContainerRemove(context.WithoutCancel(ctx), id, container.RemoveOptions{Force: true}); err != nil {
			log.Warn().Err(err).Msg("failed to remove build container")
		}
	}()

	if err := r.Engine.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return model.WrapCLIError(model.ExitDockerNotRunning, "failed to start build container", err)
	}

	logs, err := r.Engine.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true, Follow: true})
	if err != nil {
		return model.WrapCLIError(model.ExitDockerNotRunning, "failed to attach to build container", err)
	}
	// Follow ends when the container exits.
	_, copyErr := stdcopy.StdCopy(r.writer(r.Stdout), r.writer(r.Stderr), logs)
	logs.Close()
	if copyErr != nil {
		log.Warn().Err(copyErr).Msg("build output truncated")
	}

	statusCh, errCh := r.Engine.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return model.WrapCLIError(model.ExitDockerNotRunning, "failed waiting for build container", err)
	case status := <-statusCh:
		if status.StatusCode != 0 {
			be := &BuildError{Image: r.Image, Args: args, ExitCode: status.StatusCode}
			if status.Error != nil {
				be.Message = status.Error.Message
			}
			return be
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// ensureImage pulls r.Image unless a local image already carries that
// reference.
func (r *BuildRunner) ensureImage(ctx context.Context) error {
	images, err := r.Engine.ImageList(ctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", r.Image)),
	})
	if err != nil {
		return model.WrapCLIError(model.ExitDockerNotRunning, "failed to list images", err)
	}
	if len(images) > 0 {
		return nil
	}

	r.Log.Info().Str("image", r.Image).Msg("pulling build image")
	progress, err := r.Engine.ImagePull(ctx, r.Image, image.PullOptions{})
	if err != nil {
		return model.WrapCLIError(model.ExitDockerNotRunning, fmt.Sprintf("failed to pull image %q", r.Image), err)
	}
	defer progress.Close()

	// The pull only completes once the progress stream is drained.
	if _, err := io.Copy(io.Discard, progress); err != nil {
		return model.WrapCLIError(model.ExitDockerNotRunning, fmt.Sprintf("failed to pull image %q", r.Image), err)
	}
	return nil
}

func (r *BuildRunner) clock() time.Time {
	if r.now == nil {
		return time.Now()
	}
	return r.now()
}

func (r *BuildRunner) writer(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

// hostUser returns "uid:gid" of the current process so files written into
// the bind mount keep the operator's ownership. Empty on Windows.
func hostUser() string {
	if runtime.GOOS == "windows" {
		return ""
	}
	return fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid())
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
