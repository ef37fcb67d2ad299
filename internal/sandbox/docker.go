// Package sandbox runs assistant shell commands inside a Docker container
// instead of directly on the host.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/dhrumilbhut/codevoice/internal/tools"
)

const (
	containerName   = "codevoice-sandbox"
	containerUser   = "1000"
	workspacePath   = "/workspace"
	stopTimeoutSecs = 10

	memoryLimitBytes = 512 * 1024 * 1024 // 512MB
	cpuQuota         = 50000             // 0.5 CPU
	pidsLimit        = 256
)

// DockerRunner satisfies tools.Runner by executing commands inside one
// long-lived container that bind-mounts the projects root at /workspace.
// The container has no published ports and capped resources, so a hostile
// command is confined to the mounted project tree.
type DockerRunner struct {
	cli      *client.Client
	image    string
	hostRoot string

	containerID string
}

// NewDockerRunner connects to the Docker daemon and ensures the sandbox
// container is running. hostRoot is the absolute projects root to mount.
func NewDockerRunner(ctx context.Context, image, hostRoot string) (*DockerRunner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	if image == "" {
		image = "alpine:3.20"
	}

	r := &DockerRunner{cli: cli, image: image, hostRoot: hostRoot}
	if err := r.ensureContainer(ctx); err != nil {
		return nil, err
	}
	slog.Info("Sandbox container ready", "container_id", r.containerID, "image", image)
	return r, nil
}

// ensureContainer reuses a running sandbox container if one exists, restarts
// a stopped one, and otherwise creates it fresh.
func (r *DockerRunner) ensureContainer(ctx context.Context) error {
	inspect, err := r.cli.ContainerInspect(ctx, containerName)
	if err == nil {
		if inspect.State.Running {
			r.containerID = inspect.ID
			return nil
		}
		if err := r.cli.ContainerStart(ctx, inspect.ID, container.StartOptions{}); err == nil {
			r.containerID = inspect.ID
			return nil
		}
		// Unstartable leftover, recycle it.
		if err := r.removeContainer(ctx, inspect.ID); err != nil {
			slog.Warn("Failed to remove stale sandbox container", "container_id", inspect.ID, "error", err)
		}
	} else if !errdefs.IsNotFound(err) {
		return fmt.Errorf("inspect sandbox container: %w", err)
	}

	config := &container.Config{
		Image:      r.image,
		User:       containerUser,
		WorkingDir: workspacePath,
		Cmd:        []string{"sleep", "infinity"},
	}
	hostConfig := &container.HostConfig{
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: r.hostRoot,
			Target: workspacePath,
		}},
		Resources: container.Resources{
			Memory:    memoryLimitBytes,
			CPUQuota:  cpuQuota,
			PidsLimit: ptr(int64(pidsLimit)),
		},
	}

	resp, err := r.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, containerName)
	if err != nil {
		return fmt.Errorf("create sandbox container: %w", err)
	}
	if err := r.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		if removeErr := r.removeContainer(ctx, resp.ID); removeErr != nil {
			slog.Warn("Failed to remove sandbox container after start failure", "container_id", resp.ID, "error", removeErr)
		}
		return fmt.Errorf("start sandbox container: %w", err)
	}
	r.containerID = resp.ID
	return nil
}

// Run executes command through sh -c inside the sandbox. The host working
// directory is translated to its path under the /workspace mount.
func (r *DockerRunner) Run(ctx context.Context, command, workdir string) (tools.RunOutput, error) {
	start := time.Now()
	out := tools.RunOutput{}

	containerDir, err := r.translateWorkdir(workdir)
	if err != nil {
		return out, err
	}

	execResp, err := r.cli.ContainerExecCreate(ctx, r.containerID, container.ExecOptions{
		Cmd:          []string{"sh", "-c", command},
		WorkingDir:   containerDir,
		User:         containerUser,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return out, fmt.Errorf("create exec: %w", err)
	}

	attach, err := r.cli.ContainerExecAttach(ctx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return out, fmt.Errorf("attach exec: %w", err)
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	done := make(chan error, 1)
	go func() {
		_, copyErr := stdcopy.StdCopy(&stdout, &stderr, attach.Reader)
		done <- copyErr
	}()

	select {
	case <-ctx.Done():
		// Closing the attach socket aborts the copy goroutine; the exec
		// process itself dies with the connection or at container stop.
		attach.Close()
		<-done
		return out, ctx.Err()
	case copyErr := <-done:
		if copyErr != nil && copyErr != io.EOF {
			return out, fmt.Errorf("read exec output: %w", copyErr)
		}
	}

	inspect, err := r.cli.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return out, fmt.Errorf("inspect exec: %w", err)
	}

	out.Stdout = stdout.String()
	out.Stderr = stderr.String()
	out.ExitCode = inspect.ExitCode
	out.Duration = time.Since(start)
	return out, nil
}

// translateWorkdir maps a host path under the projects root to the matching
// path under the container mount.
func (r *DockerRunner) translateWorkdir(workdir string) (string, error) {
	if workdir == "" || workdir == r.hostRoot {
		return workspacePath, nil
	}
	rel, err := filepath.Rel(r.hostRoot, workdir)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("working directory %q is outside the mounted root", workdir)
	}
	return workspacePath + "/" + filepath.ToSlash(rel), nil
}

// Close stops and removes the sandbox container. It runs during shutdown
// after the request contexts are gone, so it uses its own context.
func (r *DockerRunner) Close() error {
	if r.containerID == "" {
		return nil
	}
	err := r.removeContainer(context.Background(), r.containerID)
	r.containerID = ""
	return err
}

func (r *DockerRunner) removeContainer(ctx context.Context, id string) error {
	timeout := stopTimeoutSecs
	if err := r.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil && !errdefs.IsNotFound(err) {
		slog.Debug("Sandbox container stop returned error, continuing to remove", "container_id", id, "error", err)
	}
	if err := r.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("remove sandbox container %s: %w", id, err)
	}
	return nil
}

func ptr[T any](v T) *T {
	return &v
}
